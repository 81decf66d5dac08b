package model

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicModel implements ChatModel for Anthropic's Messages API.
type AnthropicModel struct {
	apiKey    string
	modelName string
	client    anthropicClient
}

// anthropicClient isolates the SDK call so tests can substitute a
// mock without making network requests.
type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt string, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// NewAnthropicModel builds an adapter for the named model (defaults to
// "claude-sonnet-4-5-20250929" when empty).
func NewAnthropicModel(apiKey, modelName string) *AnthropicModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &AnthropicModel{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultAnthropicClient{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements ChatModel.
func (m *AnthropicModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return ChatOut{}, err
	}
	systemPrompt, rest := extractSystemPrompt(messages)
	out, err := m.client.createMessage(ctx, systemPrompt, rest, tools)
	if err != nil {
		return ChatOut{}, err
	}
	return out, nil
}

// extractSystemPrompt pulls every RoleSystem message out of the
// conversation and joins them into a single system prompt, since
// Anthropic's API takes system instructions out-of-band from the
// message list.
func extractSystemPrompt(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		rest = append(rest, msg)
	}
	return strings.Join(system, "\n\n"), rest
}

type defaultAnthropicClient struct {
	apiKey    string
	modelName string
}

func (c *defaultAnthropicClient) createMessage(ctx context.Context, systemPrompt string, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if c.apiKey == "" {
		return ChatOut{}, fmt.Errorf("anthropic API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  convertAnthropicMessages(messages),
		MaxTokens: 4096,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = convertAnthropicTools(tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return ChatOut{}, fmt.Errorf("anthropic API error: %w", err)
	}
	return convertAnthropicResponse(resp), nil
}

func convertAnthropicMessages(messages []Message) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			result[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		default:
			result[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return result
}

func convertAnthropicTools(tools []ToolSpec) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, tool := range tools {
		properties, _ := tool.Schema["properties"].(map[string]interface{})
		required := extractRequired(tool.Schema)
		result[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        tool.Name,
				Description: anthropicsdk.String(tool.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		}
	}
	return result
}

func extractRequired(schema map[string]interface{}) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []interface{}:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func convertAnthropicResponse(resp *anthropicsdk.Message) ChatOut {
	out := ChatOut{}
	var texts []string
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			texts = append(texts, b.Text)
		case anthropicsdk.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				Name:  b.Name,
				Input: convertAnthropicToolInput(b.Input),
			})
		}
	}
	out.Text = strings.Join(texts, "\n")
	return out
}

func convertAnthropicToolInput(input interface{}) map[string]interface{} {
	if m, ok := input.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"_raw": input}
}
