package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAnthropicClient struct {
	response     string
	toolCalls    []ToolCall
	err          error
	callCount    int
	lastSystem   string
	lastMessages []Message
}

func (m *mockAnthropicClient) createMessage(ctx context.Context, systemPrompt string, messages []Message, tools []ToolSpec) (ChatOut, error) {
	m.callCount++
	m.lastSystem = systemPrompt
	m.lastMessages = messages
	if m.err != nil {
		return ChatOut{}, m.err
	}
	return ChatOut{Text: m.response, ToolCalls: m.toolCalls}, nil
}

func TestAnthropicModel_ChatReturnsText(t *testing.T) {
	mock := &mockAnthropicClient{response: "hello"}
	m := &AnthropicModel{client: mock, modelName: "claude-sonnet-4-5-20250929"}

	out, err := m.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, 1, mock.callCount)
}

func TestAnthropicModel_ChatSeparatesSystemPrompt(t *testing.T) {
	mock := &mockAnthropicClient{response: "ok"}
	m := &AnthropicModel{client: mock, modelName: "claude-sonnet-4-5-20250929"}

	messages := []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hi"},
	}
	_, err := m.Chat(context.Background(), messages, nil)
	require.NoError(t, err)

	assert.Equal(t, "be terse", mock.lastSystem)
	assert.Len(t, mock.lastMessages, 1)
	assert.Equal(t, RoleUser, mock.lastMessages[0].Role)
}

func TestAnthropicModel_ChatPropagatesClientError(t *testing.T) {
	mock := &mockAnthropicClient{err: assert.AnError}
	m := &AnthropicModel{client: mock, modelName: "claude-sonnet-4-5-20250929"}

	_, err := m.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	assert.Error(t, err)
}

func TestAnthropicModel_ChatRejectsCancelledContext(t *testing.T) {
	mock := &mockAnthropicClient{response: "hello"}
	m := &AnthropicModel{client: mock, modelName: "claude-sonnet-4-5-20250929"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Chat(ctx, nil, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, mock.callCount)
}

func TestNewAnthropicModel_DefaultsModelName(t *testing.T) {
	m := NewAnthropicModel("key", "")
	assert.Equal(t, "claude-sonnet-4-5-20250929", m.modelName)
}

func TestAnthropicModel_ChatReturnsToolCalls(t *testing.T) {
	mock := &mockAnthropicClient{
		toolCalls: []ToolCall{{Name: "search", Input: map[string]interface{}{"query": "go"}}},
	}
	m := &AnthropicModel{client: mock, modelName: "claude-sonnet-4-5-20250929"}

	out, err := m.Chat(context.Background(), []Message{{Role: RoleUser, Content: "search go"}}, []ToolSpec{{Name: "search"}})
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "search", out.ToolCalls[0].Name)
}
