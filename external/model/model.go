// Package model defines the pass-through LLM adapter contract used by a
// workflow's AGENT_LOOP tasks. This is the only place the module talks
// to an LLM: the reasoning core (hypothesis, belief, impact, gaps,
// verify) never imports this package and never calls into a model
// directly.
package model

import "context"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat-style conversation.
type Message struct {
	Role    Role
	Content string
}

// ToolSpec describes a tool a model may call, using a JSON-Schema-style
// map for its input parameters.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ToolCall is a model-issued invocation of a tool named in a ToolSpec.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}

// ChatOut is a model's reply: free text, zero or more tool calls, or
// both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ChatModel is the contract every provider adapter implements. An
// AGENT_LOOP task holds one of these and never the concrete provider
// type.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}
