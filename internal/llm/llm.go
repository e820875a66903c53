// Package llm defines the reasoning-function contract used by the
// strategist and an OpenAI-backed implementation.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNoAPIKey     = errors.New("llm: API key not configured")
	ErrEmptyChoices = errors.New("llm: response contained no choices")
)

// Role of a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one conversation turn.
type Message struct {
	Role       Role       `json:"role" enum:"system,user,assistant,tool"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Response is the model's reply: free text, tool calls, or both.
type Response struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"`
	Model        string     `json:"model"`
}

// Tool describes a callable function offered to the model.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  *JSONSchema `json:"parameters"`
}

// Reasoner is the opaque reasoning function: given a conversation and the
// tools on offer it returns text and/or tool calls.
type Reasoner interface {
	Chat(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
}

// ReasonerFunc adapts a function to Reasoner.
type ReasonerFunc func(ctx context.Context, messages []Message, tools []Tool) (*Response, error)

func (f ReasonerFunc) Chat(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	return f(ctx, messages, tools)
}

func SystemMessage(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message      { return Message{Role: RoleUser, Content: content} }
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }
