// Package llm defines the chat-completion contract every sub-agent calls
// against: a plain Message/ToolCall type system (no inheritance, tagged by
// Role) plus a Provider interface for both non-streaming Invoke and
// streaming Stream calls.
package llm

import (
	"context"
	"iter"
)

// Role tags a Message's place in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an LLM's request to invoke a tool, or (on a tool-role
// message) the result paired back to that call by ID.
type ToolCall struct {
	ID   string
	Name string
	Args string // raw JSON arguments
}

// ToolDefinition describes a callable tool to the LLM.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Message is one turn in the conversation. Only Role determines which
// fields are meaningful: ToolCalls is set on assistant messages that
// invoke tools; ToolCallID is set on tool-role messages reporting a
// result; ReasoningContent is set only on assistant messages from a
// reasoning-capable model.
type Message struct {
	Role             Role
	Content          string
	ToolCalls        []ToolCall
	ToolCallID       string // set on Role == RoleTool
	ReasoningContent *string
	Metadata         map[string]any // usage mapping on the final assistant message of a turn
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
}

// AssistantMessage is the complete, non-streamed result of Invoke.
type AssistantMessage struct {
	Content          string
	ReasoningContent string
	ToolCalls        []ToolCall
	Usage            *Usage
}

// AssistantDelta is one increment of a streamed response. FinishReason and
// Usage are only set on the terminal delta.
type AssistantDelta struct {
	ContentDelta      string
	ReasoningDelta     string
	ToolCallDelta      *ToolCallDelta
	FinishReason       string
	Usage              *Usage
}

// ToolCallDelta is one chunk of a streamed tool-call invocation; Index
// groups chunks belonging to the same parallel tool call, ID is only
// present on the first chunk, Name is repeated on every chunk once the
// call's name has been seen, ArgsDelta accumulates across chunks.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	ArgsDelta string
}

// Provider calls a chat-completion API that supports streamed content,
// a separate reasoning channel, and tool-calling.
type Provider interface {
	// Invoke performs a single non-streaming completion.
	Invoke(ctx context.Context, messages []Message, tools []ToolDefinition) (*AssistantMessage, error)

	// Stream performs a streaming completion. The sequence ends either
	// after the terminal delta or on the first non-nil error.
	Stream(ctx context.Context, messages []Message, tools []ToolDefinition) iter.Seq2[*AssistantDelta, error]
}

// PatchEmptyReasoning returns a copy of messages where every assistant
// message with a nil ReasoningContent gets one set to an empty string.
// Reasoning-capable backends (DeepSeek Reasoner) reject payloads that omit
// the field entirely on history turns, per spec.
func PatchEmptyReasoning(messages []Message) []Message {
	patched := make([]Message, len(messages))
	copy(patched, messages)
	empty := ""
	for i := range patched {
		if patched[i].Role == RoleAssistant && patched[i].ReasoningContent == nil {
			patched[i].ReasoningContent = &empty
		}
	}
	return patched
}
