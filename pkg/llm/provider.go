package llm

import (
	"context"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system", "tool"
	Content string

	// Set on assistant messages that requested tools
	ToolCalls []ToolCall
	// Set on tool result messages
	ToolCallID string
	Name       string
}

// ToolDefinition is advertised to the model. Parameters is a JSON schema document.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  any
}

// ToolCall is a fully assembled function call requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// StreamEvent is one item read from a Stream. Either Token is set, or
// ToolCalls holds the calls accumulated over the whole stream (delivered once,
// right before io.EOF).
type StreamEvent struct {
	Token     string
	ToolCalls []ToolCall
}

// Stream yields StreamEvents until io.EOF.
type Stream interface {
	Recv() (StreamEvent, error)
	Close() error
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func ApplyOptions(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// LLMProvider defines the contract for any non-streaming LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// CompletionStream opens a token stream for the given history, advertising tools.
type CompletionStream interface {
	CompletionStream(ctx context.Context, history []Message, tools []ToolDefinition, options ...Option) (Stream, error)
}
