package llm

import "context"

// RequestOptions carries optional per-call generation parameters.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	StopSeqs    []string
}

// Provider is the interface all LLM backends must implement (spec §4.1: C1).
type Provider interface {
	// Chat sends a prompt and an optional tool catalogue and returns either
	// assistant text or a non-empty list of tool calls.
	Chat(ctx context.Context, prompt *Prompt, tools []ToolDef, opts *RequestOptions) (*Response, error)
	// StreamChat streams a completion as a finite sequence of Fragments.
	// The returned channel is closed after a Fragment with Done=true (or a
	// non-nil Err) is sent. Cancelling ctx stops the stream promptly.
	StreamChat(ctx context.Context, prompt *Prompt, opts *RequestOptions) (<-chan Fragment, error)
	// Embed returns embedding vectors for the given texts, one per input,
	// order-preserving.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
}
