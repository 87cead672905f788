package llm

// Response wraps an LLM completion result. When ToolCalls is non-empty,
// Content MAY be empty and callers MUST process the tool calls before
// producing a final answer (spec §4.1).
type Response struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	Model        string     `json:"model,omitempty"`
	InputTokens  int        `json:"input_tokens,omitempty"`
	OutputTokens int        `json:"output_tokens,omitempty"`
	StopReason   string     `json:"stop_reason,omitempty"`
}

// Fragment is a single piece of a streamed completion. StreamChat sends a
// finite sequence of Fragments terminated by one with Done=true (or a
// non-nil Err).
type Fragment struct {
	Text string
	Err  error
	Done bool
}
