package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sourcelens/coderag/internal/llm"
)

var explainDetailLevels = map[string]string{
	"brief":         "in one or two sentences",
	"detailed":      "in a paragraph, covering purpose and notable behavior",
	"comprehensive": "thoroughly, covering purpose, control flow, edge cases, and any non-obvious design decisions",
}

// ExplainCodeTool asks the model to explain an inline snippet (spec §4.6):
// a thin call to C1, unlike the other tools which are pure local
// computation.
type ExplainCodeTool struct {
	provider llm.Provider
}

// NewExplainCodeTool creates an ExplainCodeTool over provider.
func NewExplainCodeTool(provider llm.Provider) *ExplainCodeTool {
	return &ExplainCodeTool{provider: provider}
}

func (t *ExplainCodeTool) Name() string { return "explain_code" }

func (t *ExplainCodeTool) Description() string {
	return "Explain a code snippet at a requested level of detail (brief, detailed, or comprehensive)."
}

func (t *ExplainCodeTool) Schema() []byte {
	return []byte(`{
  "type": "object",
  "properties": {
    "code": {"type": "string", "description": "The code snippet to explain"},
    "detail_level": {"type": "string", "enum": ["brief", "detailed", "comprehensive"]}
  },
  "required": ["code"]
}`)
}

type explainCodeArgs struct {
	Code        string `json:"code"`
	DetailLevel string `json:"detail_level"`
}

func (t *ExplainCodeTool) Execute(ctx context.Context, argumentsJSON, repositoryID string) string {
	var args explainCodeArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.Code) == "" {
		return "Error: code is required"
	}

	detail := args.DetailLevel
	if detail == "" {
		detail = "detailed"
	}
	instruction, ok := explainDetailLevels[detail]
	if !ok {
		return fmt.Sprintf("Error: unknown detail_level %q", detail)
	}

	prompt := &llm.Prompt{
		SystemPrompt: "You explain source code precisely and concisely for a developer reading it for the first time.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf("Explain the following code %s:\n\n```\n%s\n```", instruction, args.Code)},
		},
	}

	resp, err := t.provider.Chat(ctx, prompt, nil, nil)
	if err != nil {
		return fmt.Sprintf("Error: explanation failed: %v", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "Error: model returned no explanation"
	}
	return resp.Content
}
