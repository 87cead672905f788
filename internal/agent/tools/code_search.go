package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sourcelens/coderag/internal/models"
	"github.com/sourcelens/coderag/internal/retrieval"
)

const codeSearchMaxResults = 5

// CodeSearchTool wraps the C5 retriever as an agent tool (spec §4.6).
type CodeSearchTool struct {
	retriever *retrieval.Retriever
}

// NewCodeSearchTool creates a CodeSearchTool over retriever.
func NewCodeSearchTool(retriever *retrieval.Retriever) *CodeSearchTool {
	return &CodeSearchTool{retriever: retriever}
}

func (t *CodeSearchTool) Name() string { return "code_search" }

func (t *CodeSearchTool) Description() string {
	return "Search the indexed repository for code relevant to a natural-language or symbol query. Supports optional language and chunk_type filters."
}

func (t *CodeSearchTool) Schema() []byte {
	return []byte(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Search query"},
    "language": {"type": "string", "description": "Restrict results to this language"},
    "chunk_type": {"type": "string", "description": "Restrict results to this chunk type (code|class|method|function|comment)"}
  },
  "required": ["query"]
}`)
}

type codeSearchArgs struct {
	Query     string `json:"query"`
	Language  string `json:"language"`
	ChunkType string `json:"chunk_type"`
}

func (t *CodeSearchTool) Execute(ctx context.Context, argumentsJSON, repositoryID string) string {
	var args codeSearchArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "Error: query is required"
	}

	var filter *retrieval.Filter
	if args.Language != "" || args.ChunkType != "" {
		filter = &retrieval.Filter{Language: args.Language, ChunkType: models.ChunkType(args.ChunkType)}
	}

	results, err := t.retriever.HybridSearch(ctx, repositoryID, args.Query, filter, codeSearchMaxResults)
	if err != nil {
		return fmt.Sprintf("Error: search failed: %v", err)
	}
	if len(results) == 0 {
		return "No results found."
	}

	var b strings.Builder
	for _, r := range results {
		c := r.Chunk
		symbol := c.SymbolName
		if symbol == "" {
			symbol = "-"
		}
		fmt.Fprintf(&b, "--- [%s:%d-%d] (type: %s, symbol: %s) [Score: %.4f] ---\n", c.FilePath, c.StartLine, c.EndLine, c.ChunkType, symbol, r.Score)
		fmt.Fprintf(&b, "```%s\n%s\n```\n\n", c.Language, c.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
