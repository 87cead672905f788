package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcelens/coderag/internal/models"
	"github.com/sourcelens/coderag/internal/store"
)

// ReadFileTool reconstructs a source file from its indexed chunks (spec
// §4.6), grounded on sha1n-mcp-relic-server's tools_read.go formatting
// (headered content block) but sourced from the chunk store instead of
// the filesystem, since this service only has repository access through
// its indexed chunk set.
type ReadFileTool struct {
	chunks store.ChunkStore
}

// NewReadFileTool creates a ReadFileTool.
func NewReadFileTool(chunks store.ChunkStore) *ReadFileTool {
	return &ReadFileTool{chunks: chunks}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read a file from the indexed repository, optionally windowed to a line range."
}

func (t *ReadFileTool) Schema() []byte {
	return []byte(`{
  "type": "object",
  "properties": {
    "file_path": {"type": "string", "description": "Path or substring of the path to read"},
    "start_line": {"type": "integer", "description": "First line to include, 1-based"},
    "end_line": {"type": "integer", "description": "Last line to include, 1-based"}
  },
  "required": ["file_path"]
}`)
}

type readFileArgs struct {
	FilePath  string `json:"file_path"`
	StartLine *int   `json:"start_line"`
	EndLine   *int   `json:"end_line"`
}

func (t *ReadFileTool) Execute(ctx context.Context, argumentsJSON, repositoryID string) string {
	var args readFileArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.FilePath) == "" {
		return "Error: file_path is required"
	}

	allChunks, err := t.chunks.QueryByRepository(ctx, repositoryID)
	if err != nil {
		return fmt.Sprintf("Error: failed to load repository chunks: %v", err)
	}

	byPath := make(map[string][]models.CodeChunk)
	for _, c := range allChunks {
		byPath[c.FilePath] = append(byPath[c.FilePath], c)
	}

	target := args.FilePath
	if _, ok := byPath[target]; !ok {
		resolved, matched := resolveByCaseInsensitiveExact(byPath, target)
		if !matched {
			candidates := resolveBySubstring(byPath, target)
			switch len(candidates) {
			case 0:
				return fmt.Sprintf("Error: no file matching %q found in repository", target)
			case 1:
				resolved = candidates[0]
			default:
				sort.Strings(candidates)
				return "Multiple files match: " + strings.Join(candidates, ", ")
			}
		}
		target = resolved
	}

	chunks := byPath[target]
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].StartLine < chunks[j].StartLine })

	var content strings.Builder
	for _, c := range chunks {
		content.WriteString(c.Content)
		content.WriteString("\n")
	}
	lines := strings.Split(strings.TrimRight(content.String(), "\n"), "\n")

	start, end := 1, len(lines)
	if args.StartLine != nil {
		start = *args.StartLine
	}
	if args.EndLine != nil {
		end = *args.EndLine
	}
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		start = len(lines)
	}
	if start > end {
		return fmt.Sprintf("Error: invalid line range [%d, %d] for a %d-line file", start, end, len(lines))
	}

	digits := len(fmt.Sprintf("%d", end))
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", target)
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%*d| %s\n", digits, i, lines[i-1])
	}
	return strings.TrimRight(b.String(), "\n")
}

func resolveByCaseInsensitiveExact(byPath map[string][]models.CodeChunk, target string) (string, bool) {
	for path := range byPath {
		if strings.EqualFold(path, target) {
			return path, true
		}
	}
	return "", false
}

func resolveBySubstring(byPath map[string][]models.CodeChunk, target string) []string {
	target = strings.ToLower(target)
	var candidates []string
	for path := range byPath {
		if strings.Contains(strings.ToLower(path), target) {
			candidates = append(candidates, path)
		}
	}
	return candidates
}
