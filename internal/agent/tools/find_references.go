package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sourcelens/coderag/internal/store"
)

const findReferencesGroupCap = 20

// FindReferencesTool scans indexed chunks line-by-line for a symbol's
// definitions, calls, and other usages (spec §4.6), grounded on the same
// regex-probe idiom as internal/chunker/brace.go, applied here to whole
// lines rather than declaration headers.
type FindReferencesTool struct {
	chunks store.ChunkStore
}

// NewFindReferencesTool creates a FindReferencesTool.
func NewFindReferencesTool(chunks store.ChunkStore) *FindReferencesTool {
	return &FindReferencesTool{chunks: chunks}
}

func (t *FindReferencesTool) Name() string { return "find_references" }

func (t *FindReferencesTool) Description() string {
	return "Find definitions, calls, and other usages of a symbol across the indexed repository."
}

func (t *FindReferencesTool) Schema() []byte {
	return []byte(`{
  "type": "object",
  "properties": {
    "symbol": {"type": "string", "description": "Symbol name to search for"},
    "kind": {"type": "string", "enum": ["function", "class", "variable", "any"], "description": "Restrict the kind of definitions considered"}
  },
  "required": ["symbol"]
}`)
}

type findReferencesArgs struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
}

type referenceHit struct {
	filePath string
	line     int
	text     string
}

func (t *FindReferencesTool) Execute(ctx context.Context, argumentsJSON, repositoryID string) string {
	var args findReferencesArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.Symbol) == "" {
		return "Error: symbol is required"
	}
	kind := args.Kind
	if kind == "" {
		kind = "any"
	}
	if kind != "function" && kind != "class" && kind != "variable" && kind != "any" {
		return fmt.Sprintf("Error: unknown kind %q", kind)
	}

	allChunks, err := t.chunks.QueryByRepository(ctx, repositoryID)
	if err != nil {
		return fmt.Sprintf("Error: failed to load repository chunks: %v", err)
	}

	symbol := regexp.QuoteMeta(args.Symbol)
	usagePattern := regexp.MustCompile(`\b` + symbol + `\b`)
	callPattern := regexp.MustCompile(`\b` + symbol + `\s*\(`)
	classDefPattern := regexp.MustCompile(`\b(?:class|struct|interface|enum)\s+` + symbol + `\b`)
	funcDefPattern := regexp.MustCompile(`\b(?:function|def|fn|func)\s+` + symbol + `\b`)
	varDefPattern := regexp.MustCompile(`\b(?:const|let|var|val)\s+` + symbol + `\b`)
	memberDefPattern := regexp.MustCompile(`\b(?:public|private|protected|internal|static)\b[^;{}]*\b` + symbol + `\b\s*\(`)

	groups := map[string][]referenceHit{"definition": nil, "call": nil, "usage": nil}

	for _, c := range allChunks {
		lines := strings.Split(c.Content, "\n")
		for i, line := range lines {
			if !usagePattern.MatchString(line) {
				continue
			}
			absLine := c.StartLine + i
			hit := referenceHit{filePath: c.FilePath, line: absLine, text: strings.TrimSpace(line)}

			isDef := false
			switch kind {
			case "class":
				isDef = classDefPattern.MatchString(line)
			case "function":
				isDef = funcDefPattern.MatchString(line) || memberDefPattern.MatchString(line)
			case "variable":
				isDef = varDefPattern.MatchString(line)
			default:
				isDef = classDefPattern.MatchString(line) || funcDefPattern.MatchString(line) ||
					varDefPattern.MatchString(line) || memberDefPattern.MatchString(line)
			}

			switch {
			case isDef:
				groups["definition"] = append(groups["definition"], hit)
			case callPattern.MatchString(line):
				groups["call"] = append(groups["call"], hit)
			default:
				groups["usage"] = append(groups["usage"], hit)
			}
		}
	}

	total := len(groups["definition"]) + len(groups["call"]) + len(groups["usage"])
	if total == 0 {
		return fmt.Sprintf("No references found for %q.", args.Symbol)
	}

	var b strings.Builder
	for _, groupName := range []string{"definition", "call", "usage"} {
		hits := groups[groupName]
		if len(hits) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d)\n", groupName, len(hits))
		shown := hits
		overflow := 0
		if len(shown) > findReferencesGroupCap {
			overflow = len(shown) - findReferencesGroupCap
			shown = shown[:findReferencesGroupCap]
		}
		for _, h := range shown {
			fmt.Fprintf(&b, "[%s:%d] %s\n", h.filePath, h.line, h.text)
		}
		if overflow > 0 {
			fmt.Fprintf(&b, "... and %d more\n", overflow)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
