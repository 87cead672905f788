package chunker

import (
	"regexp"
	"strings"

	"github.com/sourcelens/coderag/internal/models"
)

var (
	indentClassPattern = regexp.MustCompile(`^(\s*)class\s+([\w]+)`)
	indentDefPattern   = regexp.MustCompile(`^(\s*)def\s+([\w]+)`)
)

type indentHeader struct {
	line    int
	indent  int
	name    string
	isClass bool
}

// indentChunks locates class/def headers in Python-like source and spans
// each one to the line before the next header at an indent level <= its
// own (or EOF). A def found at nonzero indent inside a class body is
// tagged with that class as ParentClass.
func indentChunks(lines []string) []chunkSpan {
	var headers []indentHeader
	for i, line := range lines {
		if m := indentClassPattern.FindStringSubmatch(line); len(m) > 2 {
			headers = append(headers, indentHeader{line: i, indent: len(m[1]), name: m[2], isClass: true})
			continue
		}
		if m := indentDefPattern.FindStringSubmatch(line); len(m) > 2 {
			headers = append(headers, indentHeader{line: i, indent: len(m[1]), name: m[2]})
		}
	}
	if len(headers) == 0 {
		return nil
	}

	var spans []chunkSpan
	for idx, h := range headers {
		end := len(lines) - 1
		for j := idx + 1; j < len(headers); j++ {
			if headers[j].indent <= h.indent {
				end = headers[j].line - 1
				break
			}
		}
		end = trimTrailingBlank(lines, h.line, end)

		parent := enclosingClass(headers, idx)
		chunkType := models.ChunkTypeFunc
		if h.isClass {
			chunkType = models.ChunkTypeClass
		} else if parent != "" {
			chunkType = models.ChunkTypeMethod
		}

		spans = append(spans, chunkSpan{
			Content:     joinLines(lines, h.line+1, end+1),
			StartLine:   h.line + 1,
			EndLine:     end + 1,
			ChunkType:   chunkType,
			SymbolName:  h.name,
			ParentClass: parent,
		})
	}
	return spans
}

// enclosingClass walks backward from idx for the nearest class header with
// a strictly smaller indent than idx's own header, i.e. its direct
// container.
func enclosingClass(headers []indentHeader, idx int) string {
	if headers[idx].isClass {
		return ""
	}
	self := headers[idx]
	for j := idx - 1; j >= 0; j-- {
		if headers[j].isClass && headers[j].indent < self.indent {
			return headers[j].name
		}
	}
	return ""
}

func trimTrailingBlank(lines []string, start, end int) int {
	for end > start && strings.TrimSpace(lines[end]) == "" {
		end--
	}
	return end
}
