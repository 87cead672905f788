package chunker

import (
	"strings"

	"github.com/sourcelens/coderag/internal/models"
)

// fallbackChunks splits lines into fixed-size chunks with a line-based
// overlap window, the same sliding-window-with-overlap shape as the
// SentenceChunker used elsewhere in the corpus for plain-text documents,
// adapted here from a sentence unit to a character-budget-of-lines unit
// since source files don't reliably split into sentences.
func fallbackChunks(lines []string, cfg Config) []chunkSpan {
	maxSize := cfg.MaxChunkSize
	if maxSize <= 0 {
		maxSize = DefaultConfig().MaxChunkSize
	}
	overlapLines := cfg.OverlapSize / 50
	if overlapLines < 0 {
		overlapLines = 0
	}

	// Drop a single trailing blank line produced by splitting on "\n" when
	// the file ends with a newline, so it doesn't become a spurious chunk.
	trimmed := lines
	if len(trimmed) > 0 && trimmed[len(trimmed)-1] == "" {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) == 0 {
		return nil
	}

	var spans []chunkSpan
	start := 0
	for start < len(trimmed) {
		end := start
		size := 0
		for end < len(trimmed) {
			lineLen := len(trimmed[end]) + 1
			if size > 0 && size+lineLen > maxSize {
				break
			}
			size += lineLen
			end++
		}
		if end == start {
			end = start + 1 // a single line longer than maxSize still becomes its own chunk
		}

		content := strings.Join(trimmed[start:end], "\n")
		spans = append(spans, chunkSpan{
			Content:   content,
			StartLine: start + 1,
			EndLine:   end,
			ChunkType: models.ChunkTypeCode,
		})

		if end >= len(trimmed) {
			break
		}
		next := end - overlapLines
		if next <= start {
			next = end
		}
		start = next
	}
	return spans
}
