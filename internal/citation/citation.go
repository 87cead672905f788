// Package citation extracts, deduplicates, and renumbers file-line
// references so a final answer carries verifiable sources (spec §4.8:
// C8). Extraction follows the same probe-and-capture-with-regexp idiom
// used throughout the teacher's internal/plugins/source parsers — no
// external parsing library is warranted for a handful of fixed
// line/range patterns.
package citation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sourcelens/coderag/internal/models"
)

// toolResultHeaderPattern matches the code_search tool's result header
// block: "--- [path:start-end] (type: t, symbol: s) [Score: n] ---"
// followed by a fenced code block. The parenthetical group is captured
// whole and picked apart separately since its contents vary by tool.
var toolResultHeaderPattern = regexp.MustCompile(
	`--- \[([^:\]]+):(\d+)-(\d+)\] \(([^)]*)\) \[Score: ([0-9.]+)\] ---\n` + "```[a-zA-Z0-9_+-]*\n([\\s\\S]*?)\n```",
)

var symbolInHeaderPattern = regexp.MustCompile(`symbol:\s*([^,)]+)`)

// contentReferencePattern matches inline "[path:line]" or
// "[path:start-end]" markers in assistant-authored text.
var contentReferencePattern = regexp.MustCompile(`\[([\w./\\-]+):(\d+)(?:-(\d+))?\]`)

// GroundedContent is the C8 output: the answer with matched references
// rewritten to [N], the deduplicated citation list in N order, and a
// lookup from "path:start-end" to N.
type GroundedContent struct {
	Content     string
	Citations   []models.Citation
	CitationMap map[string]int
}

// Ground extracts citations from toolResults (header-block pattern) and
// from assistantContent (inline markers), deduplicates by
// (filePath, startLine, endLine) preserving first occurrence, assigns
// 1-based indices, and rewrites matched markers in assistantContent to
// [N]. References whose target isn't in the final citation set are left
// intact.
func Ground(assistantContent string, toolResults []string) GroundedContent {
	fromTools := extractFromToolResults(toolResults)
	fromContent := extractFromContent(assistantContent)

	seen := make(map[string]bool)
	var ordered []models.Citation
	citationMap := make(map[string]int)

	addUnique := func(c models.Citation) {
		key := dedupeKey(c.FilePath, c.StartLine, c.EndLine)
		if seen[key] {
			return
		}
		seen[key] = true
		ordered = append(ordered, c)
	}

	for _, c := range fromTools {
		addUnique(c)
	}
	for _, ref := range fromContent {
		addUnique(models.Citation{
			FilePath:   ref.filePath,
			StartLine:  ref.startLine,
			EndLine:    ref.endLine,
			SourceType: models.SourceReference,
		})
	}

	for i := range ordered {
		ordered[i].ID = uuid.NewString()
		citationMap[dedupeKey(ordered[i].FilePath, ordered[i].StartLine, ordered[i].EndLine)] = i + 1
	}

	rewritten := contentReferencePattern.ReplaceAllStringFunc(assistantContent, func(match string) string {
		sub := contentReferencePattern.FindStringSubmatch(match)
		start, _ := strconv.Atoi(sub[2])
		end := start
		if sub[3] != "" {
			end, _ = strconv.Atoi(sub[3])
		}
		if n, ok := citationMap[dedupeKey(sub[1], start, end)]; ok {
			return "[" + strconv.Itoa(n) + "]"
		}
		return match
	})

	return GroundedContent{Content: rewritten, Citations: ordered, CitationMap: citationMap}
}

func dedupeKey(filePath string, start, end int) string {
	return filePath + ":" + strconv.Itoa(start) + "-" + strconv.Itoa(end)
}

// extractFromToolResults matches the header-block pattern against every
// tool result and returns citations sorted descending by score (spec
// §4.8 step 1).
func extractFromToolResults(results []string) []models.Citation {
	var out []models.Citation
	for _, result := range results {
		matches := toolResultHeaderPattern.FindAllStringSubmatch(result, -1)
		for _, m := range matches {
			start, _ := strconv.Atoi(m[2])
			end, _ := strconv.Atoi(m[3])
			score, _ := strconv.ParseFloat(m[5], 64)
			score = clamp01(score)

			symbol := ""
			if sm := symbolInHeaderPattern.FindStringSubmatch(m[4]); len(sm) > 1 {
				symbol = strings.TrimSpace(sm[1])
				if symbol == "-" {
					symbol = ""
				}
			}

			out = append(out, models.Citation{
				FilePath:       m[1],
				StartLine:      start,
				EndLine:        end,
				Content:        m[6],
				SymbolName:     symbol,
				RelevanceScore: score,
				SourceType:     models.SourceCodeSearch,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	return out
}

type contentReference struct {
	filePath  string
	startLine int
	endLine   int
}

// extractFromContent matches inline "[path:line]"/"[path:start-end]"
// occurrences in assistant text (spec §4.8 step 2).
func extractFromContent(content string) []contentReference {
	matches := contentReferencePattern.FindAllStringSubmatch(content, -1)
	out := make([]contentReference, 0, len(matches))
	for _, m := range matches {
		start, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		end := start
		if m[3] != "" {
			end, _ = strconv.Atoi(m[3])
		}
		out = append(out, contentReference{filePath: m[1], startLine: start, endLine: end})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
