package chunker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sourcelens/coderag/internal/models"
)

// classPattern matches class/interface/struct/enum headers across the
// C-family and TS/JS languages this mode covers. Namespace/package
// qualifiers aren't captured here; braceChunks tracks them separately via
// namespacePattern.
var classPattern = regexp.MustCompile(`^\s*(?:export\s+|public\s+|private\s+|internal\s+|abstract\s+|final\s+)*(?:class|interface|struct|enum)\s+([\w$]+)`)

// funcPattern matches keyword-introduced function headers (func, function,
// def, fn): named functions and Go methods with a receiver, optionally
// preceded by visibility/static/async modifiers. Arrow-style const/let/var
// assignments to a function are not matched.
var funcPattern = regexp.MustCompile(`^\s*(?:export\s+|public\s+|private\s+|protected\s+|static\s+|async\s+|final\s+)*(?:func|function|def|fn)\s+(?:\([^)]*\)\s*)?([\w$]+)\s*[(<]`)

// methodLikePattern catches Java/C#/C++ method declarations that have no
// leading keyword, e.g. "public int compute(int x) {".
var methodLikePattern = regexp.MustCompile(`^\s*(?:@\w+(?:\([^)]*\))?\s*)*(?:public|private|protected|internal|static|final|virtual|override|async)\s+[\w<>\[\],\s]+?\s+([\w$]+)\s*\([^;]*\)\s*\{?\s*$`)

var namespacePattern = regexp.MustCompile(`^\s*(?:package|namespace)\s+([\w.:]+)`)

// braceChunks scans lines for class and function/method declarations,
// pairing each with its balanced-brace body, in the style of the teacher's
// regex-probe-then-brace-depth-counter idiom (parseSubs in the perl
// source plugin, generalized from Perl subs to the brace-family languages
// this mode covers). Methods inside a class body produce their own chunks
// tagged with ParentClass; the enclosing class only gets its own chunk
// when the scan found no members inside it, so read_file's
// ascending-startLine reconstruction never sees overlapping ranges.
func braceChunks(lines []string) []chunkSpan {
	var spans []chunkSpan
	namespace := ""

	var classStack []*classFrame

	i := 0
	for i < len(lines) {
		line := lines[i]

		if m := namespacePattern.FindStringSubmatch(line); len(m) > 1 {
			namespace = m[1]
			i++
			continue
		}

		if m := classPattern.FindStringSubmatch(line); len(m) > 1 {
			start := i
			end, ok := scanBalancedBrace(lines, i)
			if !ok {
				i++
				continue
			}
			classStack = append(classStack, &classFrame{
				name:  m[1],
				start: start,
				end:   end,
				span: chunkSpan{
					Content:    joinLines(lines, start+1, end+1),
					StartLine:  start + 1,
					EndLine:    end + 1,
					ChunkType:  models.ChunkTypeClass,
					SymbolName: m[1],
					Namespace:  namespace,
				},
			})
			i++
			continue
		}

		if name, ok := matchFunctionHeader(line); ok {
			start := i
			end, found := scanBalancedBrace(lines, i)
			if !found {
				i++
				continue
			}
			frame := currentClassFrame(classStack, start)
			parent := ""
			chunkType := models.ChunkTypeFunc
			if frame != nil {
				parent = frame.name
				chunkType = models.ChunkTypeMethod
				frame.hasMembers = true
			}
			spans = append(spans, chunkSpan{
				Content:     joinLines(lines, start+1, end+1),
				StartLine:   start + 1,
				EndLine:     end + 1,
				ChunkType:   chunkType,
				SymbolName:  name,
				ParentClass: parent,
				Namespace:   namespace,
			})
			i = end + 1
			continue
		}

		i++
	}

	// Emit a class chunk only for classes with no member declarations
	// inside them (§4.3): classes with members are represented purely by
	// their member chunks so read_file's ascending-startLine reconstruction
	// doesn't see overlapping, duplicated line ranges.
	for _, frame := range classStack {
		if !frame.hasMembers {
			spans = append(spans, frame.span)
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].StartLine < spans[j].StartLine })

	return spans
}

type classFrame struct {
	name       string
	start      int
	end        int
	hasMembers bool
	span       chunkSpan
}

func currentClassFrame(stack []*classFrame, line int) *classFrame {
	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		if line > f.start && line < f.end {
			return f
		}
	}
	return nil
}

func matchFunctionHeader(line string) (string, bool) {
	if m := funcPattern.FindStringSubmatch(line); len(m) > 1 {
		return m[1], true
	}
	if m := methodLikePattern.FindStringSubmatch(line); len(m) > 1 {
		return m[1], true
	}
	return "", false
}

// scanBalancedBrace starts at the line containing a declaration header and
// scans forward until braces opened on or after that line balance back to
// zero, returning the 0-based index of the closing line. If the header
// line has no opening brace (e.g. an interface method signature ending in
// ";"), it reports ok=false so the caller skips it rather than swallowing
// the rest of the file.
func scanBalancedBrace(lines []string, start int) (end int, ok bool) {
	depth := 0
	seenOpen := false
	for i := start; i < len(lines); i++ {
		clean := stripStringsAndLineComment(lines[i])
		for _, r := range clean {
			switch r {
			case '{':
				depth++
				seenOpen = true
			case '}':
				depth--
			}
		}
		if seenOpen && depth <= 0 {
			return i, true
		}
	}
	return 0, false
}

// stripStringsAndLineComment removes string/char literal contents and a
// trailing "//" comment so brace characters inside them aren't counted.
// It's a line-local heuristic, not a full tokenizer: multi-line string
// literals and "/* */" comments are not tracked.
func stripStringsAndLineComment(line string) string {
	var b strings.Builder
	inString := false
	var quote rune
	escaped := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if r == '\\' {
				escaped = true
				continue
			}
			if r == quote {
				inString = false
			}
			continue
		}
		if r == '"' || r == '\'' || r == '`' {
			inString = true
			quote = r
			continue
		}
		if r == '/' && i+1 < len(runes) && runes[i+1] == '/' {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
