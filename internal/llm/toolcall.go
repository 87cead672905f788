package llm

import (
	"encoding/json"
	"strings"
)

// NormalizeToolCall scans content for the first balanced JSON object shaped
// like {"name": "...", "arguments": {...}} and, if it matches an entry in
// the tool catalogue (case-insensitive, ignoring separators in the name),
// returns a synthetic ToolCall plus the content with the JSON object
// stripped. Providers that emit tool calls inline as text instead of using
// native tool-calling must be normalized this way so downstream code only
// ever sees Response.ToolCalls (spec §4.1).
func NormalizeToolCall(content string, tools []ToolDef) (string, *ToolCall) {
	if len(tools) == 0 {
		return content, nil
	}

	obj, start, end, ok := firstBalancedJSONObject(content)
	if !ok {
		return content, nil
	}

	var candidate struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(obj), &candidate); err != nil || candidate.Name == "" {
		return content, nil
	}

	for _, t := range tools {
		if normalizeToolName(t.Name) != normalizeToolName(candidate.Name) {
			continue
		}
		args := "{}"
		if len(candidate.Arguments) > 0 {
			args = string(candidate.Arguments)
		}
		remaining := strings.TrimSpace(content[:start] + content[end:])
		return remaining, &ToolCall{ID: "call_" + t.Name, Name: t.Name, Arguments: args}
	}

	return content, nil
}

// normalizeToolName lower-cases and strips separators so "code_search",
// "code-search" and "Code Search" all compare equal.
func normalizeToolName(name string) string {
	name = strings.ToLower(name)
	replacer := strings.NewReplacer("_", "", "-", "", " ", "")
	return replacer.Replace(name)
}

// firstBalancedJSONObject scans s for the first top-level {...} span,
// respecting string literals and escapes, and returns it along with its
// byte offsets in s.
func firstBalancedJSONObject(s string) (obj string, start, end int, ok bool) {
	depth := 0
	inString := false
	escaped := false
	begin := -1

	for i, r := range s {
		if begin == -1 {
			if r == '{' {
				begin = i
				depth = 1
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[begin : i+1], begin, i + 1, true
				}
			}
		}
	}
	return "", 0, 0, false
}
