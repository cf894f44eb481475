package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// fencePattern matches the body of a markdown code fence.
	fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\n?(.*?)```")
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
)

// ExtractJSON returns the first JSON object in an LLM response, cleaned of
// comments and trailing commas. It returns "" when none is found.
func ExtractJSON(content string) string {
	return extract(content, '{', '}')
}

// ExtractJSONArray returns the first JSON array in an LLM response.
func ExtractJSONArray(content string) string {
	return extract(content, '[', ']')
}

// DecodeJSON extracts the first JSON object from content and decodes it into v.
func DecodeJSON(content string, v any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode JSON response: %w", err)
	}
	return nil
}

// extract looks inside code fences first, then in the whole content.
func extract(content string, open, closing byte) string {
	for _, m := range fencePattern.FindAllStringSubmatch(content, -1) {
		if raw := balanced(stripComments(m[1]), open, closing); raw != "" {
			return clean(raw)
		}
	}
	if raw := balanced(stripComments(content), open, closing); raw != "" {
		return clean(raw)
	}
	return ""
}

// balanced returns the first substring that starts with open and ends at its
// matching closing bracket, ignoring brackets inside strings.
func balanced(s string, open, closing byte) string {
	start := strings.IndexByte(s, open)
	for start >= 0 {
		depth := 0
		inString, escaped := false, false
		for i := start; i < len(s); i++ {
			ch := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && ch == '\\':
				escaped = true
			case ch == '"':
				inString = !inString
			case inString:
			case ch == open:
				depth++
			case ch == closing:
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
		next := strings.IndexByte(s[start+1:], open)
		if next < 0 {
			return ""
		}
		start += next + 1
	}
	return ""
}

// stripComments removes // line comments that are outside string values.
func stripComments(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return strings.Join(lines, "\n")
}

func stripLineComment(line string) string {
	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

func clean(raw string) string {
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}
