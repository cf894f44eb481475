package gap

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	blockPattern          = regexp.MustCompile(`(?is)<gap>(.*?)</gap>`)
	areaPattern           = regexp.MustCompile(`(?is)<area>(.*?)</area>`)
	findingPattern        = regexp.MustCompile(`(?is)<finding>(.*?)</finding>`)
	recommendationPattern = regexp.MustCompile(`(?is)<recommendation>(.*?)</recommendation>`)
	severityPattern       = regexp.MustCompile(`(?is)<severity>(.*?)</severity>`)
	pathsPattern          = regexp.MustCompile(`(?is)<paths>(.*?)</paths>`)
	blankLines            = regexp.MustCompile(`\n{3,}`)
)

// ParseResult is the outcome of scanning LLM output for gap blocks.
type ParseResult struct {
	Gaps []Gap
	// Remainder is the output with the gap blocks removed.
	Remainder string
}

// Parse extracts <gap> blocks from content. Blocks without a finding are
// dropped; a missing or unknown severity becomes medium. Parsed gaps are
// attributed to the LLM and numbered in order.
func Parse(content string) *ParseResult {
	result := &ParseResult{Gaps: []Gap{}, Remainder: strings.TrimSpace(content)}

	matches := blockPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return result
	}
	for _, m := range matches {
		g := parseBlock(m[1])
		if g.Finding == "" {
			continue
		}
		g.ID = fmt.Sprintf("llm.%d", len(result.Gaps)+1)
		result.Gaps = append(result.Gaps, g)
	}

	rest := blockPattern.ReplaceAllString(content, "")
	result.Remainder = strings.TrimSpace(blankLines.ReplaceAllString(rest, "\n\n"))
	return result
}

func parseBlock(body string) Gap {
	g := Gap{
		Area:           field(areaPattern, body),
		Finding:        field(findingPattern, body),
		Recommendation: field(recommendationPattern, body),
		Severity:       ParseSeverity(field(severityPattern, body)),
		Source:         SourceLLM,
	}
	if g.Area == "" {
		g.Area = "general"
	}
	if g.Severity == "" {
		g.Severity = SeverityMedium
	}
	if paths := field(pathsPattern, body); paths != "" {
		for p := range strings.SplitSeq(paths, ",") {
			if p = strings.TrimSpace(p); p != "" {
				g.Paths = append(g.Paths, p)
			}
		}
	}
	return g
}

func field(re *regexp.Regexp, body string) string {
	if m := re.FindStringSubmatch(body); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}
