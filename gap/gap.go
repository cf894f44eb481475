// Package gap finds operational gaps in a company's onboarding answers.
//
// Two sources contribute findings. Heuristic rules are evaluated directly
// against the contract using the same conditional semantics that drive
// question visibility. An LLM is then asked for additional findings, which
// it reports in structured blocks:
//
//	<gap>
//	  <area>quality</area>
//	  <finding>No incoming material inspection for outsourced washes</finding>
//	  <recommendation>Add a receiving QC checklist</recommendation>
//	  <severity>high</severity>
//	</gap>
//
// When the LLM is unavailable the heuristic findings are returned alone.
package gap

import (
	"cmp"
	"slices"
	"strings"
)

// Severity ranks how urgently a gap should be addressed.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity normalises s, returning "" for unknown values.
func ParseSeverity(s string) Severity {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev
	}
	return ""
}

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Source records which analyser produced a gap.
type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceLLM       Source = "llm"
)

// Gap is one finding.
type Gap struct {
	ID             string   `json:"id"`
	Area           string   `json:"area"`
	Finding        string   `json:"finding"`
	Recommendation string   `json:"recommendation,omitempty"`
	Severity       Severity `json:"severity"`
	Source         Source   `json:"source"`
	// Paths lists the contract paths the finding is based on.
	Paths []string `json:"paths,omitempty"`
}

// Sort orders gaps by severity, then area, then ID.
func Sort(gaps []Gap) {
	slices.SortStableFunc(gaps, func(a, b Gap) int {
		if c := cmp.Compare(a.Severity.rank(), b.Severity.rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Area, b.Area); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Summary counts gaps by severity.
type Summary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"bySeverity"`
	Areas      []string         `json:"areas"`
}

// Summarize counts gaps and lists their distinct areas in first-seen order.
func Summarize(gaps []Gap) Summary {
	s := Summary{Total: len(gaps), BySeverity: map[Severity]int{}, Areas: []string{}}
	seen := make(map[string]bool)
	for _, g := range gaps {
		s.BySeverity[g.Severity]++
		if g.Area != "" && !seen[g.Area] {
			seen[g.Area] = true
			s.Areas = append(s.Areas, g.Area)
		}
	}
	return s
}
