package gap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/llm"
	"github.com/youcodecowboy/disco-grid/onboarding"
)

const systemPrompt = `You review the operations of apparel and goods manufacturers.
Given a company's onboarding answers and the gaps already found, report any
additional operational gaps. Report each gap as:

<gap>
  <area>one word: quality, inventory, production, systems, brand, team or general</area>
  <finding>what is missing or risky</finding>
  <recommendation>one concrete next step</recommendation>
  <severity>low, medium, high or critical</severity>
  <paths>comma-separated answer paths the finding is based on</paths>
</gap>

Do not repeat gaps that were already found. Report nothing if there are no
further gaps.`

// Report is the result of an analysis.
type Report struct {
	Gaps    []Gap   `json:"gaps"`
	Summary Summary `json:"summary"`
	// Source is "llm" when LLM findings were merged, otherwise "heuristic".
	Source Source `json:"source"`
	// Fallback is set when the LLM call failed and only heuristics ran.
	Fallback bool `json:"fallback"`
	// Notes holds any LLM commentary outside gap blocks.
	Notes     string `json:"notes,omitempty"`
	Model     string `json:"model,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Analyzer combines heuristic rules with LLM review.
type Analyzer struct {
	client     llm.Completer
	rules      []Rule
	capability string
	logger     *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRules replaces the heuristic rule table.
func WithRules(rules []Rule) Option {
	return func(a *Analyzer) {
		a.rules = rules
	}
}

// WithCapability sets the LLM capability used for review.
func WithCapability(capability string) Option {
	return func(a *Analyzer) {
		a.capability = capability
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// NewAnalyzer creates an analyzer. A nil client runs heuristics only.
func NewAnalyzer(client llm.Completer, opts ...Option) *Analyzer {
	a := &Analyzer{
		client:     client,
		rules:      DefaultRules,
		capability: "analysis",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze evaluates the heuristic rules and asks the LLM for further gaps.
// LLM failures degrade to a heuristic-only report with Fallback set; only a
// cancelled context is returned as an error.
func (a *Analyzer) Analyze(ctx context.Context, cat *onboarding.Catalog, c *contract.Contract) (*Report, error) {
	if c == nil {
		c = contract.New()
	}
	heuristic := Heuristics(cat, c, a.rules)
	report := &Report{Gaps: heuristic, Source: SourceHeuristic}

	if a.client != nil {
		resp, err := a.review(ctx, c, heuristic)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			a.logger.Warn("LLM gap analysis failed, using heuristics", "error", err)
			report.Fallback = true
		default:
			parsed := Parse(resp.Content)
			report.Gaps = merge(heuristic, parsed.Gaps)
			report.Source = SourceLLM
			report.Notes = parsed.Remainder
			report.Model = resp.Model
			report.RequestID = resp.RequestID
		}
	}

	report.Summary = Summarize(report.Gaps)
	a.logger.Debug("Gap analysis complete",
		"gaps", len(report.Gaps),
		"source", report.Source,
		"fallback", report.Fallback)
	return report, nil
}

func (a *Analyzer) review(ctx context.Context, c *contract.Contract, found []Gap) (*llm.Response, error) {
	answers, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode contract: %w", err)
	}

	var b strings.Builder
	b.WriteString("Onboarding answers:\n")
	b.Write(answers)
	b.WriteString("\n\nGaps already found:\n")
	if len(found) == 0 {
		b.WriteString("(none)\n")
	}
	for _, g := range found {
		fmt.Fprintf(&b, "- [%s/%s] %s\n", g.Area, g.Severity, g.Finding)
	}

	temp := 0.2
	return a.client.Complete(ctx, llm.Request{
		Capability: a.capability,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: b.String()},
		},
		Temperature: &temp,
	})
}

// merge appends LLM gaps that do not restate a heuristic finding.
func merge(heuristic, fromLLM []Gap) []Gap {
	seen := make(map[string]bool, len(heuristic))
	out := make([]Gap, 0, len(heuristic)+len(fromLLM))
	for _, g := range heuristic {
		seen[normalize(g.Finding)] = true
		out = append(out, g)
	}
	for _, g := range fromLLM {
		key := normalize(g.Finding)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, g)
	}
	Sort(out)
	return out
}

func normalize(s string) string {
	return strings.TrimRight(strings.ToLower(strings.Join(strings.Fields(s), " ")), ".")
}
