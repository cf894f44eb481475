package gap

import (
	"errors"
	"fmt"

	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/onboarding"
	"gopkg.in/yaml.v3"
)

// Rule is a heuristic finding triggered by the contract. A rule fires when
// every When clause matches, no Unless clause matches, and every Missing
// path is unanswered.
type Rule struct {
	ID             string                   `yaml:"id"`
	Area           string                   `yaml:"area"`
	Finding        string                   `yaml:"finding"`
	Recommendation string                   `yaml:"recommendation"`
	Severity       Severity                 `yaml:"severity"`
	When           []onboarding.Conditional `yaml:"when"`
	Unless         []onboarding.Conditional `yaml:"unless"`
	Missing        []string                 `yaml:"missing"`
}

// Validate checks that the rule can fire and is fully described.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return errors.New("rule id is required")
	}
	if r.Finding == "" {
		return fmt.Errorf("rule %s: finding is required", r.ID)
	}
	if ParseSeverity(string(r.Severity)) == "" {
		return fmt.Errorf("rule %s: invalid severity %q", r.ID, r.Severity)
	}
	if len(r.When) == 0 && len(r.Missing) == 0 {
		return fmt.Errorf("rule %s: needs a when clause or missing path", r.ID)
	}
	for i, cond := range append(append([]onboarding.Conditional(nil), r.When...), r.Unless...) {
		if cond.DependsOn == "" {
			return fmt.Errorf("rule %s: clause %d has no dependsOn", r.ID, i)
		}
		if !contract.ValidPath(cond.DependsOn) {
			return fmt.Errorf("rule %s: clause %d has invalid dependsOn %q", r.ID, i, cond.DependsOn)
		}
	}
	for _, p := range r.Missing {
		if !contract.ValidPath(p) {
			return fmt.Errorf("rule %s: invalid missing path %q", r.ID, p)
		}
	}
	return nil
}

// Fires reports whether the rule applies to c.
func (r *Rule) Fires(c *contract.Contract) bool {
	for i := range r.When {
		if !r.When[i].Matches(c) {
			return false
		}
	}
	for i := range r.Unless {
		if r.Unless[i].Matches(c) {
			return false
		}
	}
	for _, p := range r.Missing {
		if c.Answered(p) {
			return false
		}
	}
	return true
}

func (r *Rule) gap() Gap {
	g := Gap{
		ID:             r.ID,
		Area:           r.Area,
		Finding:        r.Finding,
		Recommendation: r.Recommendation,
		Severity:       r.Severity,
		Source:         SourceHeuristic,
	}
	for _, cond := range r.When {
		g.Paths = appendUnique(g.Paths, cond.DependsOn)
	}
	for _, p := range r.Missing {
		g.Paths = appendUnique(g.Paths, p)
	}
	return g
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}

// ParseRules decodes a YAML document of the form {rules: [...]} and
// validates every rule.
func ParseRules(data []byte) ([]Rule, error) {
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse gap rules: %w", err)
	}
	seen := make(map[string]bool, len(doc.Rules))
	var errs []error
	for i := range doc.Rules {
		r := &doc.Rules[i]
		r.Severity = ParseSeverity(string(r.Severity))
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("duplicate rule id %s", r.ID))
		}
		seen[r.ID] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return doc.Rules, nil
}

func when(path string, show onboarding.ShowIf) onboarding.Conditional {
	return onboarding.Conditional{DependsOn: path, ShowIf: show}
}

// DefaultRules covers the operational areas of the bundled catalog.
var DefaultRules = []Rule{
	{
		ID:             "quality.no_qc",
		Area:           "quality",
		Finding:        "No quality control checks are run.",
		Recommendation: "Introduce a final inspection step with recorded pass/fail results.",
		Severity:       SeverityHigh,
		When:           []onboarding.Conditional{when("operations.qualityControl", onboarding.BoolCondition(false))},
	},
	{
		ID:             "inventory.manual",
		Area:           "inventory",
		Finding:        "Inventory is tracked manually or not at all.",
		Recommendation: "Move stock records into a system with location-level counts.",
		Severity:       SeverityMedium,
		When: []onboarding.Conditional{when("operations.inventoryMethod",
			onboarding.OneOfCondition{contract.String("Spreadsheet"), contract.String("Paper"), contract.String("None")})},
	},
	{
		ID:             "production.untracked",
		Area:           "production",
		Finding:        "Work in progress is not tracked on the floor.",
		Recommendation: "Track orders through production stages to surface bottlenecks.",
		Severity:       SeverityHigh,
		When:           []onboarding.Conditional{when("operations.productionTracking", onboarding.BoolCondition(false))},
	},
	{
		ID:             "systems.no_erp_for_sites",
		Area:           "systems",
		Finding:        "Factories or warehouses run without an ERP or WMS.",
		Recommendation: "Connect site operations to a shared system of record.",
		Severity:       SeverityMedium,
		When: []onboarding.Conditional{when("facilities.types",
			onboarding.OneOfCondition{contract.String("Factory"), contract.String("Warehouse")})},
		Unless: []onboarding.Conditional{when("operations.systems",
			onboarding.OneOfCondition{contract.String("ERP"), contract.String("WMS")})},
	},
	{
		ID:             "quality.outsourced_wash",
		Area:           "quality",
		Finding:        "Denim washing is outsourced without incoming material inspection.",
		Recommendation: "Inspect washed goods on receipt before they enter finishing.",
		Severity:       SeverityHigh,
		When: []onboarding.Conditional{
			when("products.categories", onboarding.ScalarCondition{Target: contract.String("Jeans")}),
			when("products.denimWash", onboarding.ScalarCondition{Target: contract.String("Outsourced")}),
		},
		Unless: []onboarding.Conditional{when("operations.qcStages", onboarding.ScalarCondition{Target: contract.String("Incoming materials")})},
	},
	{
		ID:             "brand.no_positioning",
		Area:           "brand",
		Finding:        "The brand has no stated positioning.",
		Recommendation: "Define a price tier so assortment and costing targets can be set.",
		Severity:       SeverityLow,
		When:           []onboarding.Conditional{when("company.ownBrand", onboarding.BoolCondition(true))},
		Missing:        []string{"brand.positioning"},
	},
}

// Heuristics runs rules against c and adds a gap for each required visible
// question that is still unanswered. cat may be nil.
func Heuristics(cat *onboarding.Catalog, c *contract.Contract, rules []Rule) []Gap {
	gaps := []Gap{}
	for i := range rules {
		if rules[i].Fires(c) {
			gaps = append(gaps, rules[i].gap())
		}
	}
	if cat != nil {
		for _, q := range cat.Visible(c) {
			if !q.Required || q.Answered(c) {
				continue
			}
			gaps = append(gaps, Gap{
				ID:             "unanswered." + q.ID,
				Area:           q.Section,
				Finding:        fmt.Sprintf("Required question not answered: %s", q.Prompt),
				Recommendation: "Complete the onboarding questionnaire.",
				Severity:       SeverityLow,
				Source:         SourceHeuristic,
				Paths:          []string{q.Path()},
			})
		}
	}
	Sort(gaps)
	return gaps
}
