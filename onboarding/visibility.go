package onboarding

import (
	"encoding/json"
	"fmt"

	"github.com/youcodecowboy/disco-grid/contract"
	"gopkg.in/yaml.v3"
)

// ShowIf is the target of a conditional clause. It is one of BoolCondition,
// ScalarCondition or OneOfCondition.
type ShowIf interface {
	// match compares a resolved dependency value against the target.
	match(resolved contract.Value) bool
	// value returns the target as a contract value for serialisation.
	value() contract.Value
}

// BoolCondition matches when the dependency is strictly equal to the boolean.
type BoolCondition bool

func (c BoolCondition) match(resolved contract.Value) bool {
	return resolved.StrictEqual(contract.Bool(bool(c)))
}

func (c BoolCondition) value() contract.Value { return contract.Bool(bool(c)) }

// ScalarCondition matches a single target value. An array dependency matches
// when it contains the target; anything else must be strictly equal.
type ScalarCondition struct {
	Target contract.Value
}

func (c ScalarCondition) match(resolved contract.Value) bool {
	if resolved.Kind() == contract.KindArray {
		return resolved.Contains(c.Target)
	}
	return resolved.StrictEqual(c.Target)
}

func (c ScalarCondition) value() contract.Value { return c.Target }

// OneOfCondition matches any of several targets. An array dependency matches
// when the two sets intersect; anything else must be a member.
type OneOfCondition []contract.Value

func (c OneOfCondition) match(resolved contract.Value) bool {
	if resolved.Kind() == contract.KindArray {
		for _, want := range c {
			if resolved.Contains(want) {
				return true
			}
		}
		return false
	}
	for _, want := range c {
		if resolved.StrictEqual(want) {
			return true
		}
	}
	return false
}

func (c OneOfCondition) value() contract.Value { return contract.Array(c...) }

// ParseShowIf picks the condition variant from the shape of a decoded value:
// booleans become BoolCondition, arrays OneOfCondition, everything else
// ScalarCondition.
func ParseShowIf(v contract.Value) (ShowIf, error) {
	switch v.Kind() {
	case contract.KindUndefined:
		return nil, fmt.Errorf("showIf is required")
	case contract.KindBool:
		b, _ := v.AsBool()
		return BoolCondition(b), nil
	case contract.KindArray:
		return OneOfCondition(append([]contract.Value(nil), v.Elems()...)), nil
	default:
		return ScalarCondition{Target: v}, nil
	}
}

// Conditional makes a question's visibility depend on another answer.
type Conditional struct {
	// DependsOn is the dotted contract path that is read.
	DependsOn string
	// ShowIf is the value (or values) that make the question visible.
	ShowIf ShowIf
}

// Matches resolves DependsOn against c and compares it with ShowIf.
// A nil receiver always matches.
func (cond *Conditional) Matches(c *contract.Contract) bool {
	if cond == nil {
		return true
	}
	if cond.ShowIf == nil {
		return false
	}
	return cond.ShowIf.match(c.Lookup(cond.DependsOn))
}

type conditionalWire struct {
	DependsOn string         `json:"dependsOn" yaml:"dependsOn"`
	ShowIf    contract.Value `json:"showIf" yaml:"showIf"`
}

func (cond *Conditional) fromWire(w conditionalWire) error {
	showIf, err := ParseShowIf(w.ShowIf)
	if err != nil {
		return err
	}
	cond.DependsOn = w.DependsOn
	cond.ShowIf = showIf
	return nil
}

// MarshalJSON encodes the clause as {"dependsOn": ..., "showIf": ...}.
func (cond Conditional) MarshalJSON() ([]byte, error) {
	w := conditionalWire{DependsOn: cond.DependsOn}
	if cond.ShowIf != nil {
		w.ShowIf = cond.ShowIf.value()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the clause.
func (cond *Conditional) UnmarshalJSON(data []byte) error {
	var w conditionalWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	// A literal "showIf": null decodes to Null, a missing key stays Undefined.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil {
		if _, ok := probe["showIf"]; !ok {
			w.ShowIf = contract.Undefined()
		}
	}
	return cond.fromWire(w)
}

// UnmarshalYAML decodes the clause.
func (cond *Conditional) UnmarshalYAML(node *yaml.Node) error {
	var w conditionalWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	return cond.fromWire(w)
}

// ShouldShow decides whether a question is presented for the given contract.
// Questions without a conditional clause are always shown. It is a pure
// function of its inputs.
func ShouldShow(q *Question, c *contract.Contract) bool {
	if q == nil {
		return false
	}
	return q.Conditional.Matches(c)
}
