package onboarding

import (
	"github.com/youcodecowboy/disco-grid/contract"
)

// EntityType classifies an entity derived from onboarding answers.
type EntityType string

const (
	EntityCompany         EntityType = "company"
	EntityBrand           EntityType = "brand"
	EntityProductCategory EntityType = "product_category"
	EntityLocation        EntityType = "location"
	EntityDepartment      EntityType = "department"
	EntitySystem          EntityType = "system"
)

// IsValid reports whether t is a known entity type.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityCompany, EntityBrand, EntityProductCategory,
		EntityLocation, EntityDepartment, EntitySystem:
		return true
	}
	return false
}

// otherOption is the select option that defers to a free-text companion.
const otherOption = "Other"

// Entity is a business object inferred from the contract.
type Entity struct {
	Type       EntityType                `json:"type"`
	Name       string                    `json:"name"`
	Attributes map[string]contract.Value `json:"attributes,omitempty"`
	// Source is the contract path the entity came from.
	Source string `json:"source,omitempty"`
}

// EntityRule maps one contract path to entities. A string answer yields one
// entity, an array answer one entity per string element.
type EntityRule struct {
	Type EntityType
	Path string

	// OtherPath holds free text that replaces an "Other" selection.
	OtherPath string

	// Attributes maps attribute names to contract paths; only answered
	// attributes are copied.
	Attributes map[string]string
}

// DefaultEntityRules covers the paths written by the bundled catalog.
var DefaultEntityRules = []EntityRule{
	{
		Type: EntityCompany,
		Path: "company.name",
		Attributes: map[string]string{
			"industry":  "company.industry",
			"employees": "company.employees",
			"ownBrand":  "company.ownBrand",
		},
	},
	{
		Type:       EntityBrand,
		Path:       "brand.name",
		Attributes: map[string]string{"positioning": "brand.positioning"},
	},
	{Type: EntityProductCategory, Path: "products.categories", OtherPath: "products.otherCategory"},
	{Type: EntityLocation, Path: "facilities.types"},
	{Type: EntityDepartment, Path: "team.departments", OtherPath: "team.otherDepartment"},
	{Type: EntitySystem, Path: "operations.systems", OtherPath: "operations.otherSystem"},
}

// MapEntities applies rules to a contract. The result is deterministic and
// free of duplicate (type, name) pairs.
func MapEntities(c *contract.Contract, rules []EntityRule) []Entity {
	out := []Entity{}
	seen := make(map[EntityType]map[string]bool)

	add := func(rule EntityRule, name string) {
		if name == "" {
			return
		}
		if seen[rule.Type] == nil {
			seen[rule.Type] = make(map[string]bool)
		}
		if seen[rule.Type][name] {
			return
		}
		seen[rule.Type][name] = true

		e := Entity{Type: rule.Type, Name: name, Source: rule.Path}
		for attr, path := range rule.Attributes {
			v := c.Lookup(path)
			if v.IsUndefined() || v.IsNull() {
				continue
			}
			if e.Attributes == nil {
				e.Attributes = make(map[string]contract.Value)
			}
			e.Attributes[attr] = v
		}
		out = append(out, e)
	}

	for _, rule := range rules {
		v := c.Lookup(rule.Path)
		switch v.Kind() {
		case contract.KindString:
			s, _ := v.AsString()
			add(rule, resolveOther(c, rule, s))
		case contract.KindArray:
			for _, elem := range v.Elems() {
				if s, ok := elem.AsString(); ok {
					add(rule, resolveOther(c, rule, s))
				}
			}
		}
	}
	return out
}

func resolveOther(c *contract.Contract, rule EntityRule, name string) string {
	if name != otherOption || rule.OtherPath == "" {
		return name
	}
	if s, ok := c.Lookup(rule.OtherPath).AsString(); ok && s != "" {
		return s
	}
	return name
}
