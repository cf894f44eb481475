package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Contract is the nested answer set of one onboarding session.
// Entries are only ever added or overwritten; nothing is removed.
type Contract struct {
	root map[string]Value
}

// New returns an empty contract.
func New() *Contract {
	return &Contract{root: make(map[string]Value)}
}

// FromValue builds a contract from an object value.
func FromValue(v Value) (*Contract, error) {
	switch v.Kind() {
	case KindUndefined, KindNull:
		return New(), nil
	case KindObject:
		c := New()
		for k, e := range v.obj {
			c.root[k] = e
		}
		return c, nil
	}
	return nil, fmt.Errorf("contract must be an object, got %s", v.Kind())
}

// FromMap builds a contract from decoded JSON data.
func FromMap(m map[string]any) (*Contract, error) {
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return FromValue(v)
}

// splitPath splits a dotted path into its segments. Empty segments are kept,
// so "a..b" yields three segments.
func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// ValidPath reports whether path is non-empty and has no empty segments.
func ValidPath(path string) bool {
	for _, seg := range splitPath(path) {
		if seg == "" {
			return false
		}
	}
	return true
}

// Lookup resolves a dotted path by sequential key lookup.
// Any missing key, empty segment, null intermediate or scalar intermediate
// yields Undefined. Array intermediates accept decimal index segments.
func (c *Contract) Lookup(path string) Value {
	if c == nil || !ValidPath(path) {
		return Undefined()
	}
	segs := splitPath(path)
	cur, ok := c.root[segs[0]]
	if !ok {
		return Undefined()
	}
	for _, seg := range segs[1:] {
		cur = step(cur, seg)
		if cur.IsUndefined() {
			return cur
		}
	}
	return cur
}

// Answered reports whether path holds an answer. Null, empty strings and
// empty arrays do not count.
func (c *Contract) Answered(path string) bool {
	v := c.Lookup(path)
	switch v.Kind() {
	case KindUndefined, KindNull:
		return false
	case KindString:
		s, _ := v.AsString()
		return s != ""
	case KindArray:
		return len(v.Elems()) > 0
	}
	return true
}

func step(cur Value, seg string) Value {
	switch cur.Kind() {
	case KindObject:
		return cur.obj[seg]
	case KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(cur.arr) {
			return Undefined()
		}
		return cur.arr[idx]
	}
	return Undefined()
}

// Set writes a value at a dotted path, creating intermediate objects and
// replacing non-object intermediates. Setting Undefined is a no-op.
func (c *Contract) Set(path string, v Value) error {
	if !ValidPath(path) {
		return fmt.Errorf("invalid path %q", path)
	}
	segs := splitPath(path)
	if v.IsUndefined() {
		return nil
	}
	if c.root == nil {
		c.root = make(map[string]Value)
	}
	c.root[segs[0]] = setIn(c.root[segs[0]], segs[1:], v)
	return nil
}

// setIn returns a copy of cur with v placed at segs. Objects along the path are
// copied so values previously handed out by Lookup stay unchanged.
func setIn(cur Value, segs []string, v Value) Value {
	if len(segs) == 0 {
		return v
	}
	obj := make(map[string]Value)
	if cur.Kind() == KindObject {
		for k, e := range cur.obj {
			obj[k] = e
		}
	}
	obj[segs[0]] = setIn(obj[segs[0]], segs[1:], v)
	return Value{kind: KindObject, obj: obj}
}

// Merge overwrites c with every leaf of other.
func (c *Contract) Merge(other *Contract) {
	if other == nil {
		return
	}
	for _, p := range other.Paths() {
		_ = c.Set(p, other.Lookup(p))
	}
}

// Paths returns the dotted paths of every non-object leaf, sorted.
func (c *Contract) Paths() []string {
	if c == nil {
		return nil
	}
	var out []string
	var walk func(prefix string, v Value)
	walk = func(prefix string, v Value) {
		if v.Kind() != KindObject || len(v.obj) == 0 {
			out = append(out, prefix)
			return
		}
		for _, k := range v.Keys() {
			walk(prefix+"."+k, v.obj[k])
		}
	}
	root := Value{kind: KindObject, obj: c.root}
	for _, k := range root.Keys() {
		walk(k, c.root[k])
	}
	return out
}

// Len returns the number of leaf answers.
func (c *Contract) Len() int { return len(c.Paths()) }

// Value returns the contract as an object value.
func (c *Contract) Value() Value {
	if c == nil {
		return Object(nil)
	}
	return Object(c.root)
}

// Clone returns an independent copy of the contract.
func (c *Contract) Clone() *Contract {
	out := New()
	if c == nil {
		return out
	}
	for k, v := range c.root {
		out.root[k] = v
	}
	return out
}

// MarshalJSON encodes the contract as a nested JSON object.
func (c *Contract) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Value())
}

// UnmarshalJSON decodes a nested JSON object.
func (c *Contract) UnmarshalJSON(data []byte) error {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	decoded, err := FromValue(v)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}

// UnmarshalYAML decodes a nested YAML mapping.
func (c *Contract) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	decoded, err := FromMap(raw)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}

// UnmarshalYAML decodes any YAML node into the value.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
