package contract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustContract(t *testing.T, doc string) *Contract {
	t.Helper()
	var c Contract
	require.NoError(t, json.Unmarshal([]byte(doc), &c))
	return &c
}

func TestLookup(t *testing.T) {
	c := mustContract(t, `{
		"company": {"ownBrand": true, "name": "Acme", "address": null},
		"products": {"categories": ["Jeans", "Other"]},
		"facilities": {"locations": [{"city": "Leeds"}, {"city": "Porto"}]},
		"headcount": 40
	}`)

	tests := []struct {
		name string
		path string
		want Value
	}{
		{"nested bool", "company.ownBrand", Bool(true)},
		{"nested string", "company.name", String("Acme")},
		{"explicit null leaf", "company.address", Null()},
		{"top-level number", "headcount", Number(40)},
		{"missing top-level key", "brand.name", Undefined()},
		{"missing nested key", "company.size", Undefined()},
		{"through null intermediate", "company.address.city", Undefined()},
		{"through scalar intermediate", "company.name.length", Undefined()},
		{"array index", "facilities.locations.1.city", String("Porto")},
		{"array index out of range", "facilities.locations.5.city", Undefined()},
		{"non-numeric array segment", "products.categories.first", Undefined()},
		{"empty path", "", Undefined()},
		{"doubled dot", "company..ownBrand", Undefined()},
		{"leading dot", ".company.ownBrand", Undefined()},
		{"trailing dot", "company.ownBrand.", Undefined()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Lookup(tt.path)
			assert.Equal(t, tt.want.Kind(), got.Kind())
			if tt.want.Kind() != KindArray && tt.want.Kind() != KindObject {
				assert.True(t, tt.want.StrictEqual(got), "got %s", got)
			}
		})
	}

	arr := c.Lookup("products.categories")
	require.Equal(t, KindArray, arr.Kind())
	assert.True(t, arr.Contains(String("Other")))
	assert.False(t, arr.Contains(String("Jackets")))
}

func TestLookup_NilContract(t *testing.T) {
	var c *Contract
	assert.True(t, c.Lookup("company.ownBrand").IsUndefined())
}

func TestSet(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("company.ownBrand", Bool(true)))
	require.NoError(t, c.Set("company.name", String("Acme")))

	assert.True(t, c.Lookup("company.ownBrand").StrictEqual(Bool(true)))
	assert.True(t, c.Lookup("company.name").StrictEqual(String("Acme")))

	// Overwrite a leaf.
	require.NoError(t, c.Set("company.ownBrand", Bool(false)))
	assert.True(t, c.Lookup("company.ownBrand").StrictEqual(Bool(false)))
	assert.True(t, c.Lookup("company.name").StrictEqual(String("Acme")), "sibling must survive")

	// Replace a scalar intermediate with an object.
	require.NoError(t, c.Set("company.name.legal", String("Acme Ltd")))
	assert.True(t, c.Lookup("company.name.legal").StrictEqual(String("Acme Ltd")))

	assert.Error(t, c.Set("", Bool(true)))
	assert.Error(t, c.Set("...", Bool(true)))
	assert.Error(t, c.Set("company..size", Number(3)))
	assert.Error(t, c.Set("company.size.", Number(3)))
	assert.True(t, c.Lookup("company.size").IsUndefined())
}

func TestValidPath(t *testing.T) {
	for _, p := range []string{"a", "company.ownBrand", "facilities.locations.0.city"} {
		assert.True(t, ValidPath(p), p)
	}
	for _, p := range []string{"", ".", "a..b", ".a", "a."} {
		assert.False(t, ValidPath(p), p)
	}
}

func TestAnswered(t *testing.T) {
	c := mustContract(t, `{
		"company": {"name": "", "ownBrand": false, "address": null, "size": 0},
		"products": {"categories": [], "lines": ["Denim"]}
	}`)

	tests := []struct {
		path string
		want bool
	}{
		{"company.name", false},
		{"company.ownBrand", true},
		{"company.address", false},
		{"company.size", true},
		{"company.missing", false},
		{"products.categories", false},
		{"products.lines", true},
		{"products", true},
		{"company..ownBrand", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Answered(tt.path), tt.path)
	}

	var nilContract *Contract
	assert.False(t, nilContract.Answered("company.name"))
}

func TestSet_UndefinedIsNoop(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("company.name", String("Acme")))
	require.NoError(t, c.Set("company.name", Undefined()))
	assert.True(t, c.Lookup("company.name").StrictEqual(String("Acme")))
}

func TestSet_DoesNotMutateEarlierLookups(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("company.name", String("Acme")))
	before := c.Lookup("company")

	require.NoError(t, c.Set("company.size", Number(10)))

	assert.True(t, before.Field("size").IsUndefined())
	assert.True(t, c.Lookup("company.size").StrictEqual(Number(10)))
}

func TestPathsAndMerge(t *testing.T) {
	a := mustContract(t, `{"company": {"name": "Acme"}, "team": {"departments": ["Sales"]}}`)
	b := mustContract(t, `{"company": {"ownBrand": true}, "team": {"departments": ["Design"]}}`)

	assert.Equal(t, []string{"company.name", "team.departments"}, a.Paths())

	a.Merge(b)
	assert.Equal(t, []string{"company.name", "company.ownBrand", "team.departments"}, a.Paths())
	assert.True(t, a.Lookup("team.departments").Contains(String("Design")))
	assert.False(t, a.Lookup("team.departments").Contains(String("Sales")))
	assert.Equal(t, 3, a.Len())
}

func TestClone(t *testing.T) {
	a := mustContract(t, `{"company": {"name": "Acme"}}`)
	b := a.Clone()
	require.NoError(t, b.Set("company.name", String("Other")))

	assert.True(t, a.Lookup("company.name").StrictEqual(String("Acme")))
	assert.True(t, b.Lookup("company.name").StrictEqual(String("Other")))
}

func TestJSONRoundTrip(t *testing.T) {
	doc := `{"company":{"name":"Acme","ownBrand":true},"products":{"categories":["Jeans","Other"]}}`
	c := mustContract(t, doc)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(out))
}

func TestUnmarshalJSON_RejectsNonObject(t *testing.T) {
	var c Contract
	assert.Error(t, json.Unmarshal([]byte(`["not", "an", "object"]`), &c))
}

func TestUnmarshalYAML(t *testing.T) {
	doc := `
company:
  ownBrand: true
  employees: 12
products:
  categories: [Jeans, Other]
`
	var c Contract
	require.NoError(t, yaml.Unmarshal([]byte(doc), &c))

	assert.True(t, c.Lookup("company.ownBrand").StrictEqual(Bool(true)))
	assert.True(t, c.Lookup("company.employees").StrictEqual(Number(12)))
	assert.True(t, c.Lookup("products.categories").Contains(String("Jeans")))
}
