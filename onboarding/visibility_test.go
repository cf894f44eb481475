package onboarding

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youcodecowboy/disco-grid/contract"
	"gopkg.in/yaml.v3"
)

func mustContract(t *testing.T, doc string) *contract.Contract {
	t.Helper()
	var c contract.Contract
	require.NoError(t, json.Unmarshal([]byte(doc), &c))
	return &c
}

func conditional(dependsOn string, showIf ShowIf) *Question {
	return &Question{
		ID:          "q",
		Prompt:      "question",
		Type:        QuestionTypeText,
		Conditional: &Conditional{DependsOn: dependsOn, ShowIf: showIf},
	}
}

func TestShouldShow_NoConditional(t *testing.T) {
	q := &Question{ID: "q", Prompt: "always"}

	for _, doc := range []string{`{}`, `{"a": 1}`, `{"company": {"ownBrand": false}}`} {
		assert.True(t, ShouldShow(q, mustContract(t, doc)), doc)
	}
	assert.True(t, ShouldShow(q, nil))
}

func TestShouldShow(t *testing.T) {
	tests := []struct {
		name     string
		contract string
		q        *Question
		want     bool
	}{
		{
			name:     "boolean false matches false",
			contract: `{"a": false}`,
			q:        conditional("a", BoolCondition(false)),
			want:     true,
		},
		{
			name:     "boolean false rejects true",
			contract: `{"a": true}`,
			q:        conditional("a", BoolCondition(false)),
			want:     false,
		},
		{
			name:     "boolean true rejects string true",
			contract: `{"a": "true"}`,
			q:        conditional("a", BoolCondition(true)),
			want:     false,
		},
		{
			name:     "one-of with scalar member",
			contract: `{"a": "Other"}`,
			q:        conditional("a", OneOfCondition{contract.String("Other")}),
			want:     true,
		},
		{
			name:     "one-of with scalar non-member",
			contract: `{"a": "X"}`,
			q:        conditional("a", OneOfCondition{contract.String("Other")}),
			want:     false,
		},
		{
			name:     "one-of intersecting array",
			contract: `{"a": ["Jeans", "Other"]}`,
			q:        conditional("a", OneOfCondition{contract.String("Other")}),
			want:     true,
		},
		{
			name:     "one-of disjoint array",
			contract: `{"a": ["Jeans", "Jackets"]}`,
			q:        conditional("a", OneOfCondition{contract.String("Other")}),
			want:     false,
		},
		{
			name:     "one-of against empty array",
			contract: `{"a": []}`,
			q:        conditional("a", OneOfCondition{contract.String("Other")}),
			want:     false,
		},
		{
			name:     "scalar contained in array",
			contract: `{"products": {"categories": ["Jeans", "Shirts"]}}`,
			q:        conditional("products.categories", ScalarCondition{Target: contract.String("Jeans")}),
			want:     true,
		},
		{
			name:     "scalar not contained in array",
			contract: `{"products": {"categories": ["Shirts"]}}`,
			q:        conditional("products.categories", ScalarCondition{Target: contract.String("Jeans")}),
			want:     false,
		},
		{
			name:     "scalar strict equality",
			contract: `{"tier": "gold"}`,
			q:        conditional("tier", ScalarCondition{Target: contract.String("gold")}),
			want:     true,
		},
		{
			name:     "number never equals its string form",
			contract: `{"count": 1}`,
			q:        conditional("count", ScalarCondition{Target: contract.String("1")}),
			want:     false,
		},
		{
			name:     "integer equals float",
			contract: `{"count": 1}`,
			q:        conditional("count", ScalarCondition{Target: contract.Number(1.0)}),
			want:     true,
		},
		{
			name:     "missing path",
			contract: `{}`,
			q:        conditional("x.y.z", ScalarCondition{Target: contract.Number(1)}),
			want:     false,
		},
		{
			name:     "missing path against false",
			contract: `{}`,
			q:        conditional("company.ownBrand", BoolCondition(false)),
			want:     false,
		},
		{
			name:     "null intermediate",
			contract: `{"x": null}`,
			q:        conditional("x.y", ScalarCondition{Target: contract.Null()}),
			want:     false,
		},
		{
			name:     "scalar intermediate",
			contract: `{"x": 5}`,
			q:        conditional("x.y", OneOfCondition{contract.Number(5)}),
			want:     false,
		},
		{
			name:     "null leaf equals null target",
			contract: `{"x": null}`,
			q:        conditional("x", ScalarCondition{Target: contract.Null()}),
			want:     true,
		},
		{
			name:     "object dependency never equals",
			contract: `{"x": {"y": 1}}`,
			q:        conditional("x", ScalarCondition{Target: contract.String("y")}),
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldShow(tt.q, mustContract(t, tt.contract))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldShow_OwnBrandScenario(t *testing.T) {
	q := conditional("company.ownBrand", BoolCondition(true))

	c := mustContract(t, `{"company": {"ownBrand": true}}`)
	assert.True(t, ShouldShow(q, c))

	require.NoError(t, c.Set("company.ownBrand", contract.Bool(false)))
	assert.False(t, ShouldShow(q, c))
}

func TestShouldShow_MalformedDependsOn(t *testing.T) {
	c := mustContract(t, `{"company": {"ownBrand": true}}`)

	for _, path := range []string{"company..ownBrand", ".company.ownBrand", "company.ownBrand."} {
		assert.True(t, c.Lookup(path).IsUndefined(), path)
		assert.False(t, ShouldShow(conditional(path, BoolCondition(true)), c), path)
	}
}

func TestShouldShow_Idempotent(t *testing.T) {
	c := mustContract(t, `{"products": {"categories": ["Jeans", "Other"]}}`)
	q := conditional("products.categories", OneOfCondition{contract.String("Other")})
	before, err := json.Marshal(c)
	require.NoError(t, err)

	first := ShouldShow(q, c)
	for range 10 {
		assert.Equal(t, first, ShouldShow(q, c))
	}

	after, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "evaluation must not mutate the contract")
}

func TestShouldShow_NilShowIfHides(t *testing.T) {
	q := &Question{ID: "q", Prompt: "p", Conditional: &Conditional{DependsOn: "a"}}
	assert.False(t, ShouldShow(q, mustContract(t, `{"a": true}`)))
	assert.False(t, ShouldShow(nil, mustContract(t, `{}`)))
}

func TestParseShowIf(t *testing.T) {
	tests := []struct {
		name string
		in   contract.Value
		want ShowIf
	}{
		{"bool", contract.Bool(true), BoolCondition(true)},
		{"array", contract.Strings("a", "b"), OneOfCondition{contract.String("a"), contract.String("b")}},
		{"string", contract.String("Other"), ScalarCondition{Target: contract.String("Other")}},
		{"number", contract.Number(3), ScalarCondition{Target: contract.Number(3)}},
		{"null", contract.Null(), ScalarCondition{Target: contract.Null()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseShowIf(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseShowIf(contract.Undefined())
	assert.Error(t, err)
}

func TestConditional_JSON(t *testing.T) {
	var q Question
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "products.otherCategory",
		"prompt": "Which other categories?",
		"conditional": {"dependsOn": "products.categories", "showIf": ["Other"]}
	}`), &q))

	require.NotNil(t, q.Conditional)
	assert.Equal(t, "products.categories", q.Conditional.DependsOn)
	assert.Equal(t, OneOfCondition{contract.String("Other")}, q.Conditional.ShowIf)

	data, err := json.Marshal(q.Conditional)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dependsOn": "products.categories", "showIf": ["Other"]}`, string(data))
}

func TestConditional_JSONNullAndMissing(t *testing.T) {
	var withNull Conditional
	require.NoError(t, json.Unmarshal([]byte(`{"dependsOn": "a", "showIf": null}`), &withNull))
	assert.Equal(t, ScalarCondition{Target: contract.Null()}, withNull.ShowIf)

	var missing Conditional
	assert.Error(t, json.Unmarshal([]byte(`{"dependsOn": "a"}`), &missing))
}

func TestConditional_YAML(t *testing.T) {
	var q Question
	require.NoError(t, yaml.Unmarshal([]byte(`
id: brand.name
prompt: Brand name?
conditional:
  dependsOn: company.ownBrand
  showIf: true
`), &q))

	require.NotNil(t, q.Conditional)
	assert.Equal(t, BoolCondition(true), q.Conditional.ShowIf)
	assert.True(t, ShouldShow(&q, mustContract(t, `{"company": {"ownBrand": true}}`)))
}
