package textgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain text", "We make jeans.", false},
		{"markdown", "## Summary\n\n- One\n- Two", false},
		{"comparison", "lead time < 3 weeks and > 1 week", false},
		{"unknown tag", "Reply with <gap> blocks", false},
		{"paragraph", "<p>Hello</p>", true},
		{"self closing", "Line one<br/>Line two", true},
		{"mixed", "Intro\n<ul><li>One</li></ul>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeHTML(tt.input))
		})
	}
}

func TestConverter_ToMarkdown(t *testing.T) {
	c := NewConverter()

	got, err := c.ToMarkdown(`<h1>Denim line</h1>
<p>We make <strong>selvedge jeans</strong> in Porto.</p>
<ul><li>Raw</li><li>Rinsed</li></ul>
<script>alert("x")</script>
<p><a href="javascript:alert(1)" onclick="steal()">bad link</a></p>`)
	require.NoError(t, err)

	assert.Contains(t, got, "# Denim line")
	assert.Contains(t, got, "**selvedge jeans**")
	assert.Contains(t, got, "- Raw")
	assert.Contains(t, got, "- Rinsed")
	assert.NotContains(t, got, "alert")
	assert.NotContains(t, got, "steal")
	assert.NotContains(t, got, "<")
	assert.Equal(t, "Denim line", Title(got))
}

func TestConverter_ToMarkdown_PassThrough(t *testing.T) {
	c := NewConverter()

	input := "# Plan\n\n\n\n\n\nStep one   \nStep two"
	got, err := c.ToMarkdown(input)
	require.NoError(t, err)
	assert.Equal(t, "# Plan\n\n\nStep one\nStep two", got)

	got, err = c.ToMarkdown("```markdown\n## Fenced\n\nBody\n```")
	require.NoError(t, err)
	assert.Equal(t, "## Fenced\n\nBody", got)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Hello", Title("intro\n# Hello\n## Sub"))
	assert.Empty(t, Title("## Only a section"))
}
