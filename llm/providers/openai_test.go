package providers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/youcodecowboy/disco-grid/llm"
)

func TestOpenAIProvider(t *testing.T) {
	p := &OpenAIProvider{}

	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "OPENAI_API_KEY", p.APIKeyEnv())
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", p.BuildURL(""))
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", p.BuildURL("https://openrouter.ai/api/v1"))
}

func TestOpenAIProvider_SetHeaders(t *testing.T) {
	t.Setenv("OPENROUTER_SITE_URL", "https://discogrid.example")
	t.Setenv("OPENROUTER_SITE_NAME", "Disco Grid")
	p := &OpenAIProvider{}

	req := httptest.NewRequest("POST", "/", nil)
	p.SetHeaders(req, "sk-test")
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "https://discogrid.example", req.Header.Get("HTTP-Referer"))
	assert.Equal(t, "Disco Grid", req.Header.Get("X-Title"))
}

func TestProvidersRegistered(t *testing.T) {
	for _, name := range []string{"anthropic", "ollama", "openai"} {
		assert.NotNil(t, llm.GetProvider(name), name)
	}
	assert.Equal(t, []string{"anthropic", "ollama", "openai"}, llm.ListProviders())
}
