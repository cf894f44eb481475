package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryJSON = `{
	"capabilities": {
		"extraction": {"preferred": ["haiku"], "fallback": ["local"]}
	},
	"endpoints": {
		"haiku": {"provider": "anthropic", "model": "claude-3-5-haiku-20241022", "api_key_env": "TEAM_ANTHROPIC_KEY"},
		"local": {"provider": "ollama", "url": "http://ollama:11434/v1", "model": "llama3.2"}
	},
	"default": "local"
}`

func TestLoadFromJSON(t *testing.T) {
	r, err := LoadFromJSON([]byte(registryJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{"haiku", "local"}, r.Chain(CapabilityExtraction))
	assert.Equal(t, "TEAM_ANTHROPIC_KEY", r.Endpoint("haiku").APIKeyEnv)
	assert.Equal(t, "local", r.Default())
}

func TestLoadFromJSON_Wrapped(t *testing.T) {
	r, err := LoadFromJSON([]byte(`{"model_registry": ` + registryJSON + `}`))
	require.NoError(t, err)
	assert.Equal(t, "haiku", r.Resolve(CapabilityExtraction))
}

func TestLoadFromJSON_Errors(t *testing.T) {
	_, err := LoadFromJSON([]byte(`{not json`))
	assert.Error(t, err)

	_, err = LoadFromJSON([]byte(`{"capabilities": {"planning": {"preferred": ["x"]}}, "endpoints": {"x": {"provider": "ollama", "model": "m"}}}`))
	assert.ErrorContains(t, err, "unknown capability")

	_, err = LoadFromJSON([]byte(`{"capabilities": {"fast": {"preferred": ["missing"]}}}`))
	assert.ErrorContains(t, err, "unknown endpoint")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(registryJSON), 0o644))

	r, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Len(t, r.Endpoints(), 2)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRegistry_MergeAndToConfig(t *testing.T) {
	r := NewDefaultRegistry()
	err := r.Merge(&RegistryConfig{
		Capabilities: map[string]*CapabilityConfig{
			"fast": {Preferred: []string{"qwen"}},
		},
		Endpoints: map[string]*EndpointConfig{
			"qwen": {Provider: "ollama", Model: "qwen2.5:7b"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "qwen", r.Resolve(CapabilityFast))

	cfg := r.ToConfig()
	assert.Contains(t, cfg.Endpoints, "qwen")
	assert.Equal(t, "llama3.2", cfg.Default)

	round, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, r.Chain(CapabilityAnalysis), round.Chain(CapabilityAnalysis))
}
