package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityAnalysis: {
				Preferred: []string{"primary", "secondary"},
				Fallback:  []string{"local", "primary"},
			},
		},
		map[string]*EndpointConfig{
			"primary":   {Provider: "anthropic", Model: "claude"},
			"secondary": {Provider: "openai", Model: "gpt"},
			"local":     {Provider: "ollama", Model: "llama"},
		},
	)
}

func TestRegistry_Chain(t *testing.T) {
	r := testRegistry()

	assert.Equal(t, "primary", r.Resolve(CapabilityAnalysis))
	assert.Equal(t, []string{"primary", "secondary", "local"}, r.Chain(CapabilityAnalysis), "duplicates removed")

	// Unknown capability uses the default, which is the first sorted endpoint.
	assert.Equal(t, "local", r.Default())
	assert.Equal(t, []string{"local"}, r.Chain(CapabilityFast))
	assert.Equal(t, "local", r.Resolve(CapabilityFast))
}

func TestRegistry_Endpoint(t *testing.T) {
	r := testRegistry()

	ep := r.Endpoint("secondary")
	require.NotNil(t, ep)
	assert.Equal(t, "openai", ep.Provider)
	assert.Nil(t, r.Endpoint("missing"))

	r.SetEndpoint("extra", &EndpointConfig{Provider: "ollama", Model: "qwen"})
	assert.Equal(t, []string{"extra", "local", "primary", "secondary"}, r.Endpoints())
}

func TestRegistry_Validate(t *testing.T) {
	require.NoError(t, testRegistry().Validate())
	require.NoError(t, NewDefaultRegistry().Validate())

	r := testRegistry()
	r.SetCapability(CapabilityFast, &CapabilityConfig{Preferred: []string{"ghost"}})
	assert.ErrorContains(t, r.Validate(), "unknown endpoint")

	r = testRegistry()
	r.SetEndpoint("broken", &EndpointConfig{Provider: "ollama"})
	assert.ErrorContains(t, r.Validate(), "provider and model are required")

	r = testRegistry()
	r.SetDefault("ghost")
	assert.ErrorContains(t, r.Validate(), "default model")
}

func TestRegistry_CircuitBreaker(t *testing.T) {
	r := testRegistry()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.setClock(func() time.Time { return now })
	r.SetHealthConfig(HealthConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute})

	assert.True(t, r.IsEndpointAvailable("primary"))
	assert.Nil(t, r.EndpointHealth("primary"))

	r.MarkEndpointFailure("primary")
	assert.True(t, r.IsEndpointAvailable("primary"), "below threshold")

	r.MarkEndpointFailure("primary")
	assert.False(t, r.IsEndpointAvailable("primary"))
	assert.Equal(t, []string{"secondary", "local"}, r.AvailableChain(CapabilityAnalysis))

	h := r.EndpointHealth("primary")
	require.NotNil(t, h)
	assert.Equal(t, 2, h.FailureCount)
	assert.False(t, h.Available)

	// Half-open after the recovery timeout.
	now = now.Add(2 * time.Minute)
	assert.True(t, r.IsEndpointAvailable("primary"))

	r.MarkEndpointSuccess("primary")
	h = r.EndpointHealth("primary")
	assert.True(t, h.Available)
	assert.Zero(t, h.FailureCount)
}

func TestRegistry_AvailableChainAllOpen(t *testing.T) {
	r := testRegistry()
	r.SetHealthConfig(HealthConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	for _, name := range r.Chain(CapabilityAnalysis) {
		r.MarkEndpointFailure(name)
	}
	assert.Equal(t, r.Chain(CapabilityAnalysis), r.AvailableChain(CapabilityAnalysis))

	r.ResetEndpointHealth("local")
	assert.Equal(t, []string{"local"}, r.AvailableChain(CapabilityAnalysis))
}
