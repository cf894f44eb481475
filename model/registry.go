package model

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps capabilities to endpoints with fallback chains, and tracks
// endpoint health.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaultModel string

	health *healthState
}

// CapabilityConfig defines model preferences for a capability.
type CapabilityConfig struct {
	// Description explains what this capability is for.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Preferred lists endpoint names in order of preference.
	Preferred []string `json:"preferred" yaml:"preferred"`

	// Fallback lists backup endpoints tried after every preferred one.
	Fallback []string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the adapter name (anthropic, openai, ollama).
	Provider string `json:"provider" yaml:"provider"`

	// URL overrides the provider's default base URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the identifier sent to the provider.
	Model string `json:"model" yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	// Empty uses the provider default.
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`

	// MaxTokens is the context window size.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// NewRegistry creates a registry. The first endpoint in sorted order becomes
// the default model unless SetDefault is called.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	if caps == nil {
		caps = make(map[Capability]*CapabilityConfig)
	}
	if endpoints == nil {
		endpoints = make(map[string]*EndpointConfig)
	}
	r := &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		health:       newHealthState(DefaultHealthConfig()),
	}
	if names := r.Endpoints(); len(names) > 0 {
		r.defaultModel = names[0]
	}
	return r
}

// NewDefaultRegistry returns the built-in configuration: Anthropic models
// first, a local Ollama model as the last resort.
func NewDefaultRegistry() *Registry {
	r := NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityGeneration: {
				Description: "Summaries, onboarding copy and welcome text",
				Preferred:   []string{"claude-sonnet"},
				Fallback:    []string{"gpt-4o-mini", "llama3.2"},
			},
			CapabilityAnalysis: {
				Description: "Operational gap analysis of onboarding answers",
				Preferred:   []string{"claude-sonnet"},
				Fallback:    []string{"gpt-4o", "llama3.2"},
			},
			CapabilityExtraction: {
				Description: "Structured entity extraction",
				Preferred:   []string{"claude-haiku"},
				Fallback:    []string{"gpt-4o-mini", "llama3.2"},
			},
			CapabilityFast: {
				Description: "Quick responses",
				Preferred:   []string{"claude-haiku"},
				Fallback:    []string{"llama3.2"},
			},
		},
		map[string]*EndpointConfig{
			"claude-sonnet": {
				Provider:  "anthropic",
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 200000,
			},
			"claude-haiku": {
				Provider:  "anthropic",
				Model:     "claude-3-5-haiku-20241022",
				MaxTokens: 200000,
			},
			"gpt-4o": {
				Provider:  "openai",
				Model:     "gpt-4o",
				MaxTokens: 128000,
			},
			"gpt-4o-mini": {
				Provider:  "openai",
				Model:     "gpt-4o-mini",
				MaxTokens: 128000,
			},
			"llama3.2": {
				Provider:  "ollama",
				URL:       "http://localhost:11434/v1",
				Model:     "llama3.2",
				MaxTokens: 128000,
			},
		},
	)
	r.SetDefault("llama3.2")
	return r
}

// Resolve returns the first preferred endpoint for a capability.
func (r *Registry) Resolve(c Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaultModel
}

// Chain returns every endpoint for a capability in order of preference,
// without duplicates. Unknown capabilities get the default model.
func (r *Registry) Chain(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.capabilities[c]
	if !ok {
		if r.defaultModel == "" {
			return nil
		}
		return []string{r.defaultModel}
	}

	seen := make(map[string]bool, len(cfg.Preferred)+len(cfg.Fallback))
	chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
	for _, list := range [][]string{cfg.Preferred, cfg.Fallback} {
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				chain = append(chain, name)
			}
		}
	}
	return chain
}

// Endpoint returns the endpoint configuration for a name, or nil.
func (r *Registry) Endpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[name]
}

// SetCapability updates or adds a capability configuration.
func (r *Registry) SetCapability(c Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.capabilities[c] = cfg
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endpoints[name] = cfg
}

// SetDefault sets the model used for unconfigured capabilities.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defaultModel = name
}

// Default returns the default model name.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.defaultModel
}

// Capabilities returns the configured capabilities, sorted.
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]Capability, 0, len(r.capabilities))
	for c := range r.capabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Endpoints returns the configured endpoint names, sorted.
func (r *Registry) Endpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every chain member names a configured endpoint with a
// provider and model.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, ep := range r.endpoints {
		if ep == nil || ep.Provider == "" || ep.Model == "" {
			return fmt.Errorf("endpoint %s: provider and model are required", name)
		}
	}
	for c, cfg := range r.capabilities {
		if cfg == nil || len(cfg.Preferred) == 0 {
			return fmt.Errorf("capability %s: at least one preferred endpoint is required", c)
		}
		for _, name := range append(append([]string{}, cfg.Preferred...), cfg.Fallback...) {
			if _, ok := r.endpoints[name]; !ok {
				return fmt.Errorf("capability %s: unknown endpoint %q", c, name)
			}
		}
	}
	if r.defaultModel != "" {
		if _, ok := r.endpoints[r.defaultModel]; !ok {
			return fmt.Errorf("default model %q is not a configured endpoint", r.defaultModel)
		}
	}
	return nil
}
