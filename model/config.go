package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// RegistryConfig is the serialised form of a registry. It appears either in
// a standalone JSON file or under llm.registry in the YAML service config.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `json:"capabilities" yaml:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `json:"endpoints" yaml:"endpoints"`
	Default      string                       `json:"default,omitempty" yaml:"default,omitempty"`
}

// LoadFromFile loads a registry from a JSON file.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return LoadFromJSON(data)
}

// LoadFromJSON loads a registry from JSON. Both a bare RegistryConfig and one
// nested under a "model_registry" key are accepted.
func LoadFromJSON(data []byte) (*Registry, error) {
	var wrapped struct {
		ModelRegistry *RegistryConfig `json:"model_registry"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.ModelRegistry != nil {
		return FromConfig(wrapped.ModelRegistry)
	}

	var cfg RegistryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}
	return FromConfig(&cfg)
}

// FromConfig builds and validates a registry.
func FromConfig(cfg *RegistryConfig) (*Registry, error) {
	caps := make(map[Capability]*CapabilityConfig, len(cfg.Capabilities))
	for k, v := range cfg.Capabilities {
		c := ParseCapability(k)
		if c == "" {
			return nil, fmt.Errorf("unknown capability %q", k)
		}
		caps[c] = v
	}

	endpoints := make(map[string]*EndpointConfig, len(cfg.Endpoints))
	for k, v := range cfg.Endpoints {
		endpoints[k] = v
	}

	r := NewRegistry(caps, endpoints)
	if cfg.Default != "" {
		r.SetDefault(cfg.Default)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// ToConfig converts a registry back to its serialised form.
func (r *Registry) ToConfig() *RegistryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make(map[string]*CapabilityConfig, len(r.capabilities))
	for k, v := range r.capabilities {
		caps[string(k)] = v
	}
	endpoints := make(map[string]*EndpointConfig, len(r.endpoints))
	for k, v := range r.endpoints {
		endpoints[k] = v
	}
	return &RegistryConfig{
		Capabilities: caps,
		Endpoints:    endpoints,
		Default:      r.defaultModel,
	}
}

// Merge overlays cfg onto the registry. Entries with the same name are
// replaced.
func (r *Registry) Merge(cfg *RegistryConfig) error {
	r.mu.Lock()
	for k, v := range cfg.Capabilities {
		c := ParseCapability(k)
		if c == "" {
			r.mu.Unlock()
			return fmt.Errorf("unknown capability %q", k)
		}
		r.capabilities[c] = v
	}
	for k, v := range cfg.Endpoints {
		r.endpoints[k] = v
	}
	if cfg.Default != "" {
		r.defaultModel = cfg.Default
	}
	r.mu.Unlock()

	return r.Validate()
}
