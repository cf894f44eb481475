// Package config provides configuration loading and management for the
// discogrid service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/youcodecowboy/disco-grid/model"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Catalog CatalogConfig `yaml:"catalog"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	// Addr is the listen address (default: ":8080")
	Addr string `yaml:"addr"`
	// ReadHeaderTimeout bounds how long a client may take to send headers
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig configures the LLM client
type LLMConfig struct {
	// Disabled runs every assistant route on its rule-based fallback
	Disabled bool `yaml:"disabled"`
	// RegistryFile is a JSON model registry loaded over the defaults
	RegistryFile string `yaml:"registry_file"`
	// Registry is an inline registry overlay applied after RegistryFile
	Registry *model.RegistryConfig `yaml:"registry"`
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts is the number of tries per endpoint
	MaxAttempts int `yaml:"max_attempts"`
}

// CatalogConfig configures where onboarding questions come from
type CatalogConfig struct {
	// BaseDir is the directory patterns are resolved against
	BaseDir string `yaml:"base_dir"`
	// Patterns are doublestar globs of catalog YAML files
	Patterns []string `yaml:"patterns"`
	// Watch reloads the catalog when files change
	Watch bool `yaml:"watch"`
	// Debounce delays reloads after a burst of file events
	Debounce time.Duration `yaml:"debounce"`
	// GapRulesFile replaces the built-in gap heuristics when set
	GapRulesFile string `yaml:"gap_rules_file"`
}

// StorageConfig configures session storage
type StorageConfig struct {
	// Backend is "memory" or "nats"
	Backend string `yaml:"backend"`
	// NATSURL is the NATS server URL for the nats backend
	NATSURL string `yaml:"nats_url"`
	// SessionTTL expires idle sessions in the KV bucket (0 = never)
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		LLM: LLMConfig{
			Timeout:     3 * time.Minute,
			MaxAttempts: 3,
		},
		Catalog: CatalogConfig{
			BaseDir:  ".",
			Patterns: []string{"questions/**/*.yaml"},
			Watch:    false,
			Debounce: 250 * time.Millisecond,
		},
		Storage: StorageConfig{
			Backend:    BackendMemory,
			SessionTTL: 30 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ShutdownTimeout < 0 || c.Server.ReadHeaderTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	if c.LLM.MaxAttempts < 0 {
		return fmt.Errorf("llm.max_attempts must not be negative")
	}
	if len(c.Catalog.Patterns) == 0 {
		return fmt.Errorf("catalog.patterns must name at least one glob")
	}
	if c.Catalog.Debounce < 0 {
		return fmt.Errorf("catalog.debounce must not be negative")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendNATS:
		if c.Storage.NATSURL == "" {
			return fmt.Errorf("storage.nats_url is required for the nats backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendMemory, BackendNATS, c.Storage.Backend)
	}
	if c.Storage.SessionTTL < 0 {
		return fmt.Errorf("storage.session_ttl must not be negative")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ModelRegistry builds the model registry: the built-in endpoints, then
// RegistryFile, then the inline overlay.
func (c *LLMConfig) ModelRegistry() (*model.Registry, error) {
	reg := model.NewDefaultRegistry()
	if c.RegistryFile != "" {
		loaded, err := model.LoadFromFile(c.RegistryFile)
		if err != nil {
			return nil, err
		}
		reg = loaded
	}
	if c.Registry != nil {
		if err := reg.Merge(c.Registry); err != nil {
			return nil, fmt.Errorf("llm.registry: %w", err)
		}
	}
	return reg, nil
}

// LoadFromFile loads configuration from a YAML file over the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.apply(path); err != nil {
		return nil, err
	}
	return config, nil
}

// apply decodes a YAML file onto c. Keys absent from the file keep their
// current values.
func (c *Config) apply(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
