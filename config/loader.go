package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "discogrid.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/discogrid"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Environment variables that override file settings.
const (
	EnvAddr     = "DISCOGRID_ADDR"
	EnvNATSURL  = "NATS_URL"
	EnvLogLevel = "DISCOGRID_LOG_LEVEL"
	EnvStorage  = "DISCOGRID_STORAGE"
	EnvRegistry = "DISCOGRID_LLM_REGISTRY"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger  *slog.Logger
	getenv  func(string) string
	workDir string
	homeDir string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger, getenv: os.Getenv}
	l.workDir, _ = os.Getwd()
	l.homeDir, _ = os.UserHomeDir()
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/discogrid/config.yaml)
// 3. Project config (discogrid.yaml in current or parent directories)
// 4. Environment variables
//
// A non-empty explicit path replaces layers 2 and 3.
func (l *Loader) Load(explicit string) (*Config, error) {
	config := DefaultConfig()

	if explicit != "" {
		if err := config.apply(explicit); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", explicit))
	} else {
		if path := l.UserConfigPath(); path != "" {
			switch err := config.apply(path); {
			case err == nil:
				l.logger.Debug("Loaded user config", slog.String("path", path))
			case errors.Is(err, fs.ErrNotExist):
			default:
				l.logger.Warn("Failed to load user config", slog.String("path", path), slog.String("error", err.Error()))
			}
		}

		if path := l.findProjectConfig(); path != "" {
			if err := config.apply(path); err != nil {
				return nil, err
			}
			l.logger.Debug("Loaded project config", slog.String("path", path))
			l.resolveRelative(config, filepath.Dir(path))
		} else {
			l.logger.Debug("No project config found")
		}
	}

	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overlays environment variables.
func (l *Loader) applyEnv(c *Config) {
	if v := l.getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := l.getenv(EnvNATSURL); v != "" {
		c.Storage.NATSURL = v
	}
	if v := l.getenv(EnvStorage); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := l.getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := l.getenv(EnvRegistry); v != "" {
		c.LLM.RegistryFile = v
	}
}

// resolveRelative makes file paths from a project config relative to its
// directory.
func (l *Loader) resolveRelative(c *Config, dir string) {
	for _, p := range []*string{&c.Catalog.BaseDir, &c.Catalog.GapRulesFile, &c.LLM.RegistryFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// EnsureUserConfig creates the user config file with defaults if it doesn't
// exist and returns its path.
func (l *Loader) EnsureUserConfig() (string, error) {
	path := l.UserConfigPath()
	if path == "" {
		return "", errors.New("cannot determine home directory")
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := DefaultConfig().SaveToFile(path); err != nil {
		return "", err
	}
	l.logger.Info("Created default user config", slog.String("path", path))
	return path, nil
}

// UserConfigPath returns the path to the user config file
func (l *Loader) UserConfigPath() string {
	if l.homeDir == "" {
		return ""
	}
	return filepath.Join(l.homeDir, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for discogrid.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	if l.workDir == "" {
		return ""
	}
	dir := l.workDir
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
