package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: $TANDEM_CONFIG, $XDG_CONFIG_HOME/tandem/config.toml, ~/.config/tandem/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	path := FindConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// Environment overrides first so derived defaults see them
	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

// FindConfigFile returns the first existing config file path, or "".
func FindConfigFile() string {
	for _, p := range candidatePaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultPath returns where a new config file should be written.
func DefaultPath() string {
	paths := candidatePaths()
	if len(paths) == 0 {
		return "config.toml"
	}
	return paths[len(paths)-1]
}

func candidatePaths() []string {
	var paths []string
	if v := os.Getenv("TANDEM_CONFIG"); v != "" {
		paths = append(paths, v)
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "tandem", "config.toml"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tandem", "config.toml"))
	}
	return paths
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Backend
	if v := os.Getenv("TANDEM_GRAPHQL_URL"); v != "" {
		cfg.Backend.GraphQLURL = v
	}
	if v := os.Getenv("TANDEM_REALTIME_URL"); v != "" {
		cfg.Backend.RealtimeURL = v
	}
	if v := os.Getenv("TANDEM_REGION"); v != "" {
		cfg.Backend.Region = v
	}
	if v := os.Getenv("TANDEM_CLIENT_ID"); v != "" {
		cfg.Backend.UserPoolClientID = v
	}

	// Device
	if v := os.Getenv("TANDEM_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}
	if v := os.Getenv("TANDEM_VIEWPORT_WIDTH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Device.ViewportWidth = i
		}
	}

	// Sync
	if v := os.Getenv("TANDEM_HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.HeartbeatInterval = D(d)
		}
	}

	// Log
	if v := os.Getenv("TANDEM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TANDEM_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	// Data
	if v := os.Getenv("TANDEM_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
}
