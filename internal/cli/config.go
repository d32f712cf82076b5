package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration file.
type Config struct {
	// DBPath is the SQLite database file. ":memory:" works for scratch runs.
	DBPath string `yaml:"db"`

	// Tenant scopes every operation.
	Tenant string `yaml:"tenant"`

	// Currency is a display label only; amounts are stored as plain decimals.
	Currency string `yaml:"currency"`
}

// DefaultConfig is what runs without a config file.
func DefaultConfig() *Config {
	return &Config{
		DBPath:   "ovenledger.db",
		Tenant:   "default",
		Currency: "EUR",
	}
}

// LoadConfig reads a YAML config file, filling unset fields with defaults.
// An empty path returns the defaults; a named file must exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultConfig().DBPath
	}
	if cfg.Tenant == "" {
		cfg.Tenant = DefaultConfig().Tenant
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultConfig().Currency
	}
	return cfg, nil
}
