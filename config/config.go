// Package config loads and validates sweeper configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version  string   `yaml:"version"`
	Provider string   `yaml:"provider"`
	Profiles []string `yaml:"profiles"`
	Regions  []string `yaml:"regions"`

	// Accounts that are inventoried and tagged but never live-deleted,
	// regardless of flags. Log archives and audit trails live here.
	RestrictedAccounts []string `yaml:"restricted_accounts,omitempty"`

	// ProtectedDomain preserves anything whose name or ARN mentions it.
	ProtectedDomain string `yaml:"protected_domain,omitempty"`

	// PolicyFile points at a YAML preservation policy. Empty means the
	// built-in policy only.
	PolicyFile string `yaml:"policy_file,omitempty"`

	DataDir     string        `yaml:"data_dir,omitempty"`
	ScanWorkers int           `yaml:"scan_workers,omitempty"`
	CallTimeout time.Duration `yaml:"call_timeout,omitempty"`
	MaxRetries  uint64        `yaml:"max_retries,omitempty"`
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns a runnable configuration for one profile.
func Default() *Config {
	cfg := &Config{
		Version:  "1",
		Provider: "aws",
		Profiles: []string{""},
		Regions:  []string{"us-east-1"},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.DataDir = filepath.Join(home, ".sweeper")
	}
	if c.ScanWorkers <= 0 {
		c.ScanWorkers = 8
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 2 * time.Minute
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 4
	}
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	return nil
}

// IsRestricted reports whether an account must never be live-deleted.
func (c *Config) IsRestricted(accountID string) bool {
	for _, restricted := range c.RestrictedAccounts {
		if restricted == accountID {
			return true
		}
	}
	return false
}
