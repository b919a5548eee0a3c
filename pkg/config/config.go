// Package config provides configuration file support for memcore.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/asecn/memcore/pkg/logging"
)

// FileName is the configuration file looked up inside the store directory.
const FileName = "config.yaml"

// Environment variables that override file settings.
const (
	EnvDir      = "MEMCORE_DIR"
	EnvLogLevel = "MEMCORE_LOG_LEVEL"
)

// Config represents the memcore configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Purge   PurgeConfig   `yaml:"purge"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig locates the store and tunes its recovery behavior.
type StoreConfig struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
	// BackupsDir is resolved against Dir unless absolute.
	BackupsDir          string `yaml:"backups_dir"`
	QuarantineCorrupted bool   `yaml:"quarantine_corrupted"`
	LockTimeout         string `yaml:"lock_timeout"`
	// Schema is a built-in schema name or a path to a YAML/JSON schema.
	Schema string `yaml:"schema"`
}

// PurgeConfig sets purge defaults.
type PurgeConfig struct {
	PreserveTags []string `yaml:"preserve_tags"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // json, text
	File      string `yaml:"file"`
	ErrorFile string `yaml:"error_file"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:                 ".memcore",
			File:                "memory-state.json",
			BackupsDir:          "backups",
			QuarantineCorrupted: true,
			LockTimeout:         "30s",
			Schema:              "memory-entry",
		},
		Purge: PurgeConfig{
			PreserveTags: []string{"system", "critical"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":2112",
		},
	}
}

// Load reads the configuration at path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDir); v != "" {
		c.Store.Dir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks values that are parsed later.
func (c *Config) Validate() error {
	if c.Store.Dir == "" {
		return fmt.Errorf("config: store.dir must not be empty")
	}
	if c.Store.File == "" {
		return fmt.Errorf("config: store.file must not be empty")
	}
	if _, err := c.LockTimeoutDuration(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatText, "":
	default:
		return fmt.Errorf("config: logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

// StorePath returns the store file location.
func (c *Config) StorePath() string {
	return filepath.Join(c.Store.Dir, c.Store.File)
}

// BackupsPath returns the backups directory.
func (c *Config) BackupsPath() string {
	if filepath.IsAbs(c.Store.BackupsDir) {
		return c.Store.BackupsDir
	}
	return filepath.Join(c.Store.Dir, c.Store.BackupsDir)
}

// AuditPath returns the audit trail location.
func (c *Config) AuditPath() string {
	return filepath.Join(c.Store.Dir, "audit.jsonl")
}

// LockTimeoutDuration parses store.lock_timeout. Empty or zero means wait
// indefinitely.
func (c *Config) LockTimeoutDuration() (time.Duration, error) {
	if c.Store.LockTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Store.LockTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: store.lock_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: store.lock_timeout must not be negative")
	}
	return d, nil
}
