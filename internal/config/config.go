// Package config loads shears settings from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/shears/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Logging  logging.Config `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Features FeatureConfig  `yaml:"features"`
	Locator  LocatorConfig  `yaml:"locator"`
	Watch    WatchConfig    `yaml:"watch"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// FeatureConfig gates behavior that is not safe for everyone yet.
type FeatureConfig struct {
	// Experimental allows removing event content, which some game modes
	// still load.
	Experimental bool `yaml:"experimental"`
}

// LocatorConfig overrides the marker files that identify an installation.
type LocatorConfig struct {
	DataMarker string `yaml:"data_marker"`
	ExeMarker  string `yaml:"exe_marker"`
}

// WatchConfig holds settings for the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Database: DatabaseConfig{
			Path: defaultDBPath(),
		},
		Locator: LocatorConfig{
			DataMarker: "datapc64.forge",
			ExeMarker:  "RainbowSix.exe",
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
	}
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "shears.yaml"
	}
	return filepath.Join(dir, "shears", "config.yaml")
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "shears.db"
	}
	return filepath.Join(dir, "shears", "history.db")
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	if v := os.Getenv("SHEARS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SHEARS_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SHEARS_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("SHEARS_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SHEARS_EXPERIMENTAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SHEARS_EXPERIMENTAL: %w", err)
		}
		c.Features.Experimental = b
	}
	return nil
}

// Validate checks the settings. The CLI calls it again after applying flags.
func (c *Config) Validate() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Locator.DataMarker == "" || c.Locator.ExeMarker == "" {
		return fmt.Errorf("both locator markers are required")
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("invalid watch debounce: %s", c.Watch.Debounce)
	}
	return nil
}
