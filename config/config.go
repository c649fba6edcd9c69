// Package config loads biasdaily settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/biasdaily/search"
)

// Environment variables that override file values.
const (
	EnvDataPath   = "BIASDAILY_DATA"
	EnvTimezone   = "BIASDAILY_TIMEZONE"
	EnvSearchMode = "BIASDAILY_SEARCH_MODE"
	EnvLogLevel   = "BIASDAILY_LOG_LEVEL"
)

// Search modes.
const (
	SearchModeRanker   = "ranker"
	SearchModeFullText = "fulltext"
	SearchModeHybrid   = "hybrid"
)

// ErrInvalidConfig is wrapped by Validate failures.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level configuration.
type Config struct {
	// DataPath is the bbolt file holding learner state. Empty keeps state
	// in memory only.
	DataPath string `yaml:"data_path"`

	// Timezone is an IANA zone name used to decide the current day.
	// Empty means the zone stored in settings, then UTC.
	Timezone string `yaml:"timezone"`

	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// SearchConfig selects and tunes the search strategy.
type SearchConfig struct {
	Mode    string        `yaml:"mode"` // ranker, fulltext, hybrid
	Limit   int           `yaml:"limit"`
	Weights WeightsConfig `yaml:"weights"`

	// Alpha is the substring ranker's share in hybrid mode. Zero uses
	// search.DefaultAlpha.
	Alpha float64 `yaml:"alpha"`
}

// WeightsConfig mirrors search.Weights. Zero fields use the defaults.
type WeightsConfig struct {
	Title    float64 `yaml:"title"`
	Summary  float64 `yaml:"summary"`
	Why      float64 `yaml:"why"`
	Counter  float64 `yaml:"counter"`
	Category float64 `yaml:"category"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Name     string `yaml:"name"`
	HTTPAddr string `yaml:"http_addr"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Mode:  SearchModeRanker,
			Limit: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Name:     "biasdaily",
			HTTPAddr: "127.0.0.1:8080",
		},
	}
}

// DefaultPath returns ~/.biasdaily/config.yaml, or a relative path when
// the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".biasdaily", "config.yaml")
	}
	return filepath.Join(home, ".biasdaily", "config.yaml")
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvDataPath); v != "" {
		c.DataPath = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(EnvSearchMode); v != "" {
		c.Search.Mode = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks enumerations, weights and the timezone.
func (c *Config) Validate() error {
	switch c.Search.Mode {
	case "", SearchModeRanker, SearchModeFullText, SearchModeHybrid:
	default:
		return fmt.Errorf("%w: search mode %q (valid: %s, %s, %s)",
			ErrInvalidConfig, c.Search.Mode, SearchModeRanker, SearchModeFullText, SearchModeHybrid)
	}
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("%w: search alpha must be between 0 and 1", ErrInvalidConfig)
	}
	if c.Search.Limit < 0 {
		return fmt.Errorf("%w: search limit must not be negative", ErrInvalidConfig)
	}
	if err := c.SearchWeights().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); c.Logging.Level != "" && err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q", ErrInvalidConfig, c.Timezone)
		}
	}
	return nil
}

// SearchWeights converts the configured weights.
func (c *Config) SearchWeights() search.Weights {
	w := c.Search.Weights
	return search.Weights{
		Title:    w.Title,
		Summary:  w.Summary,
		Why:      w.Why,
		Counter:  w.Counter,
		Category: w.Category,
	}
}

// Location returns the configured timezone, or nil when none is set.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil
	}
	return loc
}

// LogLevel returns the configured level, defaulting to info.
func (c *Config) LogLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
