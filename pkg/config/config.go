// Package config loads, defaults, and validates the engine configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (KYDRASTORE_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// The index backend follows the store-factory pattern: Index.Type selects
// the implementation and only the matching type-specific section is decoded.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete engine configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Index selects and configures the replica index backend.
	Index IndexConfig `mapstructure:"index"`

	// Metrics controls the Prometheus metrics endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Rebalance controls the optional periodic rebalance loop.
	Rebalance RebalanceConfig `mapstructure:"rebalance"`

	// Pools declares pools created at startup.
	Pools []PoolConfig `mapstructure:"pools" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is "stdout", "stderr", or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// IndexConfig selects the replica index backend.
//
// Only the section matching Type is used.
type IndexConfig struct {
	// Type is the backend: sqlite, badger, or memory.
	Type string `mapstructure:"type" validate:"required,oneof=sqlite badger memory"`

	// SQLite configures the sqlite backend (only used when Type = "sqlite").
	SQLite map[string]any `mapstructure:"sqlite"`

	// Badger configures the badger backend (only used when Type = "badger").
	Badger map[string]any `mapstructure:"badger"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port for the /metrics HTTP endpoint.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// RebalanceConfig controls the periodic rebalance loop in the CLI shell.
// The engine itself never rebalances unprompted.
type RebalanceConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Interval between passes, e.g. "6h". Parsed as a Go duration.
	Interval string `mapstructure:"interval"`
}

// PoolConfig declares a pool to create at startup.
type PoolConfig struct {
	Name string `mapstructure:"name" validate:"required"`

	// Type is informational: jbod, mirror, performance, archive, custom.
	Type string `mapstructure:"type" validate:"omitempty,oneof=jbod mirror performance archive custom"`

	// Drives are the filesystem roots pooled together.
	Drives []string `mapstructure:"drives" validate:"required,min=1"`

	Rules []RuleConfig `mapstructure:"rules" validate:"dive"`
}

// RuleConfig declares one placement rule.
type RuleConfig struct {
	Pattern string `mapstructure:"pattern" validate:"required"`

	TargetDrive string `mapstructure:"target_drive"`

	// Duplication is the required replica count; below 1 means 1.
	Duplication int `mapstructure:"duplication"`

	PreferSSD bool `mapstructure:"prefer_ssd"`

	// MaxFileSize in bytes; 0 means unlimited.
	MaxFileSize int64 `mapstructure:"max_file_size" validate:"omitempty,min=0"`

	// PreferredTier is hot, warm, or cold; empty means no preference.
	PreferredTier string `mapstructure:"preferred_tier" validate:"omitempty,oneof=hot warm cold"`
}

// Load reads configuration from the given path (or the default search
// locations when empty), applies defaults, and validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the KYDRASTORE_ prefix with underscores,
	// e.g. KYDRASTORE_LOGGING_LEVEL=DEBUG.
	v.SetEnvPrefix("KYDRASTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper already knows about, so bind the scalar
	// settings explicitly; otherwise their environment variables are ignored
	// whenever the config file does not set the key.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"index.type",
		"metrics.enabled", "metrics.port",
		"rebalance.enabled", "rebalance.interval",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is acceptable; defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory: $XDG_CONFIG_HOME or
// ~/.config, under a kydrastore subdirectory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "kydrastore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "kydrastore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
