package config

import "strings"

// ApplyDefaults fills unspecified configuration fields with defaults.
//
// Zero values are replaced; explicit values are preserved. Backend-specific
// defaults (e.g. the sqlite database path) are handled by the factories.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)

	if cfg.Index.Type == "" {
		cfg.Index.Type = "sqlite"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Rebalance.Interval == "" {
		cfg.Rebalance.Interval = "6h"
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// GetDefaultConfig returns a fully defaulted configuration with no pools.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
