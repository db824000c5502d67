package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration using struct tags plus the rules that
// cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	names := make(map[string]bool)
	for i, p := range cfg.Pools {
		if names[p.Name] {
			return fmt.Errorf("pools[%d]: duplicate pool name %q", i, p.Name)
		}
		names[p.Name] = true

		drives := make(map[string]bool)
		for j, d := range p.Drives {
			if drives[d] {
				return fmt.Errorf("pools[%d].drives[%d]: duplicate drive path %q", i, j, d)
			}
			drives[d] = true
		}
	}

	if cfg.Rebalance.Enabled {
		if _, err := time.ParseDuration(cfg.Rebalance.Interval); err != nil {
			return fmt.Errorf("rebalance.interval: %w", err)
		}
	}

	return nil
}

// formatValidationError renders validator errors with config-style field
// paths.
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, fieldErr := range validationErrors {
		return fmt.Errorf("%s: failed %q validation (value: %v)",
			fieldErr.Namespace(), fieldErr.Tag(), fieldErr.Value())
	}
	return err
}
