package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/kydras/kydrastore/pkg/index"
	badgerIndex "github.com/kydras/kydrastore/pkg/index/badger"
	memoryIndex "github.com/kydras/kydrastore/pkg/index/memory"
	sqliteIndex "github.com/kydras/kydrastore/pkg/index/sqlite"
	"github.com/kydras/kydrastore/pkg/pool"
)

// OpenIndex creates the replica index backend selected by the
// configuration.
//
// The Type field picks the implementation; the matching type-specific map
// is decoded into that backend's option struct.
func OpenIndex(cfg *IndexConfig) (index.Index, error) {
	switch cfg.Type {
	case "sqlite":
		return openSQLiteIndex(cfg.SQLite)
	case "badger":
		return openBadgerIndex(cfg.Badger)
	case "memory":
		return memoryIndex.New(), nil
	default:
		return nil, fmt.Errorf("unknown index backend: %q", cfg.Type)
	}
}

func openSQLiteIndex(options map[string]any) (index.Index, error) {
	type sqliteOptions struct {
		// Path overrides the default sidecar database location.
		Path string `mapstructure:"path"`
	}

	var opts sqliteOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode sqlite index config: %w", err)
	}

	if opts.Path == "" {
		path, err := index.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("could not resolve default index path: %w", err)
		}
		opts.Path = path
	}

	return sqliteIndex.Open(opts.Path)
}

func openBadgerIndex(options map[string]any) (index.Index, error) {
	type badgerOptions struct {
		Dir string `mapstructure:"dir"`
	}

	var opts badgerOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode badger index config: %w", err)
	}
	if opts.Dir == "" {
		return nil, fmt.Errorf("badger index: dir is required")
	}

	return badgerIndex.Open(opts.Dir)
}

// BuildRule converts a declarative rule into the engine's rule type.
func BuildRule(cfg RuleConfig) pool.Rule {
	return pool.Rule{
		Pattern:          cfg.Pattern,
		TargetDrive:      cfg.TargetDrive,
		DuplicationLevel: cfg.Duplication,
		PreferSSD:        cfg.PreferSSD,
		MaxFileSize:      cfg.MaxFileSize,
		PreferredTier:    parseTier(cfg.PreferredTier),
	}
}

func parseTier(s string) pool.DriveTier {
	switch s {
	case "hot":
		return pool.TierHot
	case "warm":
		return pool.TierWarm
	case "cold":
		return pool.TierCold
	default:
		return pool.TierUnspecified
	}
}
