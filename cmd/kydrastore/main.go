// Command kydrastore runs the storage pool engine as a long-lived process:
// it creates the configured pools, optionally serves Prometheus metrics,
// and runs periodic rebalance passes until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kydras/kydrastore/internal/logger"
	"github.com/kydras/kydrastore/pkg/config"
	"github.com/kydras/kydrastore/pkg/engine"
	"github.com/kydras/kydrastore/pkg/metrics"
	storageMetrics "github.com/kydras/kydrastore/pkg/metrics/prometheus"
	"github.com/kydras/kydrastore/pkg/pool"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kydrastore: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (default: "+config.GetDefaultConfigPath()+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	idx, err := config.OpenIndex(&cfg.Index)
	if err != nil {
		return err
	}
	defer idx.Close()

	eng := engine.New(idx, storageMetrics.NewStorageMetrics())

	var poolIDs []string
	for _, pc := range cfg.Pools {
		p, err := eng.CreatePool(pc.Name, pc.Drives, pool.ParsePoolType(pc.Type))
		if err != nil {
			return fmt.Errorf("failed to create pool %s: %w", pc.Name, err)
		}
		for _, rc := range pc.Rules {
			if err := eng.AddRule(p.ID, config.BuildRule(rc)); err != nil {
				return err
			}
		}
		if swept, _ := eng.SweepStale(p.ID); swept > 0 {
			logger.Info("Removed %d stale side files from pool %s", swept, p.Name)
		}
		poolIDs = append(poolIDs, p.ID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	if cfg.Rebalance.Enabled {
		interval, err := time.ParseDuration(cfg.Rebalance.Interval)
		if err != nil {
			return fmt.Errorf("invalid rebalance interval: %w", err)
		}
		go rebalanceLoop(ctx, eng, poolIDs, interval)
	}

	logger.Info("kydrastore running with %d pools", len(poolIDs))
	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// rebalanceLoop runs a rebalance pass over every pool on a fixed interval
// until the context is cancelled.
func rebalanceLoop(ctx context.Context, eng *engine.Engine, poolIDs []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range poolIDs {
				if err := eng.Rebalance(ctx, id); err != nil {
					logger.Error("Rebalance of pool %s failed: %v", id, err)
				}
			}
		}
	}
}
