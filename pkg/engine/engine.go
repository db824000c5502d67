// Package engine implements the placement, replication, and integrity core
// of the storage pool system.
//
// An Engine owns the in-memory pool map and coordinates all pool-level
// operations: replicated two-phase writes, self-healing reads, deletes,
// listings, and pool-wide rebalancing. Durable state is limited to the
// replica index; the files under each drive root are authoritative for
// content.
//
// The engine is re-entrant per pool. Operations on different relative paths
// are independent; callers serialize drive-membership changes per pool.
package engine

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kydras/kydrastore/internal/logger"
	"github.com/kydras/kydrastore/pkg/index"
	"github.com/kydras/kydrastore/pkg/metrics"
	"github.com/kydras/kydrastore/pkg/pool"
)

// Engine coordinates replicated storage across the pools it manages.
type Engine struct {
	mu    sync.RWMutex
	pools map[string]*pool.Pool

	idx     index.Index
	metrics metrics.StorageMetrics
}

// New creates an engine over the given replica index. A nil storageMetrics
// disables metrics collection.
func New(idx index.Index, storageMetrics metrics.StorageMetrics) *Engine {
	if storageMetrics == nil {
		storageMetrics = metrics.NewNoopStorageMetrics()
	}
	return &Engine{
		pools:   make(map[string]*pool.Pool),
		idx:     idx,
		metrics: storageMetrics,
	}
}

// CreatePool creates a pool over the given drive root paths and registers
// it. Each root directory is created and probed.
func (e *Engine) CreatePool(name string, drivePaths []string, poolType pool.PoolType) (*pool.Pool, error) {
	if strings.TrimSpace(name) == "" || len(drivePaths) == 0 {
		return nil, fmt.Errorf("pool name and drive paths are required: %w", ErrArgEmpty)
	}

	p := pool.New(name, poolType)
	for _, path := range drivePaths {
		drive, err := pool.NewDrive(path)
		if err != nil {
			return nil, fmt.Errorf("failed to add drive %s: %w", path, err)
		}
		p.Drives = append(p.Drives, drive)
	}

	e.mu.Lock()
	e.pools[p.ID] = p
	e.mu.Unlock()

	logger.Info("Created pool %s (%s) with %d drives", p.Name, p.ID, len(p.Drives))
	return p, nil
}

// GetPool returns the pool with the given ID, or nil when unknown.
func (e *Engine) GetPool(poolID string) *pool.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pools[poolID]
}

// ListPools returns all registered pools in stable ID order.
func (e *Engine) ListPools() []*pool.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pools := make([]*pool.Pool, 0, len(e.pools))
	for _, p := range e.pools {
		pools = append(pools, p)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools
}

// AddDrive probes a new drive root and appends it to the pool.
func (e *Engine) AddDrive(poolID, drivePath string) error {
	p := e.GetPool(poolID)
	if p == nil {
		return ErrPoolNotFound
	}
	if p.FindDrive(drivePath) != nil {
		return fmt.Errorf("drive %s already in pool %s", drivePath, p.Name)
	}

	drive, err := pool.NewDrive(drivePath)
	if err != nil {
		return fmt.Errorf("failed to probe drive %s: %w", drivePath, err)
	}

	e.mu.Lock()
	p.Drives = append(p.Drives, drive)
	p.Touch()
	e.mu.Unlock()

	logger.Info("Added drive %s to pool %s", drivePath, p.Name)
	return nil
}

// RemoveDrive removes a drive from the pool's membership. Files on the
// drive are left in place.
func (e *Engine) RemoveDrive(poolID, drivePath string) error {
	p := e.GetPool(poolID)
	if p == nil {
		return ErrPoolNotFound
	}

	cleaned := filepath.Clean(drivePath)

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range p.Drives {
		if filepath.Clean(p.Drives[i].RootPath) == cleaned {
			p.Drives = append(p.Drives[:i], p.Drives[i+1:]...)
			p.Touch()
			logger.Info("Removed drive %s from pool %s", drivePath, p.Name)
			return nil
		}
	}
	return fmt.Errorf("drive %s not in pool %s", drivePath, p.Name)
}

// AddRule appends a placement rule to the pool's ordered rule list.
func (e *Engine) AddRule(poolID string, rule pool.Rule) error {
	p := e.GetPool(poolID)
	if p == nil {
		return ErrPoolNotFound
	}

	e.mu.Lock()
	p.Rules = append(p.Rules, rule)
	p.Touch()
	e.mu.Unlock()
	return nil
}

// CheckDriveHealth probes a drive root with a sentinel write and returns
// the observed health. The root does not need to belong to any pool.
func (e *Engine) CheckDriveHealth(drivePath string) pool.DriveHealth {
	return pool.CheckHealth(drivePath)
}
