package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kydras/kydrastore/internal/logger"
	"github.com/kydras/kydrastore/pkg/fsops"
	"github.com/kydras/kydrastore/pkg/index"
	"github.com/kydras/kydrastore/pkg/pool"
)

// Rebalance converges every file in the pool to its rule-required replica
// count.
//
// Under-replicated files gain copies on the best-scoring eligible drives,
// each verified against the reference hash; a verification mismatch aborts
// the pass with ErrIntegrityMismatch, leaving completed copies in place.
// Over-replicated files lose their lowest-scoring replicas; eviction
// failures are logged and skipped.
//
// The pass takes no global locks and assumes no concurrent external
// mutation of the drive roots.
func (e *Engine) Rebalance(ctx context.Context, poolID string) error {
	start := time.Now()

	copied, evicted, err := e.rebalance(ctx, poolID)
	if err != nil {
		e.metrics.RecordError("rebalance", errorKind(err))
		return err
	}
	e.metrics.RecordRebalance(copied, evicted, time.Since(start))
	return nil
}

func (e *Engine) rebalance(ctx context.Context, poolID string) (copied, evicted int, err error) {
	p := e.GetPool(poolID)
	if p == nil {
		return 0, 0, ErrPoolNotFound
	}

	// Union of every drive's file set, in drive order; paths first seen on
	// the same drive come in no particular order.
	fileSets := make([]map[string]bool, len(p.Drives))
	var candidates []string
	seen := make(map[string]bool)
	for i := range p.Drives {
		fileSets[i] = driveFileSet(p.Drives[i].RootPath)
		for rel := range fileSets[i] {
			if !seen[rel] {
				seen[rel] = true
				candidates = append(candidates, rel)
			}
		}
	}

	for _, rel := range candidates {
		if err := ctx.Err(); err != nil {
			return copied, evicted, err
		}

		rule := p.ResolveRule(rel)
		required := rule.Replicas()

		var holders []*pool.Drive
		for i := range p.Drives {
			if fileSets[i][rel] {
				holders = append(holders, &p.Drives[i])
			}
		}

		// Reference: the first holder whose copy still hashes.
		var refDrive *pool.Drive
		var refPath, refHash string
		var refSize int64
		for _, d := range holders {
			path := filepath.Join(d.RootPath, rel)
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			hash, err := fsops.HashFile(path)
			if err != nil {
				logger.Warn("could not hash %s during rebalance: %v", path, err)
				continue
			}
			refDrive, refPath, refHash, refSize = d, path, hash, info.Size()
			break
		}
		if refDrive == nil {
			logger.Warn("no hashable replica of %s, skipping", rel)
			continue
		}

		switch {
		case len(holders) < required:
			n, err := e.addReplicas(ctx, p, rel, rule, holders, refPath, refHash, refSize, required-len(holders))
			copied += n
			if err != nil {
				return copied, evicted, err
			}
		case len(holders) > required:
			evicted += e.evictReplicas(ctx, poolID, rel, rule, holders, required)
		}
	}

	logger.Info("Rebalanced pool %s: %d copies added, %d evicted", p.Name, copied, evicted)
	return copied, evicted, nil
}

// addReplicas copies the reference onto the best-scoring non-holders. Each
// copy is re-hashed and must match the reference digest.
func (e *Engine) addReplicas(ctx context.Context, p *pool.Pool, rel string, rule *pool.Rule,
	holders []*pool.Drive, refPath, refHash string, refSize int64, needed int) (int, error) {

	holding := make(map[*pool.Drive]bool, len(holders))
	for _, d := range holders {
		holding[d] = true
	}

	var targets []*pool.Drive
	for _, d := range RankDrives(p, refSize, rule) {
		if !holding[d] {
			targets = append(targets, d)
		}
	}
	if len(targets) > needed {
		targets = targets[:needed]
	}

	added := 0
	for _, d := range targets {
		dst := filepath.Join(d.RootPath, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return added, fmt.Errorf("failed to create parent for %s: %w", dst, err)
		}
		if err := fsops.CopyWithReplace(refPath, dst); err != nil {
			return added, fmt.Errorf("failed to copy %s to %s: %w", rel, d.RootPath, err)
		}

		hash, err := fsops.HashFile(dst)
		if err != nil {
			return added, fmt.Errorf("failed to verify %s: %w", dst, err)
		}
		if hash != refHash {
			return added, fmt.Errorf("copy of %s onto %s diverged from reference: %w", rel, d.RootPath, ErrIntegrityMismatch)
		}

		rec := index.Record{
			PoolID:      p.ID,
			RelPath:     rel,
			DriveRoot:   d.RootPath,
			SizeBytes:   refSize,
			SHA256:      hash,
			ModifiedUTC: time.Now().UTC(),
		}
		if err := e.idx.Upsert(ctx, rec); err != nil {
			logger.Warn("index upsert failed for %s on %s: %v", rel, d.RootPath, err)
		}

		d.Refresh()
		added++
		logger.Debug("Rebalance added %s on %s", rel, d.RootPath)
	}
	return added, nil
}

// evictReplicas keeps the top-scoring required holders and deletes the
// rest. Delete failures are logged and skipped.
func (e *Engine) evictReplicas(ctx context.Context, poolID, rel string, rule *pool.Rule,
	holders []*pool.Drive, required int) int {

	ranked := make([]*pool.Drive, len(holders))
	copy(ranked, holders)
	SortByScore(ranked, rule, 0)

	evicted := 0
	for _, d := range ranked[required:] {
		path := filepath.Join(d.RootPath, rel)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("could not evict %s: %v", path, err)
			continue
		}
		if err := e.idx.Remove(ctx, poolID, rel, d.RootPath); err != nil {
			logger.Warn("index remove failed for %s on %s: %v", rel, d.RootPath, err)
		}
		d.Refresh()
		evicted++
		logger.Debug("Rebalance evicted %s from %s", rel, d.RootPath)
	}
	return evicted
}

// driveFileSet enumerates the relative paths present under a drive root,
// excluding the engine's transient side files. An unreadable root yields an
// empty set.
func driveFileSet(rootPath string) map[string]bool {
	files := make(map[string]bool)

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("scan error under %s: %v", rootPath, err)
			return nil
		}
		if d.IsDir() || fsops.IsSideFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return nil
		}
		files[rel] = true
		return nil
	})
	if err != nil {
		logger.Warn("could not scan drive %s: %v", rootPath, err)
	}
	return files
}
