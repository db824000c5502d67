package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/kydras/kydrastore/internal/logger"
	"github.com/kydras/kydrastore/internal/relpath"
	"github.com/kydras/kydrastore/pkg/fsops"
)

// Delete removes every replica of relPath and its index rows. Drives whose
// copy is already absent are fine; the first filesystem failure is
// reported after all drives have been attempted.
func (e *Engine) Delete(ctx context.Context, poolID, relPath string) error {
	p := e.GetPool(poolID)
	if p == nil {
		return ErrPoolNotFound
	}

	rel, err := relpath.Sanitize(relPath)
	if err != nil {
		return err
	}

	var firstErr error
	for i := range p.Drives {
		d := &p.Drives[i]
		path := filepath.Join(d.RootPath, rel)

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("could not delete %s: %v", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := e.idx.Remove(ctx, poolID, rel, d.RootPath); err != nil {
			logger.Warn("index remove failed for %s on %s: %v", rel, d.RootPath, err)
		}
		d.Refresh()
	}

	if firstErr != nil {
		e.metrics.RecordError("delete", errorKind(firstErr))
		return fmt.Errorf("delete incomplete for %s: %w", rel, firstErr)
	}
	return nil
}

// Exists reports whether any drive in the pool holds relPath, regardless of
// hash agreement. Unknown pools and invalid paths report false.
func (e *Engine) Exists(poolID, relPath string) bool {
	p := e.GetPool(poolID)
	if p == nil {
		return false
	}

	rel, err := relpath.Sanitize(relPath)
	if err != nil {
		return false
	}

	for i := range p.Drives {
		if info, err := os.Stat(filepath.Join(p.Drives[i].RootPath, rel)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// List returns the union of relative paths matching pattern across the
// pool's drives, using the host filesystem's native glob against each root.
// The default pattern "*" lists the top level. Results are sorted and
// deduplicated; the engine's side files are excluded.
func (e *Engine) List(poolID, pattern string) ([]string, error) {
	p := e.GetPool(poolID)
	if p == nil {
		return nil, ErrPoolNotFound
	}

	if pattern == "" {
		pattern = "*"
	}

	seen := make(map[string]bool)
	for i := range p.Drives {
		root := p.Drives[i].RootPath
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad list pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if info, err := os.Stat(match); err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(root, match)
			if err != nil || fsops.IsSideFile(filepath.Base(rel)) {
				continue
			}
			seen[rel] = true
		}
	}

	results := make([]string, 0, len(seen))
	for rel := range seen {
		results = append(results, rel)
	}
	sort.Strings(results)
	return results, nil
}

// SweepStale deletes crash leftovers - staging files, copy temporaries, and
// replace backups - from every drive in the pool. Returns the number of
// files removed.
func (e *Engine) SweepStale(poolID string) (int, error) {
	p := e.GetPool(poolID)
	if p == nil {
		return 0, ErrPoolNotFound
	}

	removed := 0
	for i := range p.Drives {
		root := p.Drives[i].RootPath
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() || !fsops.IsSideFile(d.Name()) {
				return nil
			}
			if err := os.Remove(path); err != nil {
				logger.Warn("could not remove stale side file %s: %v", path, err)
				return nil
			}
			removed++
			return nil
		})
		if err != nil {
			logger.Warn("sweep failed under %s: %v", root, err)
		}
	}

	if removed > 0 {
		logger.Info("Swept %d stale side files from pool %s", removed, p.Name)
	}
	return removed, nil
}
