package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kydras/kydrastore/internal/logger"
	"github.com/kydras/kydrastore/internal/relpath"
	"github.com/kydras/kydrastore/pkg/fsops"
	"github.com/kydras/kydrastore/pkg/index"
	"github.com/kydras/kydrastore/pkg/pool"
)

// replicaState is one drive's observed copy of a relative path.
type replicaState struct {
	drive  *pool.Drive
	path   string
	exists bool
	hash   string // empty when missing or unhashable
	size   int64
}

// Read opens one intact replica of relPath for reading and repairs the
// others.
//
// The source replica is the first whose content hash matches the index's
// expectation; with no usable expectation, the first hashable replica wins.
// Every other drive whose copy is missing or divergent is healed from the
// source before the stream is returned. Individual heal failures are logged
// and skipped; they never fail the read.
func (e *Engine) Read(ctx context.Context, poolID, relPath string) (io.ReadCloser, error) {
	start := time.Now()

	stream, err := e.read(ctx, poolID, relPath, start)
	if err != nil {
		e.metrics.RecordError("read", errorKind(err))
	}
	return stream, err
}

func (e *Engine) read(ctx context.Context, poolID, relPath string, start time.Time) (io.ReadCloser, error) {
	p := e.GetPool(poolID)
	if p == nil {
		return nil, ErrPoolNotFound
	}

	rel, err := relpath.Sanitize(relPath)
	if err != nil {
		return nil, err
	}

	// Observe every drive's copy. A hash failure demotes the replica to
	// "unknown content" rather than failing the read.
	states := make([]replicaState, 0, len(p.Drives))
	for i := range p.Drives {
		d := &p.Drives[i]
		state := replicaState{drive: d, path: filepath.Join(d.RootPath, rel)}

		if info, err := os.Stat(state.path); err == nil && !info.IsDir() {
			state.exists = true
			state.size = info.Size()
			if hash, err := fsops.HashFile(state.path); err == nil {
				state.hash = hash
			} else {
				logger.Warn("could not hash replica %s: %v", state.path, err)
			}
		}
		states = append(states, state)
	}

	// The first recorded hash is the expectation; the index may know
	// nothing about this path.
	var expected string
	if records, err := e.idx.GetReplicas(ctx, poolID, rel); err == nil && len(records) > 0 {
		expected = records[0].SHA256
	}

	source := chooseSource(states, expected)
	if source == nil {
		return nil, os.ErrNotExist
	}

	healed := 0
	for i := range states {
		s := &states[i]
		if s == source || (s.exists && s.hash == source.hash) {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			logger.Warn("heal skipped for %s: %v", s.path, err)
			continue
		}
		if err := fsops.CopyWithReplace(source.path, s.path); err != nil {
			logger.Warn("heal copy failed for %s: %v", s.path, err)
			continue
		}

		hash, err := fsops.HashFile(s.path)
		if err != nil {
			logger.Warn("heal verification failed for %s: %v", s.path, err)
			continue
		}

		rec := index.Record{
			PoolID:      poolID,
			RelPath:     rel,
			DriveRoot:   s.drive.RootPath,
			SizeBytes:   source.size,
			SHA256:      hash,
			ModifiedUTC: time.Now().UTC(),
		}
		if err := e.idx.Upsert(ctx, rec); err != nil {
			logger.Warn("index upsert failed for healed %s: %v", s.path, err)
		}
		healed++
		logger.Info("Healed replica %s from %s", s.path, source.drive.RootPath)
	}

	// Record the observation of the source itself.
	rec := index.Record{
		PoolID:      poolID,
		RelPath:     rel,
		DriveRoot:   source.drive.RootPath,
		SizeBytes:   source.size,
		SHA256:      source.hash,
		ModifiedUTC: time.Now().UTC(),
	}
	if err := e.idx.Upsert(ctx, rec); err != nil {
		logger.Warn("index upsert failed for %s: %v", source.path, err)
	}

	f, err := os.Open(source.path)
	if err != nil {
		return nil, err
	}

	e.metrics.RecordRead(source.size, healed, time.Since(start))
	return f, nil
}

// chooseSource picks the replica to serve and heal from: the first whose
// hash equals expected, else the first hashable one. Nil when no replica
// hashed successfully.
func chooseSource(states []replicaState, expected string) *replicaState {
	if expected != "" {
		for i := range states {
			if states[i].exists && states[i].hash == expected {
				return &states[i]
			}
		}
	}
	for i := range states {
		if states[i].exists && states[i].hash != "" {
			return &states[i]
		}
	}
	return nil
}
