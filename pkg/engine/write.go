package engine

import (
	"context"
	"fmt"
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

// stagedReplica is one Phase-1 side file awaiting promotion.
type stagedReplica struct {
	drive    *pool.Drive
	tempPath string
	final    string
	size     int64
	hash     string
}

// Write stores the stream as a replicated file at relPath using two-phase
// commit.
//
// Phase 1 stages the content to a side file on every target drive and hashes
// it while streaming. If the staged hashes are not byte-identical across all
// targets the write aborts, cleans its side files, and returns
// ErrIntegrityMismatch. Phase 2 atomically promotes each side file onto its
// final path and records the replica in the index.
//
// Phase-2 partial failures are not rolled back: promoted replicas remain,
// and subsequent reads and rebalances converge the rest. When the rule
// requires more than one replica the stream must be seekable, because every
// target re-reads it from offset zero.
func (e *Engine) Write(ctx context.Context, poolID, relPath string, stream io.Reader) error {
	start := time.Now()

	err := e.write(ctx, poolID, relPath, stream, start)
	if err != nil {
		e.metrics.RecordError("write", errorKind(err))
	}
	return err
}

func (e *Engine) write(ctx context.Context, poolID, relPath string, stream io.Reader, start time.Time) error {
	p := e.GetPool(poolID)
	if p == nil {
		return ErrPoolNotFound
	}

	rel, err := relpath.Sanitize(relPath)
	if err != nil {
		return err
	}

	rule := p.ResolveRule(rel)
	duplication := rule.Replicas()

	seeker, seekable := stream.(io.Seeker)
	if duplication > 1 && !seekable {
		return fmt.Errorf("stream must be seekable for duplication level %d", duplication)
	}

	// Size is unknown until staging; rank with zero so only health and the
	// target-drive constraint filter. The free-space and MaxFileSize gates
	// pass every drive at size zero.
	targets := RankDrives(p, 0, rule)
	if len(targets) < duplication {
		return fmt.Errorf("need %d drives, %d eligible: %w", duplication, len(targets), ErrInsufficientReplicas)
	}
	targets = targets[:duplication]

	// Phase 1: stage to every target, hashing while streaming.
	staged := make([]stagedReplica, 0, duplication)
	cleanup := func() {
		for _, s := range staged {
			if err := os.Remove(s.tempPath); err != nil && !os.IsNotExist(err) {
				logger.Warn("could not remove staging file %s: %v", s.tempPath, err)
			}
		}
	}

	for i, drive := range targets {
		if seekable && i > 0 {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				cleanup()
				return fmt.Errorf("failed to rewind stream: %w", err)
			}
		}

		final := filepath.Join(drive.RootPath, rel)
		if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
			cleanup()
			return fmt.Errorf("failed to create parent directory on %s: %w", drive.RootPath, err)
		}

		tempPath := final + "." + fsops.UniqueHex() + ".2pc"
		size, hash, err := fsops.WriteAndHash(tempPath, stream)
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to stage replica on %s: %w", drive.RootPath, err)
		}

		staged = append(staged, stagedReplica{
			drive:    drive,
			tempPath: tempPath,
			final:    final,
			size:     size,
			hash:     hash,
		})
	}

	// Integrity gate: every staged copy must carry the same digest. A
	// stream that mutated between reads fails here too.
	for _, s := range staged[1:] {
		if s.hash != staged[0].hash {
			cleanup()
			return fmt.Errorf("staged replica digests diverge for %s: %w", rel, ErrIntegrityMismatch)
		}
	}

	// Phase 2: promote. Failures are logged and the error surfaces, but
	// already-promoted replicas stay in place.
	var promoteErr error
	now := time.Now().UTC()
	for _, s := range staged {
		if err := fsops.AtomicReplace(s.tempPath, s.final); err != nil {
			logger.Error("promote failed for %s on %s: %v", rel, s.drive.RootPath, err)
			if promoteErr == nil {
				promoteErr = err
			}
			if err := os.Remove(s.tempPath); err != nil && !os.IsNotExist(err) {
				logger.Warn("could not remove staging file %s: %v", s.tempPath, err)
			}
			continue
		}

		s.drive.Refresh()

		rec := index.Record{
			PoolID:      poolID,
			RelPath:     rel,
			DriveRoot:   s.drive.RootPath,
			SizeBytes:   s.size,
			SHA256:      s.hash,
			ModifiedUTC: now,
		}
		if err := e.idx.Upsert(ctx, rec); err != nil {
			logger.Warn("index upsert failed for %s on %s: %v", rel, s.drive.RootPath, err)
		}
	}
	if promoteErr != nil {
		return fmt.Errorf("phase 2 promotion incomplete for %s: %w", rel, promoteErr)
	}

	e.metrics.RecordWrite(staged[0].size, duplication, time.Since(start))
	logger.Debug("Wrote %s to %d drives in pool %s (%s)", rel, duplication, p.Name, staged[0].hash)
	return nil
}
