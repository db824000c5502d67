// Package memory implements an in-memory replica index for tests and
// ephemeral runs. Nothing survives the process.
package memory

import (
	"context"
	"sync"

	"github.com/kydras/kydrastore/pkg/index"
)

// Store is a mutex-guarded in-memory replica index.
type Store struct {
	mu    sync.RWMutex
	rows  map[string]index.Record
	order []string
}

func New() *Store {
	return &Store{rows: make(map[string]index.Record)}
}

func key(poolID, relPath, driveRoot string) string {
	return poolID + "\x00" + relPath + "\x00" + driveRoot
}

func (s *Store) Upsert(ctx context.Context, rec index.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(rec.PoolID, rec.RelPath, rec.DriveRoot)
	if _, exists := s.rows[k]; !exists {
		s.order = append(s.order, k)
	}
	s.rows[k] = rec
	return nil
}

func (s *Store) Remove(ctx context.Context, poolID, relPath, driveRoot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(poolID, relPath, driveRoot)
	if _, exists := s.rows[k]; !exists {
		return nil
	}
	delete(s.rows, k)
	for i, existing := range s.order {
		if existing == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) GetReplicas(ctx context.Context, poolID, relPath string) ([]index.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := poolID + "\x00" + relPath + "\x00"
	var records []index.Record
	for _, k := range s.order {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			records = append(records, s.rows[k])
		}
	}
	return records, nil
}

func (s *Store) Close() error {
	return nil
}
