// Package badger implements the replica index over BadgerDB.
//
// This backend trades the relational shape of the sqlite store for an
// embedded key-value layout. It is useful where cgo is unavailable or where
// the index shares a badger directory with other state.
//
// Key Schema
// ==========
//
// One entry per replica row:
//
//	r:<pool_id>\x00<rel_path>\x00<drive_root>  →  Record (JSON)
//
// Fields are joined with NUL separators because pool IDs, relative paths,
// and drive roots can all contain the usual path punctuation. Rows for one
// (pool, rel_path) share the prefix up to the second NUL, so GetReplicas is
// a single prefix scan. The scan returns rows in key order, that is sorted
// by drive root; insertion order is not kept.
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kydras/kydrastore/pkg/index"
)

// Store is the BadgerDB-backed replica index.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a badger replica index in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger index: %w", err)
	}
	return &Store{db: db}, nil
}

func rowKey(poolID, relPath, driveRoot string) []byte {
	return []byte("r:" + poolID + "\x00" + relPath + "\x00" + driveRoot)
}

func scanPrefix(poolID, relPath string) []byte {
	return []byte("r:" + poolID + "\x00" + relPath + "\x00")
}

func (s *Store) Upsert(ctx context.Context, rec index.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode replica record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rowKey(rec.PoolID, rec.RelPath, rec.DriveRoot), value)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert replica record: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, poolID, relPath, driveRoot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(rowKey(poolID, relPath, driveRoot))
	})
	if err != nil {
		return fmt.Errorf("failed to remove replica record: %w", err)
	}
	return nil
}

func (s *Store) GetReplicas(ctx context.Context, poolID, relPath string) ([]index.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []index.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := scanPrefix(poolID, relPath)
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var rec index.Record
				if err := json.Unmarshal(value, &rec); err != nil {
					return fmt.Errorf("failed to decode replica record: %w", err)
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
