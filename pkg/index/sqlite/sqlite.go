// Package sqlite implements the replica index over an embedded SQLite
// database.
//
// This is the default durable backend. A single database file holds one
// table of replica rows; every engine operation runs a short single-row
// statement on a pooled connection. SQLite's own locking serializes
// concurrent writers, and the busy timeout makes lock contention wait
// instead of fail.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kydras/kydrastore/pkg/index"
)

const schema = `
CREATE TABLE IF NOT EXISTS replicas (
	pool_id      TEXT NOT NULL,
	rel_path     TEXT NOT NULL,
	drive_root   TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL,
	sha256       TEXT NOT NULL,
	modified_utc TEXT NOT NULL,
	PRIMARY KEY (pool_id, rel_path, drive_root)
);
CREATE INDEX IF NOT EXISTS idx_replicas_pool_path ON replicas (pool_id, rel_path);
`

// Store is the SQLite-backed replica index.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the replica index at path. The parent
// directory is created on first use.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	// Shared cache lets the pooled connections see one another's writes;
	// the busy timeout waits on SQLite's write lock instead of failing.
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_busy_timeout=15000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open replica index: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize replica schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Upsert(ctx context.Context, rec index.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO replicas (pool_id, rel_path, drive_root, size_bytes, sha256, modified_utc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (pool_id, rel_path, drive_root)
		DO UPDATE SET size_bytes = excluded.size_bytes,
		              sha256 = excluded.sha256,
		              modified_utc = excluded.modified_utc`,
		rec.PoolID, rec.RelPath, rec.DriveRoot,
		rec.SizeBytes, rec.SHA256, rec.ModifiedUTC.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert replica row: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, poolID, relPath, driveRoot string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM replicas WHERE pool_id = ? AND rel_path = ? AND drive_root = ?`,
		poolID, relPath, driveRoot,
	)
	if err != nil {
		return fmt.Errorf("failed to remove replica row: %w", err)
	}
	return nil
}

func (s *Store) GetReplicas(ctx context.Context, poolID, relPath string) ([]index.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pool_id, rel_path, drive_root, size_bytes, sha256, modified_utc
		FROM replicas
		WHERE pool_id = ? AND rel_path = ?
		ORDER BY rowid`,
		poolID, relPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query replica rows: %w", err)
	}
	defer rows.Close()

	var records []index.Record
	for rows.Next() {
		var rec index.Record
		var modified string
		if err := rows.Scan(&rec.PoolID, &rec.RelPath, &rec.DriveRoot,
			&rec.SizeBytes, &rec.SHA256, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan replica row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, modified); err == nil {
			rec.ModifiedUTC = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate replica rows: %w", err)
	}
	return records, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
