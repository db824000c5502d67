// Package index defines the replica metadata index: a durable sidecar that
// records which replica is expected on which drive, keyed by
// (pool, relative path, drive root).
//
// The index is advisory. The files on disk are authoritative for content;
// the index records expectation and accelerates lookup. Losing it degrades
// read healing to "first hashable replica wins" until rows are rebuilt by
// subsequent writes and rebalances.
//
// Three backends implement the Index interface, selected through the config
// store factory: sqlite (the default durable store), badger, and an
// in-memory store for tests and ephemeral runs.
package index

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Record is one expected replica: the content digest and size the engine
// last observed for a relative path on a particular drive root.
type Record struct {
	PoolID    string
	RelPath   string
	DriveRoot string

	SizeBytes int64

	// SHA256 is the uppercase hex digest of the replica's content.
	SHA256 string

	// ModifiedUTC is when the engine last wrote or observed this replica.
	ModifiedUTC time.Time
}

// Index is the durable replica metadata store.
//
// Implementations must be safe for concurrent use. All mutations are
// single-row upserts or deletes; there are no multi-row transactions.
type Index interface {
	// Upsert inserts or replaces the row for the record's key.
	Upsert(ctx context.Context, rec Record) error

	// Remove deletes the row for the key. Removing an absent row is not an
	// error.
	Remove(ctx context.Context, poolID, relPath, driveRoot string) error

	// GetReplicas returns all rows for (poolID, relPath) in a stable order:
	// insertion order for the sqlite and memory backends, drive-root key
	// order for the badger backend. An empty result is not an error.
	GetReplicas(ctx context.Context, poolID, relPath string) ([]Record, error)

	Close() error
}

// DefaultPath returns the conventional sidecar database location under the
// per-user application-data directory. The parent directory is created on
// first use by the backend, not here.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "KydrasStorage", "kydras.db"), nil
}
