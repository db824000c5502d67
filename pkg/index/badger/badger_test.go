package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kydras/kydrastore/pkg/index"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertGetRemove(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := index.Record{
		PoolID:      "p1",
		RelPath:     "docs/a.txt",
		DriveRoot:   "/mnt/a",
		SizeBytes:   5,
		SHA256:      "AAAA",
		ModifiedUTC: time.Now().UTC(),
	}
	require.NoError(t, s.Upsert(ctx, rec))

	records, err := s.GetReplicas(ctx, "p1", "docs/a.txt")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "AAAA", records[0].SHA256)

	require.NoError(t, s.Remove(ctx, "p1", "docs/a.txt", "/mnt/a"))
	records, err = s.GetReplicas(ctx, "p1", "docs/a.txt")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPrefixScanDoesNotLeakSiblings(t *testing.T) {
	// Rows for "docs/a.txt" must not surface under "docs/a".
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Upsert(ctx, index.Record{PoolID: "p1", RelPath: "docs/a", DriveRoot: "/d1", SHA256: "SHORT"}))
	require.NoError(t, s.Upsert(ctx, index.Record{PoolID: "p1", RelPath: "docs/a.txt", DriveRoot: "/d1", SHA256: "LONG"}))

	records, err := s.GetReplicas(ctx, "p1", "docs/a")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "SHORT", records[0].SHA256)
}

func TestMultipleDriveRoots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, root := range []string{"/d1", "/d2", "/d3"} {
		require.NoError(t, s.Upsert(ctx, index.Record{PoolID: "p1", RelPath: "a", DriveRoot: root, SHA256: "AAAA"}))
	}

	records, err := s.GetReplicas(ctx, "p1", "a")
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
