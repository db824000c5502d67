package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kydras/kydrastore/pkg/index"
)

func record(pool, rel, root, hash string) index.Record {
	return index.Record{
		PoolID:      pool,
		RelPath:     rel,
		DriveRoot:   root,
		SizeBytes:   5,
		SHA256:      hash,
		ModifiedUTC: time.Now().UTC(),
	}
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, record("p1", "docs/a.txt", "/d1", "AAAA")))
	require.NoError(t, s.Upsert(ctx, record("p1", "docs/a.txt", "/d2", "AAAA")))
	require.NoError(t, s.Upsert(ctx, record("p1", "docs/b.txt", "/d1", "BBBB")))

	records, err := s.GetReplicas(ctx, "p1", "docs/a.txt")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "/d1", records[0].DriveRoot)
	assert.Equal(t, "/d2", records[1].DriveRoot)
}

func TestUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, record("p1", "a", "/d1", "OLD")))
	require.NoError(t, s.Upsert(ctx, record("p1", "a", "/d1", "NEW")))

	records, err := s.GetReplicas(ctx, "p1", "a")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "NEW", records[0].SHA256)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, record("p1", "a", "/d1", "AAAA")))
	require.NoError(t, s.Remove(ctx, "p1", "a", "/d1"))
	require.NoError(t, s.Remove(ctx, "p1", "a", "/d1")) // absent row is fine

	records, err := s.GetReplicas(ctx, "p1", "a")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestKeySeparation(t *testing.T) {
	// "a" and "a/b" must not shadow each other in prefix scans.
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, record("p1", "a", "/d1", "AAAA")))
	require.NoError(t, s.Upsert(ctx, record("p1", "a/b", "/d1", "BBBB")))

	records, err := s.GetReplicas(ctx, "p1", "a")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "AAAA", records[0].SHA256)
}
