package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kydras/kydrastore/pkg/fsops"
	"github.com/kydras/kydrastore/pkg/index/memory"
	"github.com/kydras/kydrastore/pkg/pool"
)

// SHA-256 of "hello", uppercase.
const helloHash = "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824"

type fixture struct {
	eng    *Engine
	idx    *memory.Store
	pool   *pool.Pool
	drives []string
}

// newFixture creates an engine with one pool over n temp-dir drives and a
// catch-all rule at the given duplication level.
func newFixture(t *testing.T, n, duplication int) *fixture {
	t.Helper()

	idx := memory.New()
	eng := New(idx, nil)

	drives := make([]string, n)
	for i := range drives {
		drives[i] = t.TempDir()
	}

	p, err := eng.CreatePool("test", drives, pool.TypeMirror)
	require.NoError(t, err)
	require.NoError(t, eng.AddRule(p.ID, pool.Rule{Pattern: "**", DuplicationLevel: duplication}))

	return &fixture{eng: eng, idx: idx, pool: p, drives: drives}
}

func (f *fixture) replicaPath(drive int, rel string) string {
	return filepath.Join(f.drives[drive], filepath.FromSlash(rel))
}

// assertNoSideFiles fails if any .2pc/.tmp/.bak_ leftovers exist on any drive.
func (f *fixture) assertNoSideFiles(t *testing.T) {
	t.Helper()
	for _, root := range f.drives {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				assert.False(t, fsops.IsSideFile(info.Name()), "side file left behind: %s", path)
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func TestWrite_ReplicatesToAllDrives(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()

	require.NoError(t, f.eng.Write(ctx, f.pool.ID, "docs/a.txt", strings.NewReader("hello")))

	for i := range f.drives {
		path := f.replicaPath(i, "docs/a.txt")
		data, err := os.ReadFile(path)
		require.NoError(t, err, "replica missing on drive %d", i)
		assert.Equal(t, "hello", string(data))

		hash, err := fsops.HashFile(path)
		require.NoError(t, err)
		assert.Equal(t, helloHash, hash)
	}

	records, err := f.idx.GetReplicas(ctx, f.pool.ID, filepath.FromSlash("docs/a.txt"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, helloHash, rec.SHA256)
		assert.Equal(t, int64(5), rec.SizeBytes)
	}

	f.assertNoSideFiles(t)
}

func TestWrite_SingleReplicaPrefersFasterDrive(t *testing.T) {
	f := newFixture(t, 2, 1)
	f.pool.Rules = []pool.Rule{{Pattern: "*.mp4", DuplicationLevel: 1, PreferSSD: true}}
	f.pool.Drives[0].Class = pool.DriveClassHDD
	f.pool.Drives[1].Class = pool.DriveClassSSD

	require.NoError(t, f.eng.Write(context.Background(), f.pool.ID, "film.mp4", strings.NewReader("movie-bytes")))

	assert.NoFileExists(t, f.replicaPath(0, "film.mp4"))
	assert.FileExists(t, f.replicaPath(1, "film.mp4"))
}

func TestWrite_InsufficientReplicas(t *testing.T) {
	f := newFixture(t, 2, 3)

	err := f.eng.Write(context.Background(), f.pool.ID, "docs/a.txt", strings.NewReader("hello"))
	require.ErrorIs(t, err, ErrInsufficientReplicas)

	// Nothing staged or promoted anywhere.
	for i := range f.drives {
		entries, err := os.ReadDir(f.drives[i])
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestWrite_InvalidPath(t *testing.T) {
	f := newFixture(t, 2, 1)

	err := f.eng.Write(context.Background(), f.pool.ID, "../escape.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestWrite_UnknownPool(t *testing.T) {
	f := newFixture(t, 1, 1)

	err := f.eng.Write(context.Background(), "no-such-pool", "a.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestWrite_NonSeekableStreamWithReplication(t *testing.T) {
	f := newFixture(t, 2, 2)

	err := f.eng.Write(context.Background(), f.pool.ID, "a.txt", onlyReader{strings.NewReader("x")})
	require.Error(t, err)
	f.assertNoSideFiles(t)
}

// onlyReader hides the Seek method of the wrapped reader.
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func TestWrite_OverwriteReplacesAllReplicas(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()

	require.NoError(t, f.eng.Write(ctx, f.pool.ID, "a.txt", strings.NewReader("first")))
	require.NoError(t, f.eng.Write(ctx, f.pool.ID, "a.txt", strings.NewReader("second")))

	for i := range f.drives {
		data, err := os.ReadFile(f.replicaPath(i, "a.txt"))
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	}
	f.assertNoSideFiles(t)
}

func TestRead_ServesContent(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()

	require.NoError(t, f.eng.Write(ctx, f.pool.ID, "docs/a.txt", strings.NewReader("hello")))

	stream, err := f.eng.Read(ctx, f.pool.ID, "docs/a.txt")
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestRead_HealsMissingReplica(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()

	require.NoError(t, f.eng.Write(ctx, f.pool.ID, "docs/a.txt", strings.NewReader("hello")))

	// Lose one replica out-of-band.
	require.NoError(t, os.Remove(f.replicaPath(1, "docs/a.txt")))

	stream, err := f.eng.Read(ctx, f.pool.ID, "docs/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	stream.Close()
	assert.Equal(t, "hello", string(data))

	// The lost replica is back with the right content.
	hash, err := fsops.HashFile(f.replicaPath(1, "docs/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, helloHash, hash)
}

func TestRead_HealsDivergentReplica(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()

	require.NoError(t, f.eng.Write(ctx, f.pool.ID, "docs/a.txt", strings.NewReader("hello")))

	// Corrupt one replica out-of-band. The index still expects "hello".
	require.NoError(t, os.WriteFile(f.replicaPath(1, "docs/a.txt"), []byte("HELLO"), 0644))

	stream, err := f.eng.Read(ctx, f.pool.ID, "docs/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	stream.Close()

	// The served content matches the recorded hash, not the corruption.
	assert.Equal(t, "hello", string(data))

	restored, err := os.ReadFile(f.replicaPath(1, "docs/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(restored))
}

func TestRead_NoReplicaAnywhere(t *testing.T) {
	f := newFixture(t, 2, 2)

	_, err := f.eng.Read(context.Background(), f.pool.ID, "ghost.txt")
	assert.Error(t, err)
}

func TestDelete_RemovesAllReplicasAndRows(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()

	require.NoError(t, f.eng.Write(ctx, f.pool.ID, "docs/a.txt", strings.NewReader("hello")))
	require.NoError(t, f.eng.Delete(ctx, f.pool.ID, "docs/a.txt"))

	for i := range f.drives {
		assert.NoFileExists(t, f.replicaPath(i, "docs/a.txt"))
	}

	records, err := f.idx.GetReplicas(ctx, f.pool.ID, filepath.FromSlash("docs/a.txt"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExists(t *testing.T) {
	f := newFixture(t, 2, 1)
	ctx := context.Background()

	assert.False(t, f.eng.Exists(f.pool.ID, "a.txt"))
	require.NoError(t, f.eng.Write(ctx, f.pool.ID, "a.txt", strings.NewReader("x")))
	assert.True(t, f.eng.Exists(f.pool.ID, "a.txt"))

	assert.False(t, f.eng.Exists("no-such-pool", "a.txt"))
	assert.False(t, f.eng.Exists(f.pool.ID, "../a.txt"))
}

func TestList(t *testing.T) {
	f := newFixture(t, 2, 1)
	ctx := context.Background()

	require.NoError(t, f.eng.Write(ctx, f.pool.ID, "a.txt", strings.NewReader("1")))
	require.NoError(t, f.eng.Write(ctx, f.pool.ID, "b.log", strings.NewReader("2")))

	all, err := f.eng.List(f.pool.ID, "*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.log"}, all)

	logs, err := f.eng.List(f.pool.ID, "*.log")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.log"}, logs)
}

func TestRebalance_EvictsExcessReplica(t *testing.T) {
	f := newFixture(t, 3, 2)
	ctx := context.Background()

	// Place the file on all three drives out-of-band.
	for i := range f.drives {
		require.NoError(t, os.WriteFile(f.replicaPath(i, "a.txt"), []byte("hello"), 0644))
	}

	require.NoError(t, f.eng.Rebalance(ctx, f.pool.ID))

	remaining := 0
	for i := range f.drives {
		if _, err := os.Stat(f.replicaPath(i, "a.txt")); err == nil {
			hash, err := fsops.HashFile(f.replicaPath(i, "a.txt"))
			require.NoError(t, err)
			assert.Equal(t, helloHash, hash)
			remaining++
		}
	}
	assert.Equal(t, 2, remaining)
}

func TestRebalance_AddsMissingReplica(t *testing.T) {
	f := newFixture(t, 3, 2)
	ctx := context.Background()

	// Only one drive holds the file.
	require.NoError(t, os.WriteFile(f.replicaPath(0, "a.txt"), []byte("hello"), 0644))

	require.NoError(t, f.eng.Rebalance(ctx, f.pool.ID))

	count := 0
	for i := range f.drives {
		if _, err := os.Stat(f.replicaPath(i, "a.txt")); err == nil {
			hash, err := fsops.HashFile(f.replicaPath(i, "a.txt"))
			require.NoError(t, err)
			assert.Equal(t, helloHash, hash)
			count++
		}
	}
	assert.Equal(t, 2, count)

	records, err := f.idx.GetReplicas(ctx, f.pool.ID, "a.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestRebalance_CappedByEligibleDrives(t *testing.T) {
	// Duplication 3 over 2 drives: every eligible drive ends up holding a
	// replica.
	f := newFixture(t, 2, 3)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(f.replicaPath(0, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, f.eng.Rebalance(ctx, f.pool.ID))

	for i := range f.drives {
		assert.FileExists(t, f.replicaPath(i, "a.txt"))
	}
}

func TestRebalance_UnknownPool(t *testing.T) {
	f := newFixture(t, 1, 1)
	err := f.eng.Rebalance(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestSweepStale(t *testing.T) {
	f := newFixture(t, 2, 1)

	stale := []string{
		filepath.Join(f.drives[0], "a.txt."+fsops.UniqueHex()+".2pc"),
		filepath.Join(f.drives[0], "b.txt."+fsops.UniqueHex()+".tmp"),
		filepath.Join(f.drives[1], "c.txt.bak_"+fsops.UniqueHex()),
	}
	for _, path := range stale {
		require.NoError(t, os.WriteFile(path, []byte("junk"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(f.drives[0], "keep.txt"), []byte("real"), 0644))

	removed, err := f.eng.SweepStale(f.pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	for _, path := range stale {
		assert.NoFileExists(t, path)
	}
	assert.FileExists(t, filepath.Join(f.drives[0], "keep.txt"))
}

func TestCreatePool_Validation(t *testing.T) {
	eng := New(memory.New(), nil)

	_, err := eng.CreatePool("", []string{t.TempDir()}, pool.TypeJBOD)
	assert.ErrorIs(t, err, ErrArgEmpty)

	_, err = eng.CreatePool("empty", nil, pool.TypeJBOD)
	assert.ErrorIs(t, err, ErrArgEmpty)
}

func TestAddRemoveDrive(t *testing.T) {
	eng := New(memory.New(), nil)
	p, err := eng.CreatePool("pool", []string{t.TempDir()}, pool.TypeJBOD)
	require.NoError(t, err)

	extra := t.TempDir()
	require.NoError(t, eng.AddDrive(p.ID, extra))
	assert.Len(t, p.Drives, 2)

	// Adding the same root again is rejected.
	assert.Error(t, eng.AddDrive(p.ID, extra))

	// Removal drops membership but leaves files alone.
	marker := filepath.Join(extra, "still-here.txt")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0644))
	require.NoError(t, eng.RemoveDrive(p.ID, extra))
	assert.Len(t, p.Drives, 1)
	assert.FileExists(t, marker)

	assert.Error(t, eng.RemoveDrive(p.ID, extra))
	assert.ErrorIs(t, eng.AddDrive("nope", extra), ErrPoolNotFound)
}

func TestListPools(t *testing.T) {
	eng := New(memory.New(), nil)
	require.Empty(t, eng.ListPools())

	p1, err := eng.CreatePool("one", []string{t.TempDir()}, pool.TypeJBOD)
	require.NoError(t, err)
	p2, err := eng.CreatePool("two", []string{t.TempDir()}, pool.TypeJBOD)
	require.NoError(t, err)

	pools := eng.ListPools()
	require.Len(t, pools, 2)
	assert.NotNil(t, eng.GetPool(p1.ID))
	assert.NotNil(t, eng.GetPool(p2.ID))
	assert.Nil(t, eng.GetPool("missing"))

	var readErr error
	_, readErr = eng.Read(context.Background(), "missing", "a.txt")
	assert.ErrorIs(t, readErr, ErrPoolNotFound)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "invalid_path", errorKind(ErrInvalidPath))
	assert.Equal(t, "pool_not_found", errorKind(ErrPoolNotFound))
	assert.Equal(t, "insufficient_replicas", errorKind(ErrInsufficientReplicas))
	assert.Equal(t, "integrity_mismatch", errorKind(ErrIntegrityMismatch))
	assert.Equal(t, "io_failure", errorKind(errors.New("disk on fire")))
}
