package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FearGreedTracker/internal/model"
)

// implementations runs each test against both stores.
func implementations(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fng.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"sqlite": sq,
		"memory": NewMemoryStore(),
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	ctx := context.Background()
	batch := []model.Observation{
		{Date: "2021-01-01", Value: 10},
		{Date: "2021-01-02", Value: 60},
	}
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			n, err := s.Upsert(ctx, batch)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			n, err = s.Upsert(ctx, batch)
			require.NoError(t, err)
			assert.Equal(t, int64(0), n, "unchanged re-apply must not report changes")

			all, err := s.All(ctx)
			require.NoError(t, err)
			assert.Equal(t, batch, all)
		})
	}
}

func TestUpsert_UpdatesChangedValue(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Upsert(ctx, []model.Observation{{Date: "2021-01-01", Value: 10}})
			require.NoError(t, err)

			n, err := s.Upsert(ctx, []model.Observation{
				{Date: "2021-01-01", Value: 11},
				{Date: "2021-01-03", Value: 40},
			})
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			all, err := s.All(ctx)
			require.NoError(t, err)
			assert.Equal(t, []model.Observation{
				{Date: "2021-01-01", Value: 11},
				{Date: "2021-01-03", Value: 40},
			}, all)
		})
	}
}

func TestUpsert_RejectsInvalidBatchAtomically(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Upsert(ctx, []model.Observation{
				{Date: "2021-01-01", Value: 10},
				{Date: "2021-01-02", Value: 150},
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidObservation))

			_, err = s.Upsert(ctx, []model.Observation{{Date: "01/03/2021", Value: 10}})
			assert.True(t, errors.Is(err, ErrInvalidObservation))

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n, "nothing from a rejected batch may be written")
		})
	}
}

func TestReadPaths_ExcludeZeroSentinel(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Upsert(ctx, []model.Observation{
				{Date: "2021-01-01", Value: 30},
				{Date: "2021-01-02", Value: 0},
				{Date: "2021-01-05", Value: 70},
				{Date: "2021-01-09", Value: 0},
			})
			require.NoError(t, err)

			latest, ok, err := s.LatestDate(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "2021-01-05", latest)

			earliest, ok, err := s.EarliestDate(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "2021-01-01", earliest)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			all, err := s.All(ctx)
			require.NoError(t, err)
			for _, o := range all {
				assert.Greater(t, o.Value, 0)
				assert.LessOrEqual(t, o.Value, 100)
			}
		})
	}
}

func TestRange_InclusiveAscending(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Upsert(ctx, []model.Observation{
				{Date: "2021-01-04", Value: 44},
				{Date: "2021-01-01", Value: 11},
				{Date: "2021-01-03", Value: 33},
				{Date: "2021-01-02", Value: 22},
			})
			require.NoError(t, err)

			got, err := s.Range(ctx, "2021-01-02", "2021-01-03")
			require.NoError(t, err)
			assert.Equal(t, []model.Observation{
				{Date: "2021-01-02", Value: 22},
				{Date: "2021-01-03", Value: 33},
			}, got)
		})
	}
}

func TestEmptyStore(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.LatestDate(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			all, err := s.All(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)

			n, err := s.Upsert(ctx, nil)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fng.db")

	s, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.Upsert(ctx, []model.Observation{{Date: "2021-01-01", Value: 10}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, path, s.Path())
}

func TestSQLiteStore_SnapshotIncludesWAL(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "fng.db")

	s, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Upsert(ctx, []model.Observation{
		{Date: "2021-01-01", Value: 10},
		{Date: "2021-01-02", Value: 60},
		{Date: "2021-01-03", Value: 75},
	})
	require.NoError(t, err)
	require.FileExists(t, path+"-wal", "rows should still be in the WAL")

	tests := []struct {
		name string
		dst  string
	}{
		{"new file in new dir", filepath.Join(dir, "backups", "fng_1.db")},
		{"existing file replaced", filepath.Join(dir, "fng_2.db")},
	}
	require.NoError(t, os.WriteFile(tests[1].dst, []byte("stale"), 0o644))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.Snapshot(ctx, tt.dst))

			cp, err := NewSQLiteStore(tt.dst, zerolog.Nop())
			require.NoError(t, err)
			defer cp.Close()
			n, err := cp.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

func TestSQLiteStore_PragmasOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fng.db"), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	// Hold several connections at once so the pool must open new ones.
	var conns []*sqlx.Conn
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	for i := 0; i < 3; i++ {
		c, err := s.db.Connx(ctx)
		require.NoError(t, err)
		conns = append(conns, c)
	}
	for i, c := range conns {
		var timeout int
		require.NoError(t, c.GetContext(ctx, &timeout, "PRAGMA busy_timeout"))
		assert.Equal(t, BusyTimeoutMillis, timeout, "conn %d", i)

		var mode string
		require.NoError(t, c.GetContext(ctx, &mode, "PRAGMA journal_mode"))
		assert.Equal(t, "wal", mode, "conn %d", i)
	}
}

func TestSQLiteStore_ClosedDatabaseIsWriteError(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fng.db"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Upsert(context.Background(), []model.Observation{{Date: "2021-01-01", Value: 10}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrite))

	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, 1, we.Count)
}

func TestMemoryStore_FailUpsert(t *testing.T) {
	m := NewMemoryStore()
	m.FailUpsert = errors.New("disk full")

	_, err := m.Upsert(context.Background(), []model.Observation{{Date: "2021-01-01", Value: 10}})
	assert.True(t, errors.Is(err, ErrWrite))
	assert.Contains(t, err.Error(), "disk full")
}
