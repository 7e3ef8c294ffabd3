package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/store"
)

func update(id string, started time.Time, err error) *model.UpdateResult {
	return &model.UpdateResult{
		RunID:      id,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Sync: &model.SyncResult{
			Mode:          model.ModeIncremental,
			Fetched:       3,
			Rejected:      1,
			Affected:      2,
			StatusMessage: "fetched 2 records, 2 changed, 1 rejected",
		},
		Backups:   []string{"a", "b"},
		Committed: true,
		Err:       err,
	}
}

func TestFromUpdate(t *testing.T) {
	start := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	r := FromUpdate(update("r1", start, nil))
	assert.Equal(t, "INCREMENTAL", r.Mode)
	assert.Equal(t, int64(2), r.Affected)
	assert.Equal(t, 2, r.Backups)
	assert.True(t, r.OK())

	r = FromUpdate(&model.UpdateResult{RunID: "r2", Err: errors.New("boom")})
	assert.Empty(t, r.Mode)
	assert.Equal(t, "boom", r.Error)
	assert.False(t, r.OK())
}

func TestSQLiteRecorder(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"), zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	require.NoError(t, rec.RecordUpdate(ctx, update("r1", start, nil)))
	require.NoError(t, rec.RecordUpdate(ctx, update("r2", start.Add(24*time.Hour), errors.New("sync: exhausted"))))
	require.NoError(t, rec.RecordUpdate(ctx, update("r3", start.Add(48*time.Hour), nil)))

	runs, err := rec.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].RunID)
	assert.Equal(t, "r2", runs[1].RunID)
	assert.Equal(t, "sync: exhausted", runs[1].Error)
	assert.True(t, runs[0].Committed)
	assert.Equal(t, 1, runs[0].Rejected)
	assert.True(t, runs[0].StartedAt.Equal(start.Add(48*time.Hour)))

	none, err := rec.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteRecorder_SharesStoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fng_data.db")
	a, err := NewSQLiteRecorder(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.RecordUpdate(context.Background(), update("r1", time.Now(), nil)))
	require.NoError(t, a.Close())

	b, err := NewSQLiteRecorder(path, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()
	runs, err := b.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteRecorder_BusyTimeoutOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "fng.db"), zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()

	for i := 0; i < 3; i++ {
		c, err := r.db.Connx(ctx)
		require.NoError(t, err)
		defer c.Close()

		var timeout int
		require.NoError(t, c.GetContext(ctx, &timeout, "PRAGMA busy_timeout"))
		assert.Equal(t, store.BusyTimeoutMillis, timeout, "conn %d", i)
	}
}
