package recorder

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/store"
)

var _ Recorder = (*SQLiteRecorder)(nil)

// SQLiteRecorder stores runs in the update_runs table. It may share the
// database file with the observation store.
type SQLiteRecorder struct {
	db  *sqlx.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sqlx.Open("sqlite", store.DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS update_runs (
			run_id      TEXT PRIMARY KEY,
			started_at  TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			mode        TEXT NOT NULL DEFAULT '',
			fetched     INTEGER NOT NULL DEFAULT 0,
			rejected    INTEGER NOT NULL DEFAULT 0,
			affected    INTEGER NOT NULL DEFAULT 0,
			status      TEXT NOT NULL DEFAULT '',
			backups     INTEGER NOT NULL DEFAULT 0,
			committed   BOOLEAN NOT NULL DEFAULT 0,
			pushed      BOOLEAN NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_update_runs_started ON update_runs(started_at)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordUpdate(ctx context.Context, res *model.UpdateResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := FromUpdate(res)
	_, err := r.db.NamedExecContext(ctx, `INSERT OR REPLACE INTO update_runs
		(run_id, started_at, finished_at, mode, fetched, rejected, affected,
		 status, backups, committed, pushed, error)
		VALUES (:run_id, :started_at, :finished_at, :mode, :fetched, :rejected, :affected,
		 :status, :backups, :committed, :pushed, :error)`, run)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	r.log.Debug().Str("run_id", run.RunID).Msg("run recorded")
	return nil
}

func (r *SQLiteRecorder) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	var runs []Run
	if err := r.db.SelectContext(ctx, &runs,
		`SELECT * FROM update_runs ORDER BY started_at DESC LIMIT ?`, n); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return runs, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
