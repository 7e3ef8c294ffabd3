package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"FearGreedTracker/internal/model"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists observations to a SQLite database.
type SQLiteStore struct {
	db   *sqlx.DB
	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

// BusyTimeoutMillis is how long a connection waits on a locked database.
const BusyTimeoutMillis = 5000

// DSN returns the driver name for path with the per-connection pragmas set.
// Pragmas in the DSN run on every pooled connection, not just the first.
func DSN(path string) string {
	// WAL lets the status API read while a sync writes.
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, BusyTimeoutMillis)
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fng_data (
			date       TEXT PRIMARY KEY,
			value      INTEGER NOT NULL CHECK (value BETWEEN 0 AND 100),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_date ON fng_data(date)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec %q: %w", q[:40], err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Snapshot writes a consistent copy of the database to dst, including pages
// still in the WAL. An existing dst is replaced.
func (s *SQLiteStore) Snapshot(ctx context.Context, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	return nil
}

const upsertSQL = `INSERT INTO fng_data (date, value, created_at, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(date) DO UPDATE SET
		value = excluded.value,
		updated_at = CURRENT_TIMESTAMP
	WHERE fng_data.value <> excluded.value`

func (s *SQLiteStore) Upsert(ctx context.Context, obs []model.Observation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	if err := ValidateBatch(obs); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, &WriteError{Op: "begin", Count: len(obs), Err: err}
	}
	defer tx.Rollback() // no-op after commit

	stmt, err := tx.PreparexContext(ctx, upsertSQL)
	if err != nil {
		return 0, &WriteError{Op: "prepare", Count: len(obs), Err: err}
	}
	defer stmt.Close()

	var affected int64
	for _, o := range obs {
		res, err := stmt.ExecContext(ctx, o.Date, o.Value)
		if err != nil {
			return 0, &WriteError{Op: "upsert " + o.Date, Count: len(obs), Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, &WriteError{Op: "rows affected", Count: len(obs), Err: err}
		}
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, &WriteError{Op: "commit", Count: len(obs), Err: err}
	}
	s.log.Debug().Int("records", len(obs)).Int64("affected", affected).Msg("upsert committed")
	return affected, nil
}

func (s *SQLiteStore) LatestDate(ctx context.Context) (string, bool, error) {
	return s.dateAggregate(ctx, "SELECT MAX(date) FROM fng_data WHERE value > 0")
}

func (s *SQLiteStore) EarliestDate(ctx context.Context) (string, bool, error) {
	return s.dateAggregate(ctx, "SELECT MIN(date) FROM fng_data WHERE value > 0")
}

func (s *SQLiteStore) dateAggregate(ctx context.Context, q string) (string, bool, error) {
	var d sql.NullString
	if err := s.db.GetContext(ctx, &d, q); err != nil {
		return "", false, fmt.Errorf("query date: %w", err)
	}
	return d.String, d.Valid, nil
}

func (s *SQLiteStore) Range(ctx context.Context, start, end string) ([]model.Observation, error) {
	var obs []model.Observation
	err := s.db.SelectContext(ctx, &obs, `SELECT date, value FROM fng_data
		WHERE date BETWEEN ? AND ? AND value > 0
		ORDER BY date ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	return obs, nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]model.Observation, error) {
	var obs []model.Observation
	err := s.db.SelectContext(ctx, &obs, `SELECT date, value FROM fng_data
		WHERE value > 0
		ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	return obs, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM fng_data WHERE value > 0"); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite store")
	return s.db.Close()
}
