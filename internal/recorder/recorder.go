// Package recorder keeps a history of update pipeline runs.
package recorder

import (
	"context"
	"time"

	"FearGreedTracker/internal/model"
)

// Run is one recorded update.
type Run struct {
	RunID      string    `db:"run_id" json:"run_id"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	Mode       string    `db:"mode" json:"mode,omitempty"`
	Fetched    int       `db:"fetched" json:"fetched"`
	Rejected   int       `db:"rejected" json:"rejected"`
	Affected   int64     `db:"affected" json:"affected"`
	Status     string    `db:"status" json:"status,omitempty"`
	Backups    int       `db:"backups" json:"backups"`
	Committed  bool      `db:"committed" json:"committed"`
	Pushed     bool      `db:"pushed" json:"pushed"`
	Error      string    `db:"error" json:"error,omitempty"`
}

// FromUpdate flattens an update result.
func FromUpdate(res *model.UpdateResult) Run {
	r := Run{
		RunID:      res.RunID,
		StartedAt:  res.StartedAt.UTC(),
		FinishedAt: res.FinishedAt.UTC(),
		Backups:    len(res.Backups),
		Committed:  res.Committed,
		Pushed:     res.Pushed,
	}
	if s := res.Sync; s != nil {
		r.Mode = string(s.Mode)
		r.Fetched, r.Rejected, r.Affected = s.Fetched, s.Rejected, s.Affected
		r.Status = s.StatusMessage
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

// OK reports whether the run finished without error.
func (r Run) OK() bool { return r.Error == "" }

// Recorder persists update runs.
type Recorder interface {
	RecordUpdate(ctx context.Context, res *model.UpdateResult) error
	// Recent returns up to n runs, newest first.
	Recent(ctx context.Context, n int) ([]Run, error)
	Close() error
}
