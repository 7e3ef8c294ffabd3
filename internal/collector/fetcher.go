package collector

import (
	"context"
	"time"

	"FearGreedTracker/internal/model"
)

// RawObservation is one remote data point before validation.
type RawObservation struct {
	TimestampMs int64
	Value       float64
}

// Fetcher retrieves every remote observation from start onwards.
// An empty result with a nil error means the source had no data.
type Fetcher interface {
	Fetch(ctx context.Context, start time.Time) ([]RawObservation, error)
	Name() string
}

// DateOf converts an epoch-millisecond timestamp into a calendar date in loc.
// The date depends on loc for timestamps near midnight; callers pick the
// location once from configuration (time.Local unless a timezone is set).
func DateOf(timestampMs int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(timestampMs/1000, 0).In(loc).Format(model.DateLayout)
}
