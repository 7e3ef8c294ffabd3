// Package store persists daily sentiment observations keyed by date.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FearGreedTracker/internal/model"
)

var (
	// ErrWrite marks a storage failure during Upsert. Nothing from the
	// failing batch was committed.
	ErrWrite = errors.New("store write failed")
	// ErrInvalidObservation marks a batch rejected before writing because a
	// record carried a malformed date or a value outside [0,100].
	ErrInvalidObservation = errors.New("invalid observation")
)

// Store is durable keyed storage of observations with upsert semantics.
// Read paths ignore rows whose value is 0, which is a "no data" sentinel.
type Store interface {
	// Upsert inserts absent dates and overwrites changed values in a single
	// atomic batch. It returns the number of rows whose content changed.
	Upsert(ctx context.Context, obs []model.Observation) (int64, error)

	// LatestDate returns the maximum date with a value above zero.
	LatestDate(ctx context.Context) (string, bool, error)

	// EarliestDate returns the minimum date with a value above zero.
	EarliestDate(ctx context.Context) (string, bool, error)

	// Range returns observations within [start, end] in ascending date order.
	Range(ctx context.Context, start, end string) ([]model.Observation, error)

	// All returns every observation in ascending date order.
	All(ctx context.Context) ([]model.Observation, error)

	// Count returns the number of observations with a value above zero.
	Count(ctx context.Context) (int, error)

	Close() error
}

// WriteError reports a failed Upsert batch.
type WriteError struct {
	Op    string
	Count int // size of the rejected batch
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store %s (%d records): %v", e.Op, e.Count, e.Err)
}

func (e *WriteError) Unwrap() []error { return []error{ErrWrite, e.Err} }

// ValidateBatch checks every record before anything is written.
func ValidateBatch(obs []model.Observation) error {
	for _, o := range obs {
		if _, err := time.Parse(model.DateLayout, o.Date); err != nil {
			return fmt.Errorf("%w: date %q", ErrInvalidObservation, o.Date)
		}
		if !model.ValidValue(o.Value) {
			return fmt.Errorf("%w: %s has value %d", ErrInvalidObservation, o.Date, o.Value)
		}
	}
	return nil
}
