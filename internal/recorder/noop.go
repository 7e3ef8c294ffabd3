package recorder

import (
	"context"

	"FearGreedTracker/internal/model"
)

// NoopRecorder is used when run history is disabled.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (NoopRecorder) RecordUpdate(context.Context, *model.UpdateResult) error { return nil }
func (NoopRecorder) Recent(context.Context, int) ([]Run, error)              { return nil, nil }
func (NoopRecorder) Close() error                                            { return nil }
