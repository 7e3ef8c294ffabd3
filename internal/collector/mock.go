package collector

import (
	"context"
	"sync"
	"time"
)

// MockFetcher returns controllable fixed data for development and testing.
// With Responses set, call i returns Responses[i] (the last entry repeats).
// Otherwise it returns every Data point on or after the requested start.
type MockFetcher struct {
	Data      []RawObservation
	Responses []MockResponse
	Loc       *time.Location

	mu    sync.Mutex
	calls []time.Time
}

// MockResponse is one scripted Fetch result.
type MockResponse struct {
	Data []RawObservation
	Err  error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) Fetch(ctx context.Context, start time.Time) ([]RawObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	n := len(m.calls)
	m.calls = append(m.calls, start)
	m.mu.Unlock()

	if len(m.Responses) > 0 {
		if n >= len(m.Responses) {
			n = len(m.Responses) - 1
		}
		r := m.Responses[n]
		return r.Data, r.Err
	}

	day := start.Format("2006-01-02")
	var out []RawObservation
	for _, o := range m.Data {
		if DateOf(o.TimestampMs, m.Loc) >= day {
			out = append(out, o)
		}
	}
	return out, nil
}

// Calls returns the start dates Fetch was called with, in order.
func (m *MockFetcher) Calls() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.calls...)
}

// GenerateMockSeries builds count daily observations ending at end, one per
// calendar day at midnight UTC, with values cycling through 0-100.
func GenerateMockSeries(end time.Time, count int) []RawObservation {
	obs := make([]RawObservation, count)
	base := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		day := base.AddDate(0, 0, -(count - 1 - i))
		obs[i] = RawObservation{
			TimestampMs: day.UnixMilli(),
			Value:       float64(10+(i*7)%85) + 0.4,
		}
	}
	return obs
}
