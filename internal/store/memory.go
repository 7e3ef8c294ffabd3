package store

import (
	"context"
	"sort"
	"sync"

	"FearGreedTracker/internal/model"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used for tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]int

	// FailUpsert, when set, is returned from Upsert wrapped in a WriteError.
	FailUpsert error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]int)}
}

func (m *MemoryStore) Upsert(_ context.Context, obs []model.Observation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	if err := ValidateBatch(obs); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpsert != nil {
		return 0, &WriteError{Op: "upsert", Count: len(obs), Err: m.FailUpsert}
	}

	var affected int64
	for _, o := range obs {
		if v, ok := m.data[o.Date]; ok && v == o.Value {
			continue
		}
		m.data[o.Date] = o.Value
		affected++
	}
	return affected, nil
}

func (m *MemoryStore) LatestDate(_ context.Context) (string, bool, error) {
	obs := m.sorted("", "")
	if len(obs) == 0 {
		return "", false, nil
	}
	return obs[len(obs)-1].Date, true, nil
}

func (m *MemoryStore) EarliestDate(_ context.Context) (string, bool, error) {
	obs := m.sorted("", "")
	if len(obs) == 0 {
		return "", false, nil
	}
	return obs[0].Date, true, nil
}

func (m *MemoryStore) Range(_ context.Context, start, end string) ([]model.Observation, error) {
	return m.sorted(start, end), nil
}

func (m *MemoryStore) All(_ context.Context) ([]model.Observation, error) {
	return m.sorted("", ""), nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	return len(m.sorted("", "")), nil
}

func (m *MemoryStore) Close() error { return nil }

// sorted returns value>0 observations within [start, end]; empty bounds are open.
// ISO dates compare correctly as strings.
func (m *MemoryStore) sorted(start, end string) []model.Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obs := make([]model.Observation, 0, len(m.data))
	for d, v := range m.data {
		if v <= 0 {
			continue
		}
		if start != "" && d < start {
			continue
		}
		if end != "" && d > end {
			continue
		}
		obs = append(obs, model.Observation{Date: d, Value: v})
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].Date < obs[j].Date })
	return obs
}
