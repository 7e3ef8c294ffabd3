package calculator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/store"
)

func series(values ...int) []model.Observation {
	obs := make([]model.Observation, len(values))
	for i, v := range values {
		obs[i] = model.Observation{Date: fmt.Sprintf("2021-01-%02d", i+1), Value: v}
	}
	return obs
}

func TestCalculateSMA(t *testing.T) {
	avg, err := CalculateSMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, avg, 1e-9)

	_, err = CalculateSMA([]float64{1}, 3)
	assert.Error(t, err)
	_, err = CalculateSMA([]float64{1}, 0)
	assert.Error(t, err)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Count)
	_, ok := s.Latest()
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	obs := series(10, 60, 33, 10, 60, 20, 25, 30, 35, 40)
	s := Summarize(obs)

	assert.Equal(t, 10, s.Count)
	assert.Equal(t, 10, s.Min)
	assert.Equal(t, "2021-01-01", s.MinDate, "ties keep the first occurrence")
	assert.Equal(t, 60, s.Max)
	assert.Equal(t, "2021-01-02", s.MaxDate)
	assert.Equal(t, "2021-01-10", s.LatestDate)
	assert.Equal(t, 40, s.LatestValue)
	assert.Equal(t, "2021-01-01", s.Earliest)
	assert.Equal(t, 32.3, s.Mean)
	// Last 7 rows: 10 60 20 25 30 35 40.
	assert.Equal(t, 31.43, s.Avg7d)
	// Fewer than 30 rows: every row counts.
	assert.Equal(t, 32.3, s.Avg30d)
	assert.InDelta(t, 31.5, s.Median, 2)
	assert.LessOrEqual(t, s.P10, s.Median)
	assert.LessOrEqual(t, s.Median, s.P90)
}

func TestSummarize_IgnoresZero(t *testing.T) {
	s := Summarize(series(0, 50, 70))
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 50, s.Min)
	assert.Equal(t, "2021-01-02", s.MinDate)
	assert.Equal(t, 60.0, s.Mean)
}

func TestDistribution(t *testing.T) {
	d := Distribution(series(24, 25, 44, 45, 54, 55, 74, 75, 100, 0))
	assert.Equal(t, 9, d.Total)
	assert.Equal(t, 1, d.Count(model.ExtremeFear))
	assert.Equal(t, 2, d.Count(model.Fear))
	assert.Equal(t, 2, d.Count(model.Neutral))
	assert.Equal(t, 2, d.Count(model.Greed))
	assert.Equal(t, 2, d.Count(model.ExtremeGreed))
	assert.InDelta(t, 22.22, d.Percent(model.Fear), 0.01)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	_, err := s.Upsert(ctx, []model.Observation{
		{Date: "2021-01-02", Value: 60},
		{Date: "2021-01-01", Value: 10},
	})
	require.NoError(t, err)

	sum, dist, err := Stats(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Min)
	assert.Equal(t, "2021-01-01", sum.MinDate)
	assert.Equal(t, 60, sum.Max)
	assert.Equal(t, "2021-01-02", sum.MaxDate)
	assert.Equal(t, 35.0, sum.Mean)
	assert.Equal(t, 1, dist.Count(model.ExtremeFear))
	assert.Equal(t, 1, dist.Count(model.Greed))
}

func TestExtremesAndPosition(t *testing.T) {
	_, _, err := Extremes(nil)
	assert.Error(t, err)

	tests := []struct {
		value, low, high int
		want             float64
	}{
		{50, 0, 100, 0.5},
		{10, 10, 10, 0.5},
		{120, 0, 100, 1},
		{-5, 0, 100, 0},
	}
	for _, tt := range tests {
		got, err := Position(tt.value, tt.low, tt.high)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9)
	}
	_, err = Position(1, 10, 0)
	assert.Error(t, err)
}
