package calculator

import (
	"errors"

	"FearGreedTracker/internal/model"
)

// CalculateSMA computes the simple moving average of the last period values.
func CalculateSMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}

// TrailingMean averages the most recent n observations. Input is ascending
// by date; with fewer than n rows every row is used.
func TrailingMean(obs []model.Observation, n int) float64 {
	if len(obs) == 0 || n <= 0 {
		return 0
	}
	if n > len(obs) {
		n = len(obs)
	}
	avg, _ := CalculateSMA(extractValues(obs), n)
	return avg
}

func extractValues(obs []model.Observation) []float64 {
	values := make([]float64, len(obs))
	for i, o := range obs {
		values[i] = float64(o.Value)
	}
	return values
}
