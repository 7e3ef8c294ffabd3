package calculator

import (
	"errors"

	"FearGreedTracker/internal/model"
)

// Extremes returns the lowest and highest observations. Ties keep the
// earliest date.
func Extremes(obs []model.Observation) (low, high model.Observation, err error) {
	if len(obs) == 0 {
		return low, high, errors.New("no observations provided")
	}
	low, high = obs[0], obs[0]
	for _, o := range obs[1:] {
		if o.Value < low.Value {
			low = o
		}
		if o.Value > high.Value {
			high = o
		}
	}
	return low, high, nil
}

// Position returns where value sits between low and high (0.0~1.0).
func Position(value, low, high int) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := float64(value-low) / float64(high-low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}
