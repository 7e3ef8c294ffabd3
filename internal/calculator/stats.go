// Package calculator derives read-only statistics from stored observations.
package calculator

import (
	"context"
	"fmt"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/shopspring/decimal"

	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/store"
)

// Trailing window sizes, counted in rows rather than calendar days.
const (
	ShortWindow = 7
	LongWindow  = 30
)

// sketchAccuracy is the relative accuracy of percentile estimates.
const sketchAccuracy = 0.01

// Summarize computes summary statistics over obs, which must be ascending by
// date. Values of 0 are ignored. Averages are rounded to 2 decimals.
func Summarize(obs []model.Observation) model.Summary {
	obs = positive(obs)
	var s model.Summary
	if len(obs) == 0 {
		return s
	}

	low, high, _ := Extremes(obs)
	last := obs[len(obs)-1]
	s = model.Summary{
		Count:       len(obs),
		Min:         low.Value,
		MinDate:     low.Date,
		Max:         high.Value,
		MaxDate:     high.Date,
		LatestDate:  last.Date,
		LatestValue: last.Value,
		Earliest:    obs[0].Date,
		Avg7d:       round2(TrailingMean(obs, ShortWindow)),
		Avg30d:      round2(TrailingMean(obs, LongWindow)),
	}

	sum := decimal.Zero
	for _, o := range obs {
		sum = sum.Add(decimal.NewFromInt(int64(o.Value)))
	}
	s.Mean = sum.Div(decimal.NewFromInt(int64(len(obs)))).Round(2).InexactFloat64()

	if sketch, err := ddsketch.NewDefaultDDSketch(sketchAccuracy); err == nil {
		for _, o := range obs {
			sketch.Add(float64(o.Value))
		}
		if qs, err := sketch.GetValuesAtQuantiles([]float64{0.10, 0.50, 0.90}); err == nil {
			s.P10, s.Median, s.P90 = round2(qs[0]), round2(qs[1]), round2(qs[2])
		}
	}
	return s
}

// Distribution counts observations per category band. Values of 0 are
// ignored.
func Distribution(obs []model.Observation) model.Distribution {
	var d model.Distribution
	for _, o := range positive(obs) {
		d.Counts[o.Category()]++
		d.Total++
	}
	return d
}

// Stats loads every stored observation and computes both views.
func Stats(ctx context.Context, s store.Store) (model.Summary, model.Distribution, error) {
	obs, err := s.All(ctx)
	if err != nil {
		return model.Summary{}, model.Distribution{}, fmt.Errorf("load observations: %w", err)
	}
	return Summarize(obs), Distribution(obs), nil
}

func positive(obs []model.Observation) []model.Observation {
	for _, o := range obs {
		if o.Value <= 0 {
			out := make([]model.Observation, 0, len(obs))
			for _, o := range obs {
				if o.Value > 0 {
					out = append(out, o)
				}
			}
			return out
		}
	}
	return obs
}

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
