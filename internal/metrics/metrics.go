// Package metrics exposes Prometheus instruments for sync runs. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the tracker's instruments.
type Metrics struct {
	SyncRuns             *prometheus.CounterVec
	RecordsAffected      *prometheus.CounterVec
	ValidationRejections prometheus.Counter
	FetchAttempts        *prometheus.CounterVec
	BackfillErrors       prometheus.Counter
	LatestValue          prometheus.Gauge
	LastSuccess          prometheus.Gauge
	UpdateDuration       *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fng_sync_runs_total",
				Help: "Synchronization calls by mode and result",
			},
			[]string{"mode", "result"},
		),
		RecordsAffected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fng_records_affected_total",
				Help: "Rows changed in the store by sync mode",
			},
			[]string{"mode"},
		),
		ValidationRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fng_validation_rejections_total",
				Help: "Remote observations discarded by validation",
			},
		),
		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fng_fetch_attempts_total",
				Help: "Remote fetch attempts by outcome",
			},
			[]string{"result"},
		),
		BackfillErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fng_backfill_errors_total",
				Help: "Backfill dates that failed",
			},
		),
		LatestValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fng_latest_value",
				Help: "Most recent stored index value",
			},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fng_last_success_timestamp_seconds",
				Help: "Unix time of the last successful sync",
			},
		),
		UpdateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fng_update_duration_seconds",
				Help:    "Duration of the update pipeline",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.SyncRuns, m.RecordsAffected, m.ValidationRejections, m.FetchAttempts,
			m.BackfillErrors, m.LatestValue, m.LastSuccess, m.UpdateDuration,
		)
	}
	return m
}

// FetchAttempt counts one remote attempt; result is ok, transient or rejected.
func (m *Metrics) FetchAttempt(result string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(result).Inc()
}

// Sync records the outcome of one synchronization call.
func (m *Metrics) Sync(mode string, affected int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SyncRuns.WithLabelValues(mode, "error").Inc()
		return
	}
	m.SyncRuns.WithLabelValues(mode, "ok").Inc()
	m.RecordsAffected.WithLabelValues(mode).Add(float64(affected))
	m.LastSuccess.SetToCurrentTime()
}

// Rejected counts discarded observations.
func (m *Metrics) Rejected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ValidationRejections.Add(float64(n))
}

// BackfillError counts one failed backfill date.
func (m *Metrics) BackfillError() {
	if m == nil {
		return
	}
	m.BackfillErrors.Inc()
}

// Latest sets the latest stored value gauge.
func (m *Metrics) Latest(v int) {
	if m == nil {
		return
	}
	m.LatestValue.Set(float64(v))
}

// Update observes one update pipeline run.
func (m *Metrics) Update(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UpdateDuration.WithLabelValues(result).Observe(d.Seconds())
}
