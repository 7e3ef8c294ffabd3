package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.FetchAttempt("ok")
	m.Sync("INCREMENTAL", 3, nil)
	m.Rejected(2)
	m.BackfillError()
	m.Latest(40)
	m.Update(time.Second, nil)
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.FetchAttempt("transient")
	m.FetchAttempt("transient")
	m.FetchAttempt("ok")
	m.Sync("INCREMENTAL", 5, nil)
	m.Sync("INCREMENTAL", 0, errors.New("boom"))
	m.Rejected(3)
	m.Rejected(0)
	m.Latest(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues("INCREMENTAL", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues("INCREMENTAL", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RecordsAffected.WithLabelValues("INCREMENTAL")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ValidationRejections))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.LatestValue))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
