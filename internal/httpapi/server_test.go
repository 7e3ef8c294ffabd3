package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FearGreedTracker/internal/metrics"
	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/recorder"
	"FearGreedTracker/internal/store"
)

func newTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	s := store.NewMemoryStore()
	_, err := s.Upsert(context.Background(), []model.Observation{
		{Date: "2021-01-01", Value: 10},
		{Date: "2021-01-02", Value: 50},
		{Date: "2021-01-03", Value: 80},
	})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	metrics.New(reg).Latest(80)
	return NewServer(":0", s, nil, reg, zerolog.Nop()), reg
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 8)
	assert.JSONEq(t, `{"status":"ok","records":3}`, rec.Body.String())
}

func TestSummary(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/api/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var got summaryJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Count)
	require.NotNil(t, got.Latest)
	assert.Equal(t, "2021-01-03", got.Latest.Date)
	assert.Equal(t, "Extreme Greed", got.Latest.Rating)
	assert.Equal(t, 10, got.Min.Value)
	assert.Equal(t, "2021-01-01", got.Earliest)
}

func TestSummary_Empty(t *testing.T) {
	srv := NewServer(":0", store.NewMemoryStore(), nil, nil, zerolog.Nop())
	rec := get(t, srv, "/api/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"mean":0,"avg_7d":0,"avg_30d":0,"median":0,"p10":0,"p90":0}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/metrics").Code)
}

func TestDistribution(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/api/v1/distribution")
	require.Equal(t, http.StatusOK, rec.Code)

	var got distributionJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Total)
	require.Len(t, got.Bands, 5)
	assert.Equal(t, "Extreme Fear", got.Bands[0].Name)
	assert.Equal(t, 1, got.Bands[0].Count)
	assert.Equal(t, 0, got.Bands[1].Count)
	assert.Equal(t, 1, got.Bands[2].Count)
	assert.InDelta(t, 33.33, got.Bands[4].Percent, 0.01)
}

func TestRecords(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		query  string
		status int
		count  int
	}{
		{"all", "", http.StatusOK, 3},
		{"range", "?start=2021-01-02&end=2021-01-03", http.StatusOK, 2},
		{"open end", "?start=2021-01-03", http.StatusOK, 1},
		{"bad date", "?start=2021-13-01", http.StatusBadRequest, 0},
		{"reversed", "?start=2021-01-03&end=2021-01-01", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, "/api/v1/records"+tt.query)
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"error"`)
				return
			}
			var got struct {
				Count   int          `json:"count"`
				Records []recordJSON `json:"records"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.count, got.Count)
			assert.Len(t, got.Records, tt.count)
		})
	}
}

func TestMetricsAndNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "fng_latest_value 80"))

	rec = get(t, srv, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
}

type fixedRuns struct {
	recorder.NoopRecorder
	runs []recorder.Run
}

func (f fixedRuns) Recent(_ context.Context, n int) ([]recorder.Run, error) {
	return f.runs[:min(n, len(f.runs))], nil
}

func TestRuns(t *testing.T) {
	runs := fixedRuns{runs: []recorder.Run{{RunID: "b", Affected: 2}, {RunID: "a", Error: "boom"}}}
	srv := NewServer(":0", store.NewMemoryStore(), runs, nil, zerolog.Nop())

	rec := get(t, srv, "/api/v1/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Count int            `json:"count"`
		Runs  []recorder.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, "b", got.Runs[0].RunID)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/runs?limit=x").Code)

	empty := NewServer(":0", store.NewMemoryStore(), nil, nil, zerolog.Nop())
	rec = get(t, empty, "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"runs":[]}`, rec.Body.String())
}
