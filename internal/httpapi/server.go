// Package httpapi serves a read-only JSON view of the stored series and the
// Prometheus metrics endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"FearGreedTracker/internal/calculator"
	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/recorder"
	"FearGreedTracker/internal/store"
)

// Server is the read-only HTTP server.
type Server struct {
	router *mux.Router
	server *http.Server
	store  store.Store
	runs   recorder.Recorder
	log    zerolog.Logger
}

// NewServer creates a server on addr. A nil runs recorder serves an empty
// history; a nil gatherer disables /metrics.
func NewServer(addr string, s store.Store, runs recorder.Recorder, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	if runs == nil {
		runs = recorder.NewNoopRecorder()
	}
	srv := &Server{
		router: mux.NewRouter(),
		store:  s,
		runs:   runs,
		log:    log.With().Str("component", "http").Logger(),
	}
	srv.setupRoutes(gatherer)
	srv.server = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/summary", s.summary).Methods(http.MethodGet)
	api.HandleFunc("/distribution", s.distribution).Methods(http.MethodGet)
	api.HandleFunc("/records", s.records).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.recentRuns).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Start serves until Shutdown. http.ErrServerClosed is not reported.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": n})
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, _, err := calculator.Stats(r.Context(), s.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSummaryJSON(sum))
}

func (s *Server) distribution(w http.ResponseWriter, r *http.Request) {
	_, dist, err := calculator.Stats(r.Context(), s.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toDistributionJSON(dist))
}

func (s *Server) records(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if start == "" {
		start = "0000-01-01"
	}
	if end == "" {
		end = "9999-12-31"
	}
	for _, d := range []string{start, end} {
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			writeError(w, http.StatusBadRequest, "dates must be YYYY-MM-DD")
			return
		}
	}
	if start > end {
		writeError(w, http.StatusBadRequest, "start is after end")
		return
	}

	obs, err := s.store.Range(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]recordJSON, len(obs))
	for i, o := range obs {
		out[i] = recordJSON{Date: o.Date, Value: o.Value, Rating: o.Category().String()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "records": out})
}

// maxRuns caps the limit parameter of /runs.
const maxRuns = 500

func (s *Server) recentRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRuns)
	}
	runs, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []recorder.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(runs), "runs": runs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
