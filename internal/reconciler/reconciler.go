// Package reconciler merges the remote sentiment series into the local store.
//
// A Reconciler decides which window to request, runs every remote observation
// through the validation pipeline and writes the survivors with a single
// upsert. It assumes one caller at a time; hosts serialize runs.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"FearGreedTracker/internal/collector"
	"FearGreedTracker/internal/metrics"
	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/store"
)

// ErrInvalidDate is returned for malformed YYYY-MM-DD input.
var ErrInvalidDate = errors.New("invalid date")

const (
	DefaultLookbackDays = 30
	DefaultPoliteness   = time.Second
	DefaultFullStart    = "2011-01-01"
)

const (
	StatusAlreadyCurrent = "already current"
	StatusNoNewData      = "remote returned no new data"
)

// Window is the date range one synchronization requests.
type Window struct {
	Start string
	End   string
}

// Request selects a synchronization mode.
type Request struct {
	Mode  model.SyncMode
	Start string   // FULL only
	Dates []string // BACKFILL only
}

// Incremental requests everything after the latest stored date.
func Incremental() Request { return Request{Mode: model.ModeIncremental} }

// Full requests everything from start onwards.
func Full(start string) Request { return Request{Mode: model.ModeFull, Start: start} }

// BackfillDates requests one fetch per listed date.
func BackfillDates(dates ...string) Request {
	return Request{Mode: model.ModeBackfill, Dates: dates}
}

// Reconciler synchronizes a Store with a Fetcher.
type Reconciler struct {
	store   store.Store
	fetcher collector.Fetcher

	now      func() time.Time
	loc      *time.Location
	lookback int
	limiter  *rate.Limiter
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithLocation sets the zone used for "today" and timestamp conversion.
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithLookback sets the number of days fetched when the store is empty.
func WithLookback(days int) Option {
	return func(r *Reconciler) {
		if days > 0 {
			r.lookback = days
		}
	}
}

// WithPoliteness sets the minimum interval between backfill fetches.
// Zero disables pacing.
func WithPoliteness(d time.Duration) Option {
	return func(r *Reconciler) { r.limiter = newLimiter(d) }
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Reconciler) { r.log = log.With().Str("component", "reconciler").Logger() }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// New creates a Reconciler with default lookback, politeness and local time.
func New(s store.Store, f collector.Fetcher, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    s,
		fetcher:  f,
		now:      time.Now,
		loc:      time.Local,
		lookback: DefaultLookbackDays,
		limiter:  newLimiter(DefaultPoliteness),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Today returns the current calendar date in the reconciler's location.
func (r *Reconciler) Today() time.Time {
	n := r.now().In(r.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, r.loc)
}

// Synchronize runs one request. Backfill results are folded into a
// SyncResult; use Backfill directly for the per-date errors.
func (r *Reconciler) Synchronize(ctx context.Context, req Request) (model.SyncResult, error) {
	switch req.Mode {
	case model.ModeIncremental, "":
		return r.Incremental(ctx)
	case model.ModeFull:
		start := req.Start
		if start == "" {
			start = DefaultFullStart
		}
		return r.Full(ctx, start)
	case model.ModeBackfill:
		br, err := r.Backfill(ctx, req.Dates)
		res := model.SyncResult{
			RunID:    br.RunID,
			Mode:     model.ModeBackfill,
			Fetched:  br.Fetched,
			Rejected: br.Rejected,
			Affected: br.Affected,
		}
		if len(br.Dates) > 0 {
			res.Start, res.End = br.Dates[0], br.Dates[len(br.Dates)-1]
		}
		res.StatusMessage = br.Status()
		return res, err
	default:
		return model.SyncResult{}, fmt.Errorf("synchronize: unknown mode %q", req.Mode)
	}
}

// Window computes the incremental fetch window. ok is false when the store
// is already current and nothing should be fetched.
func (r *Reconciler) Window(ctx context.Context) (Window, bool, error) {
	today := r.Today()
	var start time.Time

	latest, found, err := r.store.LatestDate(ctx)
	if err != nil {
		return Window{}, false, fmt.Errorf("query latest date: %w", err)
	}
	if found {
		d, err := model.ParseDate(latest, r.loc)
		if err != nil {
			return Window{}, false, fmt.Errorf("%w: stored latest %q", ErrInvalidDate, latest)
		}
		start = d.AddDate(0, 0, 1)
	} else {
		start = today.AddDate(0, 0, -r.lookback)
	}

	w := Window{Start: model.FormatDate(start), End: model.FormatDate(today)}
	return w, w.Start < w.End, nil
}

// Incremental fetches everything after the latest stored date, or the
// lookback window when the store is empty.
func (r *Reconciler) Incremental(ctx context.Context) (model.SyncResult, error) {
	res := model.SyncResult{RunID: uuid.NewString(), Mode: model.ModeIncremental}

	w, ok, err := r.Window(ctx)
	if err != nil {
		r.metrics.Sync(string(res.Mode), 0, err)
		return res, err
	}
	res.Start, res.End = w.Start, w.End
	if !ok {
		res.StatusMessage = StatusAlreadyCurrent
		r.log.Info().Str("run_id", res.RunID).Str("start", w.Start).Msg(StatusAlreadyCurrent)
		r.metrics.Sync(string(res.Mode), 0, nil)
		return res, nil
	}

	start, _ := model.ParseDate(w.Start, r.loc)
	err = r.fetchAndStore(ctx, start, &res)
	r.metrics.Sync(string(res.Mode), res.Affected, err)
	return res, err
}

// Full fetches everything from start (YYYY-MM-DD) onwards.
func (r *Reconciler) Full(ctx context.Context, start string) (model.SyncResult, error) {
	res := model.SyncResult{RunID: uuid.NewString(), Mode: model.ModeFull}
	d, err := model.ParseDate(start, r.loc)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidDate, err)
		r.metrics.Sync(string(res.Mode), 0, err)
		return res, err
	}
	res.Start, res.End = start, model.FormatDate(r.Today())

	err = r.fetchAndStore(ctx, d, &res)
	r.metrics.Sync(string(res.Mode), res.Affected, err)
	return res, err
}

// fetchAndStore runs fetch, validation and a single upsert, filling res.
func (r *Reconciler) fetchAndStore(ctx context.Context, start time.Time, res *model.SyncResult) error {
	log := r.log.With().Str("run_id", res.RunID).Str("mode", string(res.Mode)).Str("start", model.FormatDate(start)).Logger()
	log.Info().Str("source", r.fetcher.Name()).Msg("fetching")

	raw, err := r.fetcher.Fetch(ctx, start)
	if err != nil {
		log.Error().Err(err).Msg("fetch failed")
		return fmt.Errorf("fetch from %s: %w", model.FormatDate(start), err)
	}
	res.Fetched = len(raw)

	batch, rejected := r.Validate(raw)
	res.Rejected = rejected
	r.metrics.Rejected(rejected)

	if len(batch) == 0 {
		res.StatusMessage = StatusNoNewData
		log.Info().Int("fetched", res.Fetched).Int("rejected", rejected).Msg(StatusNoNewData)
		return nil
	}

	affected, err := r.store.Upsert(ctx, batch)
	if err != nil {
		log.Error().Err(err).Int("records", len(batch)).Msg("upsert failed")
		return fmt.Errorf("upsert %d records: %w", len(batch), err)
	}
	res.Affected = affected
	res.StatusMessage = statusFor(len(batch), affected, rejected)
	log.Info().Int("fetched", res.Fetched).Int("valid", len(batch)).Int("rejected", rejected).Int64("affected", affected).Msg("sync finished")
	return nil
}

func statusFor(valid int, affected int64, rejected int) string {
	msg := fmt.Sprintf("fetched %d records, %d changed", valid, affected)
	if rejected > 0 {
		msg += fmt.Sprintf(", %d rejected", rejected)
	}
	return msg
}

// Validate converts raw observations into storable ones. Values outside
// [0,100] and values that truncate to 0 are discarded; when a date repeats
// the last occurrence wins. The result is sorted by date.
func (r *Reconciler) Validate(raw []collector.RawObservation) ([]model.Observation, int) {
	byDate := make(map[string]int, len(raw))
	rejected := 0
	for _, o := range raw {
		if o.TimestampMs == 0 {
			rejected++
			continue
		}
		date := collector.DateOf(o.TimestampMs, r.loc)
		if !(o.Value >= 0 && o.Value <= 100) {
			r.log.Warn().Str("date", date).Float64("value", o.Value).Msg("discarding out-of-range value")
			rejected++
			continue
		}
		v := int(o.Value)
		if v == 0 {
			r.log.Debug().Str("date", date).Float64("value", o.Value).Msg("discarding zero value")
			rejected++
			continue
		}
		byDate[date] = v
	}

	out := make([]model.Observation, 0, len(byDate))
	for d, v := range byDate {
		out = append(out, model.Observation{Date: d, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, rejected
}
