package reconciler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"FearGreedTracker/internal/model"
)

// DefaultGapDays is the trailing window analysed for missing dates.
const DefaultGapDays = 90

// DateError records a failed backfill date.
type DateError struct {
	Date string
	Err  error
}

func (e DateError) Error() string { return fmt.Sprintf("%s: %v", e.Date, e.Err) }
func (e DateError) Unwrap() error { return e.Err }

// BackfillResult summarizes a Backfill call.
type BackfillResult struct {
	RunID     string
	Dates     []string // requested dates, deduplicated and ascending
	Attempted int
	Fetched   int
	Rejected  int
	Affected  int64
	Errors    []DateError
}

// Status returns a one-line description of the result.
func (b BackfillResult) Status() string {
	msg := fmt.Sprintf("backfilled %d/%d dates, %d changed", b.Attempted-len(b.Errors), len(b.Dates), b.Affected)
	if len(b.Errors) > 0 {
		msg += fmt.Sprintf(", %d failed", len(b.Errors))
	}
	return msg
}

// Backfill fetches once per date in ascending order and upserts each
// response on its own. A failing date is recorded in Errors and the loop
// moves on. Remote calls are paced by the politeness limiter. Cancellation is
// checked between dates; the partial result is returned with ctx's error.
func (r *Reconciler) Backfill(ctx context.Context, dates []string) (BackfillResult, error) {
	res := BackfillResult{RunID: uuid.NewString(), Dates: dedupSorted(dates)}
	log := r.log.With().Str("run_id", res.RunID).Str("mode", string(model.ModeBackfill)).Logger()
	log.Info().Int("dates", len(res.Dates)).Msg("backfill started")

	for _, date := range res.Dates {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("done", res.Attempted).Msg("backfill cancelled")
			r.metrics.Sync(string(model.ModeBackfill), res.Affected, err)
			return res, err
		}

		d, err := model.ParseDate(date, r.loc)
		if err != nil {
			res.Attempted++
			res.Errors = append(res.Errors, DateError{Date: date, Err: fmt.Errorf("%w: %v", ErrInvalidDate, err)})
			r.metrics.BackfillError()
			continue
		}

		if err := r.limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Int("done", res.Attempted).Msg("backfill cancelled")
			r.metrics.Sync(string(model.ModeBackfill), res.Affected, err)
			return res, err
		}

		res.Attempted++
		n, err := r.backfillDate(ctx, d, &res)
		if err != nil {
			log.Error().Err(err).Str("date", date).Msg("backfill date failed")
			res.Errors = append(res.Errors, DateError{Date: date, Err: err})
			r.metrics.BackfillError()
			continue
		}
		res.Affected += n
		log.Debug().Str("date", date).Int64("affected", n).Msg("backfill date done")
	}

	log.Info().Int64("affected", res.Affected).Int("errors", len(res.Errors)).Msg("backfill finished")
	r.metrics.Sync(string(model.ModeBackfill), res.Affected, nil)
	return res, nil
}

func (r *Reconciler) backfillDate(ctx context.Context, d time.Time, res *BackfillResult) (int64, error) {
	raw, err := r.fetcher.Fetch(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	res.Fetched += len(raw)

	batch, rejected := r.Validate(raw)
	res.Rejected += rejected
	r.metrics.Rejected(rejected)
	if len(batch) == 0 {
		return 0, nil
	}

	n, err := r.store.Upsert(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("upsert %d records: %w", len(batch), err)
	}
	return n, nil
}

func dedupSorted(dates []string) []string {
	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Gaps lists the dates in [today-days, today] missing from the store, split
// into weekdays and weekends.
func (r *Reconciler) Gaps(ctx context.Context, days int) (model.GapReport, error) {
	if days <= 0 {
		days = DefaultGapDays
	}
	today := r.Today()
	from := today.AddDate(0, 0, -days)
	rep := model.GapReport{From: model.FormatDate(from), To: model.FormatDate(today)}

	obs, err := r.store.Range(ctx, rep.From, rep.To)
	if err != nil {
		return rep, fmt.Errorf("query range: %w", err)
	}
	have := make(map[string]struct{}, len(obs))
	for _, o := range obs {
		have[o.Date] = struct{}{}
	}

	for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := model.FormatDate(d)
		if _, ok := have[key]; ok {
			continue
		}
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			rep.Weekends = append(rep.Weekends, key)
		default:
			rep.Weekdays = append(rep.Weekdays, key)
		}
	}
	return rep, nil
}

// FillResult reports a FillGaps run.
type FillResult struct {
	Before   model.GapReport
	Backfill BackfillResult
	After    model.GapReport
}

// Filled returns how many weekday gaps disappeared.
func (f FillResult) Filled() int {
	return len(f.Before.Weekdays) - len(f.After.Weekdays)
}

// FillGaps backfills the weekday gaps of the trailing window and re-checks.
func (r *Reconciler) FillGaps(ctx context.Context, days int) (FillResult, error) {
	var res FillResult
	before, err := r.Gaps(ctx, days)
	if err != nil {
		return res, err
	}
	res.Before = before
	if len(before.Weekdays) == 0 {
		res.After = before
		r.log.Info().Int("weekend_gaps", len(before.Weekends)).Msg("no weekday gaps")
		return res, nil
	}

	res.Backfill, err = r.Backfill(ctx, before.Weekdays)
	if err != nil {
		return res, err
	}

	res.After, err = r.Gaps(ctx, days)
	if err != nil {
		return res, err
	}
	r.log.Info().Int("before", len(before.Weekdays)).Int("after", len(res.After.Weekdays)).Msg("gap fill finished")
	return res, nil
}
