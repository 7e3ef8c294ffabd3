// Package retry runs an operation a bounded number of times with a
// pluggable backoff and sleeper.
package retry

import (
	"context"
	"errors"
	"time"
)

// Sleeper blocks for d or until ctx is done. Tests substitute a recorder.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff returns the wait after failed attempt n (1-based).
type Backoff func(n int) time.Duration

// Linear waits n*base after attempt n.
func Linear(base time.Duration) Backoff {
	return func(n int) time.Duration { return time.Duration(n) * base }
}

// Exponential waits base, 2*base, 4*base, ...
func Exponential(base time.Duration) Backoff {
	return func(n int) time.Duration { return base << uint(n-1) }
}

// RetryAfter is implemented by errors that carry a server-requested wait.
// A positive value replaces the backoff for that attempt.
type RetryAfter interface {
	RetryAfter() time.Duration
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls fn up to maxAttempts times, sleeping backoff(n) after failed
// attempt n. There is no wait after the last attempt. Permanent errors and a
// done ctx stop the loop. It returns the number of attempts made and the
// last error, or nil on success.
func Do(ctx context.Context, maxAttempts int, backoff Backoff, sleep Sleeper, fn func(attempt int) error) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if sleep == nil {
		sleep = SleepContext
	}
	if backoff == nil {
		backoff = func(int) time.Duration { return 0 }
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if IsPermanent(err) || ctx.Err() != nil {
			return attempt, err
		}
		if attempt == maxAttempts {
			break
		}
		wait := backoff(attempt)
		var ra RetryAfter
		if errors.As(err, &ra) && ra.RetryAfter() > 0 {
			wait = ra.RetryAfter()
		}
		if serr := sleep(ctx, wait); serr != nil {
			return attempt, serr
		}
	}
	return maxAttempts, err
}
