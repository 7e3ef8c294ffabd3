package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleeps struct {
	waits []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	rec := &recordedSleeps{}
	calls := 0
	attempts, err := Do(context.Background(), 3, Linear(5*time.Second), rec.sleep, func(int) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, rec.waits)
}

func TestDo_WaitsIncrease(t *testing.T) {
	rec := &recordedSleeps{}
	_, err := Do(context.Background(), 5, Linear(time.Second), rec.sleep, func(int) error {
		return errors.New("timeout")
	})
	require.Error(t, err)
	require.Len(t, rec.waits, 4, "no wait after the final attempt")
	for i := 1; i < len(rec.waits); i++ {
		assert.Greater(t, rec.waits[i], rec.waits[i-1])
	}
}

func TestDo_Exponential(t *testing.T) {
	rec := &recordedSleeps{}
	_, err := Do(context.Background(), 4, Exponential(time.Second), rec.sleep, func(int) error {
		return errors.New("bad gateway")
	})
	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.waits)
}

type throttled struct{ wait time.Duration }

func (e throttled) Error() string             { return "throttled" }
func (e throttled) RetryAfter() time.Duration { return e.wait }

func TestDo_RetryAfterOverridesBackoff(t *testing.T) {
	rec := &recordedSleeps{}
	calls := 0
	_, err := Do(context.Background(), 3, Exponential(time.Second), rec.sleep, func(int) error {
		calls++
		switch calls {
		case 1:
			return throttled{wait: 7 * time.Second}
		case 2:
			return throttled{}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second, 2 * time.Second}, rec.waits)
}

func TestDo_PermanentStops(t *testing.T) {
	rec := &recordedSleeps{}
	sentinel := errors.New("rejected")
	calls := 0
	attempts, err := Do(context.Background(), 3, Linear(time.Second), rec.sleep, func(int) error {
		calls++
		return Permanent(sentinel)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, 3, Linear(time.Second), SleepContext, func(int) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), 0, nil, nil, func(int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))
}
