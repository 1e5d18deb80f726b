package readiness

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/imamik/rabbitkind/internal/util/retry"
)

const unit = time.Second

// autoAdvance steps the fake clock one unit at a time whenever the poller is
// blocked on a timer, so waits complete without real sleeping.
func autoAdvance(t *testing.T, fc *testingclock.FakeClock) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			if fc.HasWaiters() {
				fc.Step(unit)
			} else {
				runtime.Gosched()
			}
		}
	}()
	t.Cleanup(func() { close(done) })
}

func newFakePoller(t *testing.T) *Poller {
	t.Helper()
	fc := testingclock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	autoAdvance(t, fc)
	return NewPoller(WithClock(fc))
}

func fixed(timeout, interval time.Duration) Policy {
	return Policy{Timeout: timeout, Interval: interval}
}

func TestAwaitReady_ReadyOnThirdAttempt(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	probe := func(context.Context) (bool, error) {
		return calls.Add(1) == 3, nil
	}

	res, err := newFakePoller(t).AwaitReady(context.Background(), probe, fixed(10*unit, unit))

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2*unit, res.Elapsed)
}

func TestAwaitReady_ReadyImmediately(t *testing.T) {
	t.Parallel()
	res, err := newFakePoller(t).AwaitReady(context.Background(), func(context.Context) (bool, error) {
		return true, nil
	}, fixed(10*unit, unit))

	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Zero(t, res.Elapsed)
}

func TestAwaitReady_TimeoutFixedInterval(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	probe := func(context.Context) (bool, error) {
		calls.Add(1)
		return false, nil
	}

	res, err := newFakePoller(t).AwaitReady(context.Background(), probe, fixed(10*unit, unit))

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	// attempts at t=0..10; the next wait would overrun the deadline
	assert.Equal(t, int32(11), calls.Load())
	assert.Equal(t, 11, res.Attempts)
	assert.Equal(t, 11, timeoutErr.Attempts)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, 10*unit, res.Elapsed)
}

func TestAwaitReady_TimeoutExponentialBackoff(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	probe := func(context.Context) (bool, error) {
		calls.Add(1)
		return false, nil
	}
	policy := Policy{Timeout: 10 * unit, Interval: unit, Multiplier: 2}

	_, err := newFakePoller(t).AwaitReady(context.Background(), probe, policy)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	// attempts at t=0,1,3,7; an 8 unit wait would end at 15
	assert.Equal(t, int32(4), calls.Load())
}

func TestAwaitReady_MaxIntervalCapsBackoff(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	probe := func(context.Context) (bool, error) {
		calls.Add(1)
		return false, nil
	}
	policy := Policy{Timeout: 10 * unit, Interval: unit, Multiplier: 2, MaxInterval: 2 * unit}

	_, err := newFakePoller(t).AwaitReady(context.Background(), probe, policy)

	require.Error(t, err)
	// attempts at t=0,1,3,5,7,9
	assert.Equal(t, int32(6), calls.Load())
}

func TestAwaitReady_TransientErrorsAreRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	transient := errors.New("connection refused")
	probe := func(context.Context) (bool, error) {
		if calls.Add(1) < 4 {
			return false, transient
		}
		return true, nil
	}

	res, err := newFakePoller(t).AwaitReady(context.Background(), probe, fixed(10*unit, unit))

	require.NoError(t, err)
	assert.Equal(t, 4, res.Attempts)
}

func TestAwaitReady_TimeoutKeepsLastError(t *testing.T) {
	t.Parallel()
	transient := errors.New("no endpoints available")
	probe := func(context.Context) (bool, error) { return false, transient }

	_, err := newFakePoller(t).AwaitReady(context.Background(), probe, fixed(3*unit, unit))

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.ErrorIs(t, err, transient)
	assert.Contains(t, err.Error(), "no endpoints available")
}

func TestAwaitReady_TerminalFailureStopsImmediately(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	cause := errors.New("ImagePullBackOff")
	probe := func(context.Context) (bool, error) {
		if calls.Add(1) == 2 {
			return false, retry.Fatal(cause)
		}
		return false, nil
	}

	res, err := newFakePoller(t).AwaitReady(context.Background(), probe, fixed(10*unit, unit))

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAwaitReady_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	fc := testingclock.NewFakeClock(time.Now())
	var calls atomic.Int32
	probe := func(context.Context) (bool, error) {
		calls.Add(1)
		cancel()
		return false, nil
	}

	_, err := NewPoller(WithClock(fc)).AwaitReady(ctx, probe, fixed(10*unit, unit))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAwaitReady_InvalidPolicy(t *testing.T) {
	t.Parallel()
	probe := func(context.Context) (bool, error) { return true, nil }

	_, err := NewPoller().AwaitReady(context.Background(), probe, Policy{Interval: unit})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")

	_, err = NewPoller().AwaitReady(context.Background(), probe, Policy{Timeout: unit})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval must be positive")
}

func TestAll(t *testing.T) {
	t.Parallel()
	yes := func(context.Context) (bool, error) { return true, nil }
	no := func(context.Context) (bool, error) { return false, nil }
	var reached bool
	spy := func(context.Context) (bool, error) { reached = true; return true, nil }

	ready, err := All(yes, yes)(context.Background())
	require.NoError(t, err)
	assert.True(t, ready)

	ready, err = All(yes, no, spy)(context.Background())
	require.NoError(t, err)
	assert.False(t, ready)
	assert.False(t, reached)
}

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultPolicy().Validate())
}
