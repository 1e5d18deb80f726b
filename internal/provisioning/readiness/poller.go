// Package readiness waits for asynchronous effects of a provisioning step,
// such as a CRD becoming Established or a Deployment reporting available
// replicas, using bounded polling with fixed or exponential backoff.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/imamik/rabbitkind/internal/util/retry"
)

// ErrNotReady is recorded as the last error when a probe answered "not yet"
// without reporting a failure.
var ErrNotReady = errors.New("not ready")

// Probe reports whether the awaited effect is visible. Plain errors are
// treated as transient and retried; errors wrapped with retry.Fatal end
// polling immediately.
type Probe func(ctx context.Context) (bool, error)

// Policy bounds a readiness wait.
type Policy struct {
	// Timeout is the total time budget measured from the first attempt.
	Timeout time.Duration
	// Interval is the wait before the second attempt.
	Interval time.Duration
	// MaxInterval caps the wait when Multiplier grows it. Zero means no cap.
	MaxInterval time.Duration
	// Multiplier grows the wait after every attempt. Values <= 1 keep it fixed.
	Multiplier float64
}

// DefaultPolicy suits waits on a local kind cluster.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:     5 * time.Minute,
		Interval:    2 * time.Second,
		MaxInterval: 15 * time.Second,
		Multiplier:  1.5,
	}
}

// Validate checks that the policy describes a bounded wait.
func (p Policy) Validate() error {
	if p.Timeout <= 0 {
		return fmt.Errorf("readiness timeout must be positive, got %v", p.Timeout)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("readiness interval must be positive, got %v", p.Interval)
	}
	if p.MaxInterval < 0 {
		return fmt.Errorf("readiness max interval must not be negative, got %v", p.MaxInterval)
	}
	return nil
}

func (p Policy) next(d time.Duration) time.Duration {
	if p.Multiplier <= 1 {
		return d
	}
	d = time.Duration(float64(d) * p.Multiplier)
	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}
	return d
}

// Result describes a finished wait.
type Result struct {
	Attempts int
	Elapsed  time.Duration
}

// TimeoutError is returned when the probe did not report ready within the
// policy timeout.
type TimeoutError struct {
	Timeout  time.Duration
	Attempts int
	LastErr  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("not ready after %d attempts within %v: %v", e.Attempts, e.Timeout, e.LastErr)
}

func (e *TimeoutError) Unwrap() error { return e.LastErr }

// FailedError is returned when the probe reported a terminal failure.
type FailedError struct {
	Attempts int
	Cause    error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("readiness probe failed on attempt %d: %v", e.Attempts, e.Cause)
}

func (e *FailedError) Unwrap() error { return e.Cause }

// Poller evaluates probes against a clock.
type Poller struct {
	clock clock.Clock
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		p.clock = c
	}
}

// NewPoller creates a Poller backed by the real clock unless overridden.
func NewPoller(opts ...Option) *Poller {
	p := &Poller{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AwaitReady evaluates probe until it reports ready, the policy timeout is
// spent, the probe fails terminally, or ctx is done.
//
// A wait that would end past the deadline is never started, so a fixed
// interval gives at most Timeout/Interval+1 attempts.
func (p *Poller) AwaitReady(ctx context.Context, probe Probe, policy Policy) (Result, error) {
	if err := policy.Validate(); err != nil {
		return Result{}, err
	}

	start := p.clock.Now()
	deadline := start.Add(policy.Timeout)
	delay := policy.Interval

	var (
		res     Result
		lastErr error
	)

	for {
		if err := ctx.Err(); err != nil {
			res.Elapsed = p.clock.Since(start)
			return res, fmt.Errorf("readiness wait cancelled after %d attempts: %w", res.Attempts, err)
		}

		res.Attempts++
		ready, err := probe(ctx)
		switch {
		case err == nil && ready:
			res.Elapsed = p.clock.Since(start)
			return res, nil
		case retry.IsFatal(err):
			res.Elapsed = p.clock.Since(start)
			return res, &FailedError{Attempts: res.Attempts, Cause: err}
		case err != nil:
			lastErr = err
		default:
			lastErr = ErrNotReady
		}

		if p.clock.Now().Add(delay).After(deadline) {
			res.Elapsed = p.clock.Since(start)
			return res, &TimeoutError{Timeout: policy.Timeout, Attempts: res.Attempts, LastErr: lastErr}
		}

		if err := p.wait(ctx, delay); err != nil {
			res.Elapsed = p.clock.Since(start)
			return res, fmt.Errorf("readiness wait cancelled after %d attempts: %w", res.Attempts, err)
		}
		delay = policy.next(delay)
	}
}

func (p *Poller) wait(ctx context.Context, d time.Duration) error {
	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// AwaitReady waits on the real clock.
func AwaitReady(ctx context.Context, probe Probe, policy Policy) error {
	_, err := NewPoller().AwaitReady(ctx, probe, policy)
	return err
}

// All combines probes; it is ready once every probe is ready, evaluated in
// order and stopping at the first that is not.
func All(probes ...Probe) Probe {
	return func(ctx context.Context) (bool, error) {
		for _, probe := range probes {
			ready, err := probe(ctx)
			if err != nil || !ready {
				return false, err
			}
		}
		return true, nil
	}
}
