package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Clock abstracts time so the retry schedule can be driven by tests.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d or until ctx is cancelled.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy decides how often and how patiently a job is attempted.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff holds the delay after the first, second, ... failed attempt.
	// Attempts past the end of the list reuse the last delay.
	Backoff []time.Duration
	// AttemptTimeout bounds a single attempt. Zero means no bound.
	AttemptTimeout time.Duration
	// Clock drives the waits between attempts. Nil means SystemClock.
	Clock Clock
}

// DefaultRetryPolicy returns three attempts, 10s/30s/60s backoff and a 30s
// per-attempt timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		Backoff:        []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second},
		AttemptTimeout: 30 * time.Second,
		Clock:          SystemClock{},
	}
}

func (p RetryPolicy) clock() Clock {
	if p.Clock == nil {
		return SystemClock{}
	}
	return p.Clock
}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Backoff) == 0 || attempt < 1 {
		return 0
	}
	if attempt > len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[attempt-1]
}

// NewBackOff returns the policy's delay schedule as a backoff.BackOff.
// It stops once MaxAttempts-1 delays have been handed out.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	return &scheduleBackOff{policy: p}
}

type scheduleBackOff struct {
	policy RetryPolicy
	served int
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	if b.served >= b.policy.MaxAttempts-1 {
		return backoff.Stop
	}
	b.served++
	return b.policy.Delay(b.served)
}

func (b *scheduleBackOff) Reset() { b.served = 0 }

// Run calls op until it succeeds, returns a permanent error, or the attempt
// budget is spent. notify, if set, is called before each wait with the
// attempt that failed and the delay before the next one. Run returns the
// number of attempts made.
//
// When the budget is spent the returned error wraps both ErrRetriesExhausted
// and the last attempt's error.
func (p RetryPolicy) Run(
	ctx context.Context,
	op func(ctx context.Context, attempt int) error,
	notify func(attempt int, err error, next time.Duration),
) (int, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	schedule := p.NewBackOff()

	var lastErr error
	attempt := 0
	for attempt < p.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}
		attempt++

		lastErr = p.runAttempt(ctx, op, attempt)
		if lastErr == nil {
			return attempt, nil
		}

		var permanent *backoff.PermanentError
		if errors.As(lastErr, &permanent) {
			return attempt, permanent.Unwrap()
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}

		next := schedule.NextBackOff()
		if next == backoff.Stop {
			break
		}
		if notify != nil {
			notify(attempt, lastErr, next)
		}
		if err := p.clock().Sleep(ctx, next); err != nil {
			return attempt, err
		}
	}

	return attempt, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, lastErr)
}

// runAttempt runs op under the per-attempt timeout. An op that ignores its
// context is abandoned when the timeout fires.
func (p RetryPolicy) runAttempt(
	ctx context.Context,
	op func(ctx context.Context, attempt int) error,
	attempt int,
) error {
	if p.AttemptTimeout <= 0 {
		return op(ctx, attempt)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(attemptCtx, attempt) }()

	select {
	case err := <-done:
		if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, p.AttemptTimeout, err)
		}
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %s", ErrAttemptTimeout, p.AttemptTimeout)
	}
}
