package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures exponential backoff with jitter.
//
// The delay before retry n (0-indexed) is 2^n * BaseDelay plus a uniform
// jitter in [0, MaxJitter).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Jitter returns a value in [0, max). Nil uses math/rand.
	Jitter func(max time.Duration) time.Duration

	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy allows three attempts, starting at 100ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxJitter:   100 * time.Millisecond,
	}
}

// Delay returns the backoff before retry n.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay << attempt
	if p.MaxJitter > 0 {
		jitter := p.Jitter
		if jitter == nil {
			jitter = randomJitter
		}
		delay += jitter(p.MaxJitter)
	}
	return delay
}

func randomJitter(max time.Duration) time.Duration {
	return rand.N(max)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. Attempts run sequentially.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	attempts := max(policy.MaxAttempts, 1)

	var (
		result T
		err    error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil || !IsRetryable(err) || attempt == attempts-1 {
			return result, err
		}

		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return result, errors.Join(sleepErr, err)
		}
	}
	return result, err
}
