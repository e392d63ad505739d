package pipeline

import (
	"context"
	"time"
)

type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
	factor   float64
}

// withRetry runs fn until it succeeds, attempts run out or ctx ends.
// Only use it for stages that have no ledger side effect.
func withRetry(ctx context.Context, policy retryPolicy, onRetry func(attempt int, err error), fn func(context.Context) error) error {
	attempts := policy.attempts
	if attempts <= 1 {
		return fn(ctx)
	}
	delay := policy.base
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = nextDelay(delay, policy.factor, policy.max)
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextDelay(current time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if max > 0 && next > max {
		next = max
	}
	return next
}
