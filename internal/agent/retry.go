package agent

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines backoff behaviour for provider calls.
type RetryPolicy struct {
	MaxAttempts  int           // Total attempts including the first
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Delay cap
	Multiplier   float64       // Exponential factor
	Jitter       bool          // Add 0-20% random variation
}

// DefaultRetryPolicy matches the turn failure semantics: base 1s, factor 2,
// three attempts, jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// RetryWithPolicy runs fn until it succeeds, the error classifies as
// non-retryable, or attempts are exhausted. onRetry, if set, observes each
// retry before its delay elapses.
func RetryWithPolicy[T any](
	ctx context.Context,
	policy RetryPolicy,
	fn func(ctx context.Context) (T, error),
	onRetry func(attempt int, delay time.Duration, err error),
) (T, error) {
	var zero T
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ClassifyError(err) == RetryClassNonRetryable {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := backoffDelay(policy, attempt-1, err)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, &RetryExhaustedError{Err: lastErr, Attempts: policy.MaxAttempts}
}

func backoffDelay(policy RetryPolicy, retry int, err error) time.Duration {
	if hint := RetryAfterHint(err); hint > 0 {
		if hint > policy.MaxDelay {
			return policy.MaxDelay
		}
		return hint
	}
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(retry))
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	if policy.Jitter {
		delay += rand.Float64() * 0.2 * delay
	}
	return time.Duration(delay)
}
