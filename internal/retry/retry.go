// Package retry runs an operation until it succeeds, fails permanently, or
// runs out of attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"DealsScanner/internal/clock"
)

// ErrExhausted wraps the last error once every attempt has been used.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy parameterizes Do.
type Policy struct {
	// MaxAttempts counts the first call too. Values below 1 mean a single attempt.
	MaxAttempts int
	// Backoff returns the delay before retry number attempt (0 for the first retry).
	Backoff func(attempt int) time.Duration
	// Retryable decides whether err is worth another attempt. Nil means never.
	Retryable func(err error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do calls fn until it returns nil, a non-retryable error, or the attempts run out.
func Do[T any](ctx context.Context, clk clock.Clock, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if clk == nil {
		clk = clock.Real{}
	}
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(0)
			if p.Backoff != nil {
				delay = p.Backoff(attempt - 1)
			}
			if p.OnRetry != nil {
				p.OnRetry(attempt, delay, lastErr)
			}
			if err := clk.Sleep(ctx, delay); err != nil {
				return zero, fmt.Errorf("wait before retry: %w", err)
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// Exponential returns base × 2^min(attempt, maxExponent) + jitter().
func Exponential(base time.Duration, maxExponent int, jitter func() time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		exp := min(max(attempt, 0), maxExponent)
		delay := time.Duration(float64(base) * math.Pow(2, float64(exp)))
		if jitter != nil {
			delay += jitter()
		}
		return delay
	}
}

// UniformJitter draws uniformly from [0, limit).
func UniformJitter(limit time.Duration) func() time.Duration {
	return func() time.Duration {
		if limit <= 0 {
			return 0
		}
		return rand.N(limit)
	}
}
