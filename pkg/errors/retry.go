package errors

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Retry configuration defaults. Lock contention on a history database clears
// within milliseconds, so delays are short.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 50 * time.Millisecond
	DefaultMaxDelay   = 2 * time.Second
	DefaultJitter     = 0.4 // Produces a multiplier range of [0.8, 1.2]
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts
	BaseDelay  time.Duration // Initial delay before first retry
	MaxDelay   time.Duration // Maximum delay between retries
	Jitter     float64       // Jitter factor (0.0 to 1.0)
}

// DefaultRetryConfig returns a RetryConfig with the package defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Jitter:     DefaultJitter,
	}
}

// Retry executes fn with exponential backoff while it fails with a
// retryable error. Non-retryable errors and ctx cancellation end the loop
// immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that produce a value.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var result T

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return result, Wrapf(lastErr, "context cancelled after %d attempts", attempt)
			}
			return result, Wrap(err, "context cancelled before retry")
		}

		var err error
		result, err = fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(lastErr) {
			return result, lastErr
		}

		if attempt == cfg.MaxRetries {
			break
		}

		delay := CalculateBackoff(cfg.BaseDelay, cfg.MaxDelay, attempt, cfg.Jitter)

		select {
		case <-ctx.Done():
			return result, Wrapf(lastErr, "context cancelled during retry backoff (attempt %d/%d)", attempt+1, cfg.MaxRetries)
		case <-time.After(delay):
		}
	}

	return result, Wrapf(lastErr, "failed after %d retries", cfg.MaxRetries)
}

// CalculateBackoff computes the delay for a retry attempt:
// min(base * 2^attempt, max) * (1 - jitter/2 + jitter*rand()).
func CalculateBackoff(base, max time.Duration, attempt int, jitter float64) time.Duration {
	expDelay := float64(base) * math.Pow(2, float64(attempt))
	if expDelay > float64(max) {
		expDelay = float64(max)
	}

	jitterMultiplier := 1.0 - jitter/2 + jitter*rand.Float64()
	return time.Duration(expDelay * jitterMultiplier)
}
