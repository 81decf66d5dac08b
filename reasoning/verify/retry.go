package verify

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff with optional jitter for
// retrying a failed check.
type RetryConfig struct {
	MaxRetries    uint32
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfig mirrors the verification runner's historical
// defaults: 3 retries, 100ms initial delay doubling up to a 30s cap, with
// jitter enabled.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// ExecuteWithRetry runs operation, retrying on error up to cfg.MaxRetries
// times with exponential backoff (initial_delay * backoff_factor^attempt,
// capped at max_delay) and, when enabled, +/-50% jitter. It returns as
// soon as operation succeeds, or the last error once retries are
// exhausted. A cancelled ctx aborts the wait between attempts early.
func ExecuteWithRetry[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	var attempt uint32
	for {
		result, err := operation()
		if err == nil {
			return result, nil
		}
		if attempt >= cfg.MaxRetries {
			return result, err
		}

		delayMs := float64(cfg.InitialDelay.Milliseconds()) * pow(cfg.BackoffFactor, attempt)
		delay := time.Duration(delayMs) * time.Millisecond
		if cfg.Jitter {
			jitterFactor := 0.5 + rand.Float64() // 0.5 to 1.5
			delay = time.Duration(float64(delay) * jitterFactor)
		}
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

// pow computes base^exp for a non-negative integer exponent without
// pulling in math.Pow's float64-exponent generality.
func pow(base float64, exp uint32) float64 {
	result := 1.0
	for i := uint32(0); i < exp; i++ {
		result *= base
	}
	return result
}
