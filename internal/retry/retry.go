package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/retailops/goldpipe/internal/eventlog"
)

// Config controls the retry loop
type Config struct {
	MaxAttempts int           // Attempts including the first (default: 3)
	BaseDelay   time.Duration // First backoff delay (default: 1s)
	MaxDelay    time.Duration // Backoff ceiling (default: 30s)

	// IsRetryable decides whether an error is worth another attempt.
	// Default: DefaultClassifier.
	IsRetryable func(error) bool

	// Sleep is injectable for tests. Default sleeps for the given
	// duration or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		IsRetryable: DefaultClassifier,
		Sleep:       sleepContext,
	}
}

// ApplyDefaults applies default values to zero fields
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaults.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaults.MaxDelay
	}
	if c.IsRetryable == nil {
		c.IsRetryable = defaults.IsRetryable
	}
	if c.Sleep == nil {
		c.Sleep = defaults.Sleep
	}
}

// Do invokes op until it succeeds, a non-retryable error occurs, attempts
// exhaust, or ctx is done. Each failed attempt is logged as one warning
// event with the attempt number, chosen delay and error. The returned
// error wraps the last attempt's error, so errors.Is/As reach the cause.
func Do(ctx context.Context, events *eventlog.Logger, cfg Config, operation string, op func(context.Context) error) error {
	cfg.ApplyDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !cfg.IsRetryable(lastErr) {
			events.Warning(ctx, "Operation failed with non-retryable error", map[string]any{
				"operation": operation,
				"attempt":   attempt,
				"error":     lastErr.Error(),
			})
			return fmt.Errorf("%s: %w", operation, lastErr)
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg.BaseDelay, cfg.MaxDelay, attempt)
		events.Warning(ctx, "Operation failed, retrying", map[string]any{
			"operation":    operation,
			"attempt":      attempt,
			"max_attempts": cfg.MaxAttempts,
			"delay":        delay.String(),
			"error":        lastErr.Error(),
		})

		if err := cfg.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, cfg.MaxAttempts, lastErr)
}

// backoffDelay computes the sleep before attempt+1: exponential in the
// attempt number with up to 10% jitter, never above maxDelay.
func backoffDelay(base, maxDelay time.Duration, attempt int) time.Duration {
	exp := base
	for i := 1; i < attempt; i++ {
		exp *= 2
		if exp >= maxDelay {
			exp = maxDelay
			break
		}
	}

	delay := exp
	if tenth := int64(exp) / 10; tenth > 0 {
		delay += time.Duration(rand.Int63n(tenth))
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
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
