package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig tunes how failed calls are reattempted: a capped geometric
// backoff with optional jitter.
type RetryConfig struct {
	// MaxAttempts counts the first try too, so 1 means no retries.
	// Default: 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry; each further
	// retry multiplies it by Multiplier up to MaxBackoff. Defaults:
	// 500ms, 2.0, 30s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// JitterFraction spreads each delay by a uniform random fraction of
	// itself, 0.25 meaning anywhere within 25% either side. Zero disables
	// jitter. Default: 0.25.
	JitterFraction float64

	// ShouldRetry decides which errors are worth another attempt. When
	// nil, IsTransient is used, so fatal errors never retry.
	ShouldRetry func(err error) bool

	// OnRetry runs before each backoff sleep, after attempt number attempt
	// failed with err.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the retry tuning used for feed calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	return c
}

// Do executes fn with retries for transient failures. Context cancellation
// stops retries immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn with retries and preserves the value of the successful
// call. Only errors ShouldRetry accepts (IsTransient when nil) earn another
// attempt, and a RetryAfterHint in the error chain raises the next wait to
// the server-requested delay.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	delay := cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= cfg.MaxAttempts || ctx.Err() != nil || !retryable(err) {
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		wait := withJitter(delay, cfg.JitterFraction)
		if hint, ok := RetryAfterHint(err); ok && hint > wait {
			wait = hint
		}
		if !sleep(ctx, wait) {
			return zero, err
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxBackoff {
			delay = cfg.MaxBackoff
		}
	}
}

// sleep waits for d or until ctx is done, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func withJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * fraction * float64(d)
	d += time.Duration(spread)
	if d < 0 {
		return 0
	}
	return d
}

// RetryLogger builds an OnRetry callback that records every reattempt
// against the named service operation.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("call failed, backing off",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
