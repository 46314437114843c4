package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the exponential delay to wait after a failed attempt.
type Backoff struct {
	// Initial is the delay after the first failure.
	// Default: 100ms
	Initial time.Duration

	// Max caps the delay.
	// Default: 30s
	Max time.Duration

	// Multiplier is the growth factor between attempts.
	// Default: 2.0
	Multiplier float64

	// Jitter adds up to 25% random delay.
	// Default: false
	Jitter bool
}

func (b Backoff) withDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 30 * time.Second
	}
	if b.Multiplier <= 0 {
		b.Multiplier = 2.0
	}
	return b
}

// Delay returns the delay after failed attempt n, counting from 1:
// Initial * Multiplier^(n-1), capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	attempt = max(attempt, 1)

	multiplier := math.Pow(b.Multiplier, float64(attempt-1))
	delay := time.Duration(float64(b.Initial) * multiplier)

	// Cap at max delay; a negative value means the float conversion overflowed.
	if delay > b.Max || delay < 0 {
		delay = b.Max
	}

	if b.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}

	return delay
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
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

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// Backoff computes delays between attempts.
	Backoff Backoff

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors trigger retry.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry implements retry with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	config.Backoff = config.Backoff.withDefaults()
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}

	return &Retry{config: config}
}

// Execute runs the operation with retry logic. An error that RetryIf
// rejects is returned as is; when every attempt fails the last error is
// wrapped with ErrMaxRetriesExceeded.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)

		if err == nil {
			return nil
		}

		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}

		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.config.Backoff.Delay(attempt)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
