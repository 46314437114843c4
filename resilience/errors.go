package resilience

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/depguard/service"
)

// Sentinel errors for resilience operations.
var (
	// ErrMaxRetriesExceeded wraps the last error once Retry has used every
	// attempt.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// RateLimitError reports a denied call. It matches ErrRateLimitExceeded.
type RateLimitError struct {
	Service    service.ID
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("resilience: rate limit exceeded for %s (%s, retry after %s)", e.Service, e.Reason, e.RetryAfter)
}

// Is reports whether target is ErrRateLimitExceeded.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}
