// Package resilience provides the admission and retry primitives used when
// calling unreliable dependencies.
//
// # Adaptive Rate Limiting
//
// AdaptiveLimiter keeps two fixed windows per service: a request window
// (one minute by default) and a burst window (one second). Exceeding the
// request budget throttles the service for its full cooldown; exceeding the
// burst budget throttles it for half the cooldown.
//
// The limits in force are recomputed on every check from the base limits
// and the service's current health:
//
//   - unhealthy: request and burst limits halved, cooldown doubled
//   - healthy but slow: request and burst limits scaled by 0.8
//   - otherwise: the base limits
//
// Nothing about a degraded configuration is retained once health recovers.
//
//	rl := resilience.NewAdaptiveLimiter(registry, resilience.AdaptiveLimiterConfig{})
//
//	err := rl.Do(ctx, service.Completion, callCompletion, nil)
//	if errors.Is(err, resilience.ErrRateLimitExceeded) {
//	    // try later
//	}
//
// # Backoff and Retry
//
// Backoff computes exponential delays. Retry re-runs an operation using a
// Backoff between attempts and wraps the final failure with
// ErrMaxRetriesExceeded:
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts: 3,
//	    Backoff:     resilience.Backoff{Initial: 100 * time.Millisecond},
//	})
//	err := retry.Execute(ctx, op)
//
// # Timeouts
//
// CallWithTimeout bounds a single call. A zero duration means no deadline.
package resilience
