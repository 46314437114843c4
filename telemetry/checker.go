package telemetry

import (
	"context"

	"github.com/jonwraymond/depguard/health"
	"github.com/jonwraymond/depguard/service"
)

// Checker adapts a service's telemetry health to a health.Checker.
// Healthy but slow services report degraded.
func (r *Registry) Checker(id service.ID) health.Checker {
	return health.NewCheckerFunc(id.String(), func(ctx context.Context) health.Result {
		snap := r.Snapshot(id)
		details := map[string]any{
			"totalCalls":       snap.Metrics.TotalCalls,
			"successfulCalls":  snap.Metrics.SuccessfulCalls,
			"failedCalls":      snap.Metrics.FailedCalls,
			"averageLatencyMs": snap.Metrics.AverageLatencyMs,
		}

		var res health.Result
		switch {
		case !snap.Healthy:
			res = health.Unhealthy("dependency unhealthy", health.ErrCheckFailed)
		case snap.Slow:
			res = health.Degraded("dependency slow")
		default:
			res = health.Healthy("dependency healthy")
		}
		res.Timestamp = r.now()
		return res.WithDetails(details)
	})
}
