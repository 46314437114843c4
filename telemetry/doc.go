// Package telemetry records the outcome of every call made to an external
// dependency and derives that dependency's health from those outcomes.
//
// A Registry owns one set of counters per service plus a bounded ring of
// events shared by all services. Health is never stored: each call to
// Health or Snapshot recomputes it from the current counters.
//
// A service is healthy when all of the following hold:
//
//   - it has never been called, or its last success is inside the health window
//   - its failure rate is below the configured maximum
//   - its mean latency is below the configured maximum
//
// # Usage
//
//	reg := telemetry.NewRegistry(telemetry.DefaultConfig())
//
//	err := reg.WithTelemetry(ctx, service.Completion, func(ctx context.Context) error {
//	    return client.Complete(ctx, prompt)
//	})
//
//	report := reg.Health(service.Completion)
//	if !report.Healthy {
//	    // route around the dependency
//	}
package telemetry
