// Package lifecycle initializes dependencies, watches their health and
// recovers them with bounded, backed-off retries.
//
// Each registered dependency moves through a small state machine:
//
//	NotReady -> Initializing -> Ready
//	Ready -> Degraded -> Recovering -> Ready | Exhausted
//
// Initialize runs every initializer in registration order and stops at the
// first failure. Once all succeed, a background sweep polls telemetry on a
// fixed interval and calls AttemptRecovery for every unhealthy dependency.
// Each dependency has its own retry counter. When the counter reaches
// MaxRetries the dependency is Exhausted and stays that way until the next
// Initialize.
//
// # Usage
//
//	mgr := lifecycle.NewManager(reg, lifecycle.DefaultConfig(),
//		lifecycle.WithLimiter(limiter))
//	mgr.Register(service.Completion, completionClient)
//	if err := mgr.Initialize(ctx); err != nil {
//		return err
//	}
//	defer mgr.Shutdown(ctx)
package lifecycle
