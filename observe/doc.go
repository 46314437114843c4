// Package observe provides the logging, tracing and metrics primitives used
// by every depguard component.
//
// An Observer owns the otel tracer and meter providers plus a structured
// Logger. Components never talk to otel directly; they receive an
// Instruments bundle and record dependency calls, rate-limit denials and
// fallback tiers through it.
//
// # Usage
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "depguard",
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(ctx)
//
//	inst, err := observe.InstrumentsFromObserver(obs)
package observe
