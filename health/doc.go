// Package health folds dependency checks into probe responses.
//
// A Checker reports Healthy, Degraded or Unhealthy. An Aggregator runs its
// checkers concurrently under one deadline and the worst status wins.
// RegisterHandlers mounts the probes on a gorilla/mux router:
//
//	/healthz        liveness, always 200
//	/readyz         readiness aggregator, 503 when unhealthy
//	/health         every detailed check as JSON
//	/health/{name}  one detailed check
//
// Degraded still serves 200.
package health
