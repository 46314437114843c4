package orchestrator

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/depguard/auth"
	"github.com/jonwraymond/depguard/fallback"
	"github.com/jonwraymond/depguard/health"
	"github.com/jonwraymond/depguard/observe"
	"github.com/jonwraymond/depguard/service"
)

// maxRequestBody caps the size of an annotate request.
const maxRequestBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the status surface:
//
//	GET  /healthz              liveness
//	GET  /readyz               lifecycle readiness
//	GET  /health               per-service telemetry health
//	GET  /health/{name}        one service's telemetry health
//	GET  /services             status of every service
//	GET  /services/{service}   health report, recent events, limiter and lifecycle state
//	POST /annotate             run a request through the fallback chain
//	GET  /metrics              Prometheus metrics, when that exporter is selected
//
// When server.auth is enabled the /services and /annotate routes require an
// API key or bearer token.
func (o *Orchestrator) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(o.logRequests)

	health.RegisterHandlers(r, o.readiness, o.detailed)
	r.Handle("/services", o.protect(o.handleServices)).Methods(http.MethodGet)
	r.Handle("/services/{service}", o.protect(o.handleService)).Methods(http.MethodGet)
	r.Handle("/annotate", o.protect(o.handleAnnotate)).Methods(http.MethodPost)

	if m := o.config.Observe.Metrics; m.Enabled && m.Exporter == "prometheus" {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	return r
}

func (o *Orchestrator) protect(h http.HandlerFunc) http.Handler {
	if o.authn == nil {
		return h
	}
	return auth.Middleware(o.authn, o.denyAuth)(h)
}

func (o *Orchestrator) denyAuth(w http.ResponseWriter, r *http.Request, err error) {
	o.inst.Logger.Warn(r.Context(), "request rejected",
		observe.F("path", r.URL.Path),
		observe.F("error", err.Error()),
	)
	w.Header().Set("WWW-Authenticate", `Bearer realm="depguard"`)
	health.WriteJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
}

func (o *Orchestrator) handleServices(w http.ResponseWriter, r *http.Request) {
	out := make([]ServiceStatus, 0, len(service.All()))
	for _, id := range service.All() {
		out = append(out, o.Status(id))
	}
	health.WriteJSON(w, http.StatusOK, out)
}

func (o *Orchestrator) handleService(w http.ResponseWriter, r *http.Request) {
	id, err := service.Parse(mux.Vars(r)["service"])
	if err != nil {
		health.WriteJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	health.WriteJSON(w, http.StatusOK, o.Status(id))
}

func (o *Orchestrator) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	var req fallback.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		health.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	out, err := o.Annotate(r.Context(), req)
	switch {
	case errors.Is(err, fallback.ErrAllTiersFailed):
		health.WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case err != nil:
		health.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		health.WriteJSON(w, http.StatusOK, out)
	}
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func (o *Orchestrator) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := o.now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		o.inst.Logger.Debug(r.Context(), "http request",
			observe.F("method", r.Method),
			observe.F("path", r.URL.Path),
			observe.F("status", rec.code),
			observe.F("duration_ms", o.now().Sub(start).Milliseconds()),
		)
	})
}
