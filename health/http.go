package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Response is the JSON body of /health.
type Response struct {
	Status    Status                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Checks    map[string]CheckResponse `json:"checks,omitempty"`
}

// CheckResponse is the JSON form of one Result.
type CheckResponse struct {
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Duration  string         `json:"duration,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func newCheckResponse(r Result) CheckResponse {
	resp := CheckResponse{
		Status:    r.Status,
		Message:   r.Message,
		Duration:  r.Duration.String(),
		Timestamp: r.Timestamp.UTC(),
		Details:   r.Details,
	}
	if r.Error != nil {
		resp.Error = r.Error.Error()
	}
	return resp
}

// StatusCode maps a status to an HTTP code. Degraded still serves.
func StatusCode(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// WriteJSON writes v as a JSON response with code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// LivenessHandler always answers 200 OK.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "OK")
	}
}

// ReadinessHandler answers OK, DEGRADED or UNHEALTHY (503).
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := Worst(agg.CheckAll(r.Context()))
		switch status {
		case StatusHealthy:
			writeText(w, http.StatusOK, "OK")
		case StatusDegraded:
			writeText(w, http.StatusOK, "DEGRADED")
		default:
			writeText(w, http.StatusServiceUnavailable, "UNHEALTHY")
		}
	}
}

// DetailedHandler serves every check of agg as a Response.
func DetailedHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := agg.CheckAll(r.Context())
		resp := Response{
			Status:    Worst(results),
			Timestamp: agg.now().UTC(),
			Checks:    make(map[string]CheckResponse, len(results)),
		}
		for name, res := range results {
			resp.Checks[name] = newCheckResponse(res)
		}
		WriteJSON(w, StatusCode(resp.Status), resp)
	}
}

// CheckHandler serves the check named by the {name} route variable.
func CheckHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := agg.Check(r.Context(), mux.Vars(r)["name"])
		if err != nil {
			WriteJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		WriteJSON(w, StatusCode(res.Status), newCheckResponse(res))
	}
}

// RegisterHandlers mounts the probe endpoints on r.
func RegisterHandlers(r *mux.Router, readiness, detailed *Aggregator) {
	r.HandleFunc("/healthz", LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", ReadinessHandler(readiness)).Methods(http.MethodGet)
	r.HandleFunc("/health", DetailedHandler(detailed)).Methods(http.MethodGet)
	r.HandleFunc("/health/{name}", CheckHandler(detailed)).Methods(http.MethodGet)
}
