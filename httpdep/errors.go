package httpdep

import (
	"errors"
	"fmt"
)

// Sentinel errors for HTTP dependencies.
var (
	// ErrInvalidEndpoint is returned for a missing or malformed endpoint.
	ErrInvalidEndpoint = errors.New("httpdep: invalid endpoint")

	// ErrInvalidResponse is returned when a response body is not JSON.
	ErrInvalidResponse = errors.New("httpdep: invalid response")

	// ErrMissingResult is returned when result_path does not resolve to an
	// array.
	ErrMissingResult = errors.New("httpdep: result path not found")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("httpdep: %s %s returned status %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("httpdep: %s %s returned status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == 429 || e.Code >= 500
}
