package health

import "errors"

var (
	// ErrCheckFailed marks an unhealthy result.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks a check that missed the aggregator deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned for an unregistered check name.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
