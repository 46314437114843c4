package lifecycle

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/depguard/service"
)

// Sentinel errors for lifecycle operations.
var (
	// ErrInitialization matches every InitError.
	ErrInitialization = errors.New("lifecycle: initialization failed")

	// ErrRecoveryExhausted is returned once a dependency used up its
	// recovery attempts.
	ErrRecoveryExhausted = errors.New("lifecycle: recovery attempts exhausted")

	// ErrUnknownService is returned for dependencies that were never
	// registered.
	ErrUnknownService = errors.New("lifecycle: service not registered")
)

// InitError reports a failed initializer. It matches ErrInitialization and
// unwraps to the initializer's error.
type InitError struct {
	Service service.ID
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("lifecycle: initialize %s: %v", e.Service, e.Err)
}

// Unwrap returns the initializer's error.
func (e *InitError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInitialization.
func (e *InitError) Is(target error) bool {
	return target == ErrInitialization
}
