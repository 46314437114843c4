package fallback

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/depguard/service"
)

// Sentinel errors for fallback operations.
var (
	// ErrAllTiersFailed is returned when no tier produced a result.
	ErrAllTiersFailed = errors.New("fallback: all tiers failed")

	// ErrUnavailable marks a tier skipped because its dependency is not
	// available.
	ErrUnavailable = errors.New("fallback: dependency unavailable")

	// ErrNoTiers is returned when an executor is built without tiers.
	ErrNoTiers = errors.New("fallback: no tiers configured")

	// ErrDuplicateTier is returned when two tiers share a kind.
	ErrDuplicateTier = errors.New("fallback: duplicate tier")

	// ErrUnknownTier is returned for tier kinds outside the chain.
	ErrUnknownTier = errors.New("fallback: unknown tier kind")

	// ErrNilAnnotator is returned for a tier without an annotator.
	ErrNilAnnotator = errors.New("fallback: nil annotator")

	// ErrInvalidPattern is returned when a heuristic pattern does not
	// compile.
	ErrInvalidPattern = errors.New("fallback: invalid pattern")
)

// TierError reports why one tier did not produce a result.
type TierError struct {
	Tier    TierKind
	Service service.ID
	Err     error
}

func (e *TierError) Error() string {
	if e.Tier == TierStatic {
		return fmt.Sprintf("fallback: %s tier: %v", e.Tier, e.Err)
	}
	return fmt.Sprintf("fallback: %s tier (%s): %v", e.Tier, e.Service, e.Err)
}

// Unwrap returns the underlying error.
func (e *TierError) Unwrap() error {
	return e.Err
}
