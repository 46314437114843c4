package fallback

import (
	"fmt"
	"time"

	"github.com/jonwraymond/depguard/service"
)

// TierKind ranks a tier in the chain. Lower kinds are tried first.
type TierKind int

const (
	// TierPrimary calls the main dependency.
	TierPrimary TierKind = iota
	// TierSecondary calls an alternate dependency.
	TierSecondary
	// TierStatic runs a dependency-free heuristic.
	TierStatic
)

// String returns the tier name.
func (k TierKind) String() string {
	switch k {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierStatic:
		return "static"
	default:
		return "unknown"
	}
}

// MarshalText encodes the tier by name.
func (k TierKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Tier is one configured strategy in the chain.
type Tier struct {
	// Kind selects the tier's position in the chain.
	Kind TierKind

	// Service is the dependency behind a primary or secondary tier. It is
	// ignored for static tiers.
	Service service.ID

	// Annotator does the work.
	Annotator Annotator

	// Timeout bounds one call. Zero means no deadline.
	Timeout time.Duration
}

func (t Tier) validate() error {
	if t.Kind < TierPrimary || t.Kind > TierStatic {
		return fmt.Errorf("%w: %d", ErrUnknownTier, int(t.Kind))
	}
	if t.Annotator == nil {
		return fmt.Errorf("%w: %s", ErrNilAnnotator, t.Kind)
	}
	if t.Kind != TierStatic && !t.Service.Valid() {
		return fmt.Errorf("%w: %s tier", service.ErrUnknown, t.Kind)
	}
	return nil
}

// dependent reports whether the tier calls an external dependency.
func (t Tier) dependent() bool {
	return t.Kind != TierStatic
}
