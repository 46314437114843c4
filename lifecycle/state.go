package lifecycle

// State is the lifecycle state of one dependency.
type State int

const (
	// StateNotReady means the dependency has not been initialized, or its
	// last initialization failed.
	StateNotReady State = iota
	// StateInitializing means Initialize is running its initializer.
	StateInitializing
	// StateReady means the dependency initialized and is healthy.
	StateReady
	// StateDegraded means the dependency initialized but telemetry reports
	// it unhealthy.
	StateDegraded
	// StateRecovering means a recovery attempt is in flight.
	StateRecovering
	// StateExhausted means recovery attempts are used up.
	StateExhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotReady:
		return "not_ready"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateRecovering:
		return "recovering"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Available reports whether calls to a dependency in this state are worth
// attempting.
func (s State) Available() bool {
	return s != StateNotReady && s != StateExhausted
}
