package lifecycle

import (
	"context"

	"github.com/jonwraymond/depguard/health"
)

// Checker reports readiness: healthy once every dependency is initialized,
// unhealthy otherwise. Details carry each dependency's state.
func (m *Manager) Checker() health.Checker {
	return health.NewCheckerFunc("lifecycle", func(ctx context.Context) health.Result {
		details := make(map[string]any)
		for id, st := range m.Statuses() {
			details[id.String()] = st.State.String()
		}

		if !m.IsInitialized() {
			return health.Unhealthy("dependencies not ready", health.ErrCheckFailed).WithDetails(details)
		}
		return health.Healthy("all dependencies ready").WithDetails(details)
	})
}
