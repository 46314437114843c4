package lifecycle

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/depguard/observe"
	"github.com/jonwraymond/depguard/resilience"
	"github.com/jonwraymond/depguard/service"
	"github.com/jonwraymond/depguard/telemetry"
)

// Config configures a Manager.
type Config struct {
	// SweepInterval is how often the health sweep runs.
	// Default: 30 seconds
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// MaxRetries bounds consecutive failed recovery attempts per dependency.
	// Default: 3
	MaxRetries int `mapstructure:"max_retries"`

	// BaseDelay is the backoff after the first failed recovery attempt.
	// Later attempts double it.
	// Default: 1 second
	BaseDelay time.Duration `mapstructure:"base_delay"`

	// MaxDelay caps the recovery backoff.
	// Default: 30 seconds
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// DefaultConfig returns the default lifecycle configuration.
func DefaultConfig() Config {
	return Config{
		SweepInterval: 30 * time.Second,
		MaxRetries:    3,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	return c
}

// Initializer brings a dependency to a usable state. Init must be safe to
// call again after a failure.
type Initializer interface {
	Init(ctx context.Context) error
}

// InitFunc adapts a function to Initializer.
type InitFunc func(ctx context.Context) error

// Init calls f(ctx).
func (f InitFunc) Init(ctx context.Context) error {
	return f(ctx)
}

// Telemetry is what the manager needs from the telemetry registry.
// *telemetry.Registry satisfies it.
type Telemetry interface {
	Snapshot(id service.ID) telemetry.Snapshot
	WithTelemetry(ctx context.Context, id service.ID, op func(context.Context) error) error
	LogEvent(ctx context.Context, kind telemetry.Kind, id service.ID, msg string, meta map[string]any)
}

// LimiterResetter clears a dependency's throttling state when Initialize
// revives an exhausted dependency. *resilience.AdaptiveLimiter satisfies it.
type LimiterResetter interface {
	ResetService(id service.ID)
}

// Status is a point-in-time view of one dependency.
type Status struct {
	Service   service.ID `json:"service"`
	State     State      `json:"state"`
	Ready     bool       `json:"ready"`
	Retries   int        `json:"retries"`
	LastError string     `json:"lastError,omitempty"`
}

type entry struct {
	mu      sync.Mutex
	init    Initializer
	state   State
	ready   bool
	retries int
	lastErr error
}

// Manager owns initialization, health sweeps and recovery for a set of
// dependencies.
//
// Contract:
// - Concurrency: safe for concurrent use. Each dependency has its own lock
// and concurrent recoveries of one dependency share a single attempt.
// - Lifecycle: Shutdown stops the sweep and waits for it; calling it twice
// is a no-op.
type Manager struct {
	config  Config
	tel     Telemetry
	limiter LimiterResetter
	logger  observe.Logger
	sleep   func(context.Context, time.Duration) error
	backoff resilience.Backoff

	mu      sync.Mutex
	order   []service.ID
	entries map[service.ID]*entry
	active  bool
	cancel  context.CancelFunc
	done    chan struct{}

	recoveries singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithLimiter resets the given limiter's state for a dependency that
// Initialize brings back from Exhausted. Sweep recoveries leave throttling
// to the limiter's own cooldown.
func WithLimiter(l LimiterResetter) Option {
	return func(m *Manager) {
		m.limiter = l
	}
}

// WithLogger sets the logger for manager-level messages.
func WithLogger(l observe.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSleep overrides how the manager waits out recovery backoff.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(m *Manager) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// NewManager creates a manager reporting to tel.
func NewManager(tel Telemetry, cfg Config, opts ...Option) *Manager {
	cfg = cfg.withDefaults()

	m := &Manager{
		config:  cfg,
		tel:     tel,
		logger:  observe.NopLogger(),
		sleep:   resilience.Sleep,
		backoff: resilience.Backoff{Initial: cfg.BaseDelay, Max: cfg.MaxDelay, Multiplier: 2},
		entries: make(map[service.ID]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Register adds a dependency. Registering the same service again replaces
// its initializer and resets its state.
func (m *Manager) Register(id service.ID, init Initializer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		m.order = append(m.order, id)
	}
	m.entries[id] = &entry{init: init}
}

// Services returns the registered dependencies in registration order.
func (m *Manager) Services() []service.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.ID(nil), m.order...)
}

func (m *Manager) entry(id service.ID) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	return e, ok
}

// Initialize runs every initializer in registration order. The first
// failure stops the sequence and is returned as an *InitError; services
// initialized before it stay ready. On success the health sweep starts.
//
// Calling Initialize again restarts the sweep and gives exhausted services
// a fresh retry budget and, with WithLimiter, a clean limiter state.
func (m *Manager) Initialize(ctx context.Context) error {
	m.stopSweep()

	m.mu.Lock()
	m.active = true
	m.mu.Unlock()

	for _, id := range m.Services() {
		e, _ := m.entry(id)

		e.mu.Lock()
		revived := e.state == StateExhausted
		e.state = StateInitializing
		e.retries = 0
		e.mu.Unlock()

		err := m.tel.WithTelemetry(ctx, id, e.init.Init)

		e.mu.Lock()
		if err != nil {
			e.state = StateNotReady
			e.ready = false
			e.lastErr = err
		} else {
			e.state = StateReady
			e.ready = true
			e.lastErr = nil
		}
		e.mu.Unlock()

		if err != nil {
			m.tel.LogEvent(ctx, telemetry.KindError, id, "initialization failed", map[string]any{
				"error": err.Error(),
			})
			return &InitError{Service: id, Err: err}
		}
		if revived && m.limiter != nil {
			m.limiter.ResetService(id)
		}
		m.tel.LogEvent(ctx, telemetry.KindInfo, id, "service initialized", nil)
	}

	m.startSweep(context.WithoutCancel(ctx))
	return nil
}

func (m *Manager) startSweep(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(ctx, done)
}

// stopSweep cancels a running sweep and waits for it to exit.
func (m *Manager) stopSweep() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep checks every registered dependency once. Unhealthy ones move to
// Degraded and get a recovery attempt; degraded ones that are healthy again
// return to Ready. Recoveries run concurrently and Sweep waits for them.
func (m *Manager) Sweep(ctx context.Context) {
	var g errgroup.Group

	for _, id := range m.Services() {
		e, _ := m.entry(id)
		healthy := m.tel.Snapshot(id).Healthy

		e.mu.Lock()
		state := e.state
		switch {
		case healthy && state == StateDegraded:
			e.state = StateReady
			e.retries = 0
		case !healthy && state == StateReady:
			e.state = StateDegraded
		}
		e.mu.Unlock()

		if healthy || state == StateNotReady || state == StateInitializing {
			continue
		}

		g.Go(func() error {
			if err := m.AttemptRecovery(ctx, id); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.WithService(id).Debug(ctx, "sweep recovery did not succeed", observe.F("error", err.Error()))
			}
			return nil
		})
	}

	_ = g.Wait()
}

// AttemptRecovery re-runs a dependency's initializer once. Concurrent calls
// for the same dependency share one attempt.
//
// A success resets the retry counter. Limiter state is left alone, so a
// throttled dependency still waits out its cooldown. A failure
// waits out the backoff for that attempt before returning the
// *InitError. Once MaxRetries attempts have failed in a row the dependency
// is Exhausted and every further call returns ErrRecoveryExhausted without
// calling the initializer.
func (m *Manager) AttemptRecovery(ctx context.Context, id service.ID) error {
	if _, ok := m.entry(id); !ok {
		return ErrUnknownService
	}
	_, err, _ := m.recoveries.Do(id.String(), func() (any, error) {
		return nil, m.recover(ctx, id)
	})
	return err
}

func (m *Manager) recover(ctx context.Context, id service.ID) error {
	e, _ := m.entry(id)

	e.mu.Lock()
	if e.retries >= m.config.MaxRetries {
		entering := e.state != StateExhausted
		e.state = StateExhausted
		retries := e.retries
		e.mu.Unlock()

		if entering {
			m.logExhausted(ctx, id, retries)
		}
		return ErrRecoveryExhausted
	}
	e.retries++
	attempt := e.retries
	e.state = StateRecovering
	e.mu.Unlock()

	err := m.tel.WithTelemetry(ctx, id, e.init.Init)
	if err == nil {
		e.mu.Lock()
		e.retries = 0
		e.state = StateReady
		e.ready = true
		e.lastErr = nil
		e.mu.Unlock()

		m.tel.LogEvent(ctx, telemetry.KindInfo, id, "service recovered", map[string]any{
			"attempt": attempt,
		})
		return nil
	}

	exhausted := attempt >= m.config.MaxRetries
	e.mu.Lock()
	e.ready = false
	e.lastErr = err
	if exhausted {
		e.state = StateExhausted
	} else {
		e.state = StateDegraded
	}
	e.mu.Unlock()

	m.tel.LogEvent(ctx, telemetry.KindError, id, "recovery attempt failed", map[string]any{
		"attempt": attempt,
		"error":   err.Error(),
	})
	if exhausted {
		m.logExhausted(ctx, id, attempt)
	}

	if serr := m.sleep(ctx, m.backoff.Delay(attempt)); serr != nil {
		return errors.Join(&InitError{Service: id, Err: err}, serr)
	}
	return &InitError{Service: id, Err: err}
}

// logExhausted records the transition into Exhausted. Later calls that find
// the budget spent stay silent.
func (m *Manager) logExhausted(ctx context.Context, id service.ID, retries int) {
	m.tel.LogEvent(ctx, telemetry.KindWarning, id, "recovery attempts exhausted", map[string]any{
		"retries": retries,
	})
}

// IsInitialized reports whether Initialize has run since the last Shutdown
// and every registered dependency is ready.
func (m *Manager) IsInitialized() bool {
	m.mu.Lock()
	active := m.active
	entries := make([]*entry, 0, len(m.order))
	for _, id := range m.order {
		entries = append(entries, m.entries[id])
	}
	m.mu.Unlock()

	if !active {
		return false
	}
	for _, e := range entries {
		e.mu.Lock()
		ready := e.ready
		e.mu.Unlock()
		if !ready {
			return false
		}
	}
	return true
}

// State returns a dependency's state. Unregistered services report
// StateNotReady.
func (m *Manager) State(id service.ID) State {
	e, ok := m.entry(id)
	if !ok {
		return StateNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Available reports whether calls to id are worth attempting. Services the
// manager does not track are always available.
func (m *Manager) Available(id service.ID) bool {
	if _, ok := m.entry(id); !ok {
		return true
	}
	return m.State(id).Available()
}

// Status returns a point-in-time view of one dependency.
func (m *Manager) Status(id service.ID) (Status, error) {
	e, ok := m.entry(id)
	if !ok {
		return Status{}, ErrUnknownService
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Service: id,
		State:   e.state,
		Ready:   e.ready,
		Retries: e.retries,
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st, nil
}

// Statuses returns every dependency's status keyed by service.
func (m *Manager) Statuses() map[service.ID]Status {
	out := make(map[service.ID]Status)
	for _, id := range m.Services() {
		if st, err := m.Status(id); err == nil {
			out[id] = st
		}
	}
	return out
}

// Shutdown stops the health sweep, waits for it to exit and clears every
// readiness flag and retry counter. It is a no-op when the manager is not
// running.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return nil
	}
	m.active = false
	entries := maps.Clone(m.entries)
	m.mu.Unlock()

	m.stopSweep()

	for _, e := range entries {
		e.mu.Lock()
		e.state = StateNotReady
		e.ready = false
		e.retries = 0
		e.lastErr = nil
		e.mu.Unlock()
	}

	m.logger.Info(ctx, "lifecycle shut down", observe.F("services", len(entries)))
	return nil
}
