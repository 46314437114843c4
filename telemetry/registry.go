package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/depguard/observe"
	"github.com/jonwraymond/depguard/service"
)

// Config configures a Registry.
type Config struct {
	// EventCapacity bounds the event ring buffer.
	// Default: 1000
	EventCapacity int `mapstructure:"event_capacity"`

	// HealthWindow is how recent the last success must be.
	// Default: 5 minutes
	HealthWindow time.Duration `mapstructure:"health_window"`

	// MaxFailureRate is the failure rate at or above which a service is unhealthy.
	// Default: 0.5
	MaxFailureRate float64 `mapstructure:"max_failure_rate"`

	// MaxLatency is the mean latency at or above which a service is unhealthy.
	// Default: 5 seconds
	MaxLatency time.Duration `mapstructure:"max_latency"`

	// SlowLatency is the mean latency above which a healthy service is slow.
	// Default: 2 seconds
	SlowLatency time.Duration `mapstructure:"slow_latency"`

	// RecentEvents is how many events a health report carries.
	// Default: 10
	RecentEvents int `mapstructure:"recent_events"`
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		EventCapacity:  1000,
		HealthWindow:   5 * time.Minute,
		MaxFailureRate: 0.5,
		MaxLatency:     5 * time.Second,
		SlowLatency:    2 * time.Second,
		RecentEvents:   10,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.EventCapacity <= 0 {
		c.EventCapacity = def.EventCapacity
	}
	if c.HealthWindow <= 0 {
		c.HealthWindow = def.HealthWindow
	}
	if c.MaxFailureRate <= 0 {
		c.MaxFailureRate = def.MaxFailureRate
	}
	if c.MaxLatency <= 0 {
		c.MaxLatency = def.MaxLatency
	}
	if c.SlowLatency <= 0 {
		c.SlowLatency = def.SlowLatency
	}
	if c.RecentEvents <= 0 {
		c.RecentEvents = def.RecentEvents
	}
	return c
}

// Metrics is a point-in-time copy of one service's counters.
type Metrics struct {
	TotalCalls       int64      `json:"totalCalls"`
	SuccessfulCalls  int64      `json:"successfulCalls"`
	FailedCalls      int64      `json:"failedCalls"`
	AverageLatencyMs float64    `json:"averageLatencyMs"`
	LastSuccessfulAt *time.Time `json:"lastSuccessfulAt,omitempty"`
	LastError        string     `json:"lastError,omitempty"`
}

// FailureRate returns failed/total, treating zero calls as zero failures.
func (m Metrics) FailureRate() float64 {
	return float64(m.FailedCalls) / float64(max(m.TotalCalls, 1))
}

// Snapshot is a service's computed health plus its counters.
type Snapshot struct {
	Healthy bool    `json:"healthy"`
	Slow    bool    `json:"slow"`
	Metrics Metrics `json:"metrics"`
}

// Report is the read-only health view consumed by status displays.
type Report struct {
	Service      service.ID `json:"service"`
	Healthy      bool       `json:"healthy"`
	Metrics      Metrics    `json:"metrics"`
	RecentEvents []Event    `json:"recentEvents"`
}

type serviceState struct {
	mu          sync.Mutex
	total       int64
	succeeded   int64
	failed      int64
	avgLatency  float64
	lastSuccess time.Time
	lastErr     error
}

// Registry tracks call outcomes and events per service.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use. Each service has
// its own lock; the event buffer has another.
// - Errors: LogEvent and RecordCall never fail.
type Registry struct {
	config   Config
	now      func() time.Time
	inst     observe.Instruments
	services map[service.ID]*serviceState
	events   *ring
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithInstruments attaches tracing, metrics and logging.
func WithInstruments(inst observe.Instruments) Option {
	return func(r *Registry) {
		r.inst = inst.Normalize()
	}
}

// NewRegistry creates a registry tracking every known service.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	cfg = cfg.withDefaults()

	r := &Registry{
		config:   cfg,
		now:      time.Now,
		inst:     observe.NopInstruments(),
		services: make(map[service.ID]*serviceState, len(service.All())),
		events:   newRing(cfg.EventCapacity),
	}
	for _, id := range service.All() {
		r.services[id] = &serviceState{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Registry) Config() Config {
	return r.config
}

// Now returns the registry's current time.
func (r *Registry) Now() time.Time {
	return r.now()
}

func (r *Registry) state(id service.ID) *serviceState {
	st, ok := r.services[id]
	if !ok {
		// unknown ids share a throwaway state so callers never see a nil
		return &serviceState{}
	}
	return st
}

// LogEvent appends an event to the ring buffer and mirrors it to the logger.
func (r *Registry) LogEvent(ctx context.Context, kind Kind, id service.ID, msg string, meta map[string]any) {
	e := Event{
		Timestamp: r.now(),
		Kind:      kind,
		Service:   id,
		Message:   msg,
		Metadata:  meta,
	}
	r.events.push(e)

	fields := make([]observe.Field, 0, len(meta))
	for k, v := range meta {
		fields = append(fields, observe.F(k, v))
	}
	logger := r.inst.Logger.WithService(id)
	switch kind {
	case KindError:
		logger.Error(ctx, msg, fields...)
	case KindWarning:
		logger.Warn(ctx, msg, fields...)
	default:
		logger.Info(ctx, msg, fields...)
	}
}

// RecordCall records one completed call that started at start. A nil err
// counts as a success.
func (r *Registry) RecordCall(ctx context.Context, id service.ID, start time.Time, err error) {
	now := r.now()
	duration := now.Sub(start)
	ms := float64(duration) / float64(time.Millisecond)

	st := r.state(id)
	st.mu.Lock()
	st.total++
	st.avgLatency = (st.avgLatency*float64(st.total-1) + ms) / float64(st.total)
	if err == nil {
		st.succeeded++
		st.lastSuccess = now
	} else {
		st.failed++
		st.lastErr = err
	}
	st.mu.Unlock()

	r.inst.Metrics.RecordCall(ctx, id, duration, err)
}

// Snapshot computes the current health of a service.
func (r *Registry) Snapshot(id service.ID) Snapshot {
	st := r.state(id)
	st.mu.Lock()
	m := Metrics{
		TotalCalls:       st.total,
		SuccessfulCalls:  st.succeeded,
		FailedCalls:      st.failed,
		AverageLatencyMs: st.avgLatency,
	}
	if !st.lastSuccess.IsZero() {
		t := st.lastSuccess
		m.LastSuccessfulAt = &t
	}
	if st.lastErr != nil {
		m.LastError = st.lastErr.Error()
	}
	st.mu.Unlock()

	healthy := r.recent(m) &&
		m.FailureRate() < r.config.MaxFailureRate &&
		m.AverageLatencyMs < durationMs(r.config.MaxLatency)

	return Snapshot{
		Healthy: healthy,
		Slow:    m.AverageLatencyMs > durationMs(r.config.SlowLatency),
		Metrics: m,
	}
}

func (r *Registry) recent(m Metrics) bool {
	if m.LastSuccessfulAt == nil {
		return m.TotalCalls == 0
	}
	return r.now().Sub(*m.LastSuccessfulAt) < r.config.HealthWindow
}

// Health returns the health report for a service, including its most
// recent events.
func (r *Registry) Health(id service.ID) Report {
	snap := r.Snapshot(id)
	return Report{
		Service:      id,
		Healthy:      snap.Healthy,
		Metrics:      snap.Metrics,
		RecentEvents: r.events.recent(id, r.config.RecentEvents),
	}
}

// Events returns every buffered event, oldest first.
func (r *Registry) Events() []Event {
	return r.events.all()
}

// WithTelemetry runs op, records its outcome, and returns its error
// unchanged. Failures are also logged as error events.
func (r *Registry) WithTelemetry(ctx context.Context, id service.ID, op func(context.Context) error) error {
	ctx, span := r.inst.Tracer.StartSpan(ctx, id)
	start := r.now()

	err := op(ctx)

	r.RecordCall(ctx, id, start, err)
	r.inst.Tracer.EndSpan(span, err)
	if err != nil {
		r.LogEvent(ctx, KindError, id, "call failed", map[string]any{
			"error":    err.Error(),
			"canceled": errors.Is(err, context.Canceled),
		})
	}
	return err
}

// ResetService clears one service's counters.
func (r *Registry) ResetService(id service.ID) {
	st := r.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.total, st.succeeded, st.failed = 0, 0, 0
	st.avgLatency = 0
	st.lastSuccess = time.Time{}
	st.lastErr = nil
}

// Reset clears every counter and the event buffer.
func (r *Registry) Reset() {
	for id := range r.services {
		r.ResetService(id)
	}
	r.events.reset()
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
