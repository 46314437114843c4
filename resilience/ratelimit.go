package resilience

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonwraymond/depguard/observe"
	"github.com/jonwraymond/depguard/service"
	"github.com/jonwraymond/depguard/telemetry"
)

// Limits is a per-service rate limit configuration.
type Limits struct {
	// MaxRequestsPerMinute caps admissions per window.
	MaxRequestsPerMinute int `mapstructure:"max_requests_per_minute"`

	// BurstLimit caps admissions per burst window.
	BurstLimit int `mapstructure:"burst_limit"`

	// Cooldown is how long a service stays throttled after exceeding its
	// window budget. Burst overflows throttle for half of it.
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// DefaultLimits returns the base limits for every known service.
func DefaultLimits() map[service.ID]Limits {
	return map[service.ID]Limits{
		service.Completion:    {MaxRequestsPerMinute: 60, BurstLimit: 10, Cooldown: 60 * time.Second},
		service.VectorSearch:  {MaxRequestsPerMinute: 100, BurstLimit: 20, Cooldown: 30 * time.Second},
		service.Documentation: {MaxRequestsPerMinute: 120, BurstLimit: 30, Cooldown: 15 * time.Second},
	}
}

// Scale returns l with both request limits multiplied by factor, rounded
// down, never below 1. Cooldown is unchanged.
func (l Limits) Scale(factor float64) Limits {
	l.MaxRequestsPerMinute = scaleLimit(l.MaxRequestsPerMinute, factor)
	l.BurstLimit = scaleLimit(l.BurstLimit, factor)
	return l
}

func scaleLimit(n int, factor float64) int {
	return max(int(math.Floor(float64(n)*factor)), 1)
}

// Effective derives the limits in force from the base limits and a health
// snapshot. Nothing is retained between calls.
func Effective(base Limits, snap telemetry.Snapshot) Limits {
	switch {
	case !snap.Healthy:
		eff := base.Scale(0.5)
		eff.Cooldown = base.Cooldown * 2
		return eff
	case snap.Slow:
		return base.Scale(0.8)
	default:
		return base
	}
}

// Monitor supplies health snapshots and receives limiter events.
// *telemetry.Registry satisfies it.
type Monitor interface {
	Snapshot(id service.ID) telemetry.Snapshot
	LogEvent(ctx context.Context, kind telemetry.Kind, id service.ID, msg string, meta map[string]any)
}

// Denial reasons.
const (
	ReasonWindow   = "window"
	ReasonBurst    = "burst"
	ReasonCooldown = "cooldown"
)

// AdaptiveLimiterConfig configures the adaptive limiter.
type AdaptiveLimiterConfig struct {
	// Limits holds the base limits per service. Missing services use
	// DefaultLimits.
	Limits map[service.ID]Limits

	// Window is the request window length.
	// Default: 1 minute
	Window time.Duration

	// BurstWindow is the burst window length.
	// Default: 1 second
	BurstWindow time.Duration
}

type limiterState struct {
	mu            sync.Mutex
	windowCount   int
	windowStart   time.Time
	burstCount    int
	burstStart    time.Time
	throttled     bool
	cooldownUntil time.Time
}

// AdaptiveLimiter admits or denies calls per service using fixed windows.
// The limits in force shrink while a service is unhealthy or slow.
//
// Contract:
// - Concurrency: safe for concurrent use; each service has its own lock.
// - Ordering: counters are updated in completion order, so admission is
// approximate under concurrent calls.
type AdaptiveLimiter struct {
	config  AdaptiveLimiterConfig
	monitor Monitor
	now     func() time.Time
	inst    observe.Instruments
	states  map[service.ID]*limiterState
}

// LimiterOption configures an AdaptiveLimiter.
type LimiterOption func(*AdaptiveLimiter)

// WithLimiterClock overrides the time source.
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *AdaptiveLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLimiterInstruments attaches metrics and logging.
func WithLimiterInstruments(inst observe.Instruments) LimiterOption {
	return func(l *AdaptiveLimiter) {
		l.inst = inst.Normalize()
	}
}

// NewAdaptiveLimiter creates a limiter. A nil monitor treats every
// service as healthy.
func NewAdaptiveLimiter(monitor Monitor, config AdaptiveLimiterConfig, opts ...LimiterOption) *AdaptiveLimiter {
	// Apply defaults
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.BurstWindow <= 0 {
		config.BurstWindow = time.Second
	}
	limits := DefaultLimits()
	for id, l := range config.Limits {
		limits[id] = l
	}
	config.Limits = limits

	l := &AdaptiveLimiter{
		config:  config,
		monitor: monitor,
		now:     time.Now,
		inst:    observe.NopInstruments(),
		states:  make(map[service.ID]*limiterState, len(service.All())),
	}
	for _, opt := range opts {
		opt(l)
	}

	start := l.now()
	for _, id := range service.All() {
		l.states[id] = &limiterState{windowStart: start, burstStart: start}
	}
	return l
}

// Base returns the configured base limits for a service.
func (l *AdaptiveLimiter) Base(id service.ID) Limits {
	return l.config.Limits[id]
}

func (l *AdaptiveLimiter) snapshot(id service.ID) telemetry.Snapshot {
	if l.monitor == nil {
		return telemetry.Snapshot{Healthy: true}
	}
	return l.monitor.Snapshot(id)
}

func (l *AdaptiveLimiter) logEvent(ctx context.Context, kind telemetry.Kind, id service.ID, msg string, meta map[string]any) {
	if l.monitor != nil {
		l.monitor.LogEvent(ctx, kind, id, msg, meta)
	}
}

type decision struct {
	allowed    bool
	reason     string
	retryAfter time.Duration
	cleared    bool
	effective  Limits
}

func (l *AdaptiveLimiter) decide(id service.ID) decision {
	st, ok := l.states[id]
	if !ok {
		return decision{reason: ReasonWindow}
	}
	eff := Effective(l.Base(id), l.snapshot(id))

	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()
	d := decision{effective: eff}

	if now.Sub(st.windowStart) >= l.config.Window {
		st.windowCount = 0
		st.windowStart = now
	}
	if now.Sub(st.burstStart) >= l.config.BurstWindow {
		st.burstCount = 0
		st.burstStart = now
	}
	if st.throttled && !now.Before(st.cooldownUntil) {
		st.throttled = false
		d.cleared = true
	}

	switch {
	case st.throttled:
		d.reason = ReasonCooldown
		d.retryAfter = st.cooldownUntil.Sub(now)
	case st.windowCount >= eff.MaxRequestsPerMinute:
		st.throttled = true
		st.cooldownUntil = now.Add(eff.Cooldown)
		d.reason = ReasonWindow
		d.retryAfter = eff.Cooldown
	case st.burstCount >= eff.BurstLimit:
		st.throttled = true
		st.cooldownUntil = now.Add(eff.Cooldown / 2)
		d.reason = ReasonBurst
		d.retryAfter = eff.Cooldown / 2
	default:
		st.windowCount++
		st.burstCount++
		d.allowed = true
	}
	return d
}

// check runs one admission decision and reports its side effects.
func (l *AdaptiveLimiter) check(ctx context.Context, id service.ID) decision {
	d := l.decide(id)

	if d.cleared {
		l.logEvent(ctx, telemetry.KindInfo, id, "rate limit cooldown ended", nil)
	}
	if !d.allowed {
		if d.reason != ReasonCooldown {
			l.logEvent(ctx, telemetry.KindWarning, id, "rate limit exceeded", map[string]any{
				"reason":                  d.reason,
				"cooldown_ms":             d.retryAfter.Milliseconds(),
				"max_requests_per_minute": d.effective.MaxRequestsPerMinute,
				"burst_limit":             d.effective.BurstLimit,
			})
		}
		l.inst.Metrics.RecordDenial(ctx, id, d.reason)
	}
	return d
}

// Allow reports whether a call to id may proceed now. An admitted call is
// counted against both windows.
func (l *AdaptiveLimiter) Allow(ctx context.Context, id service.ID) bool {
	return l.check(ctx, id).allowed
}

// Do runs op if the limiter admits the call. When denied it runs fallback
// if one is given, otherwise it returns a *RateLimitError.
func (l *AdaptiveLimiter) Do(ctx context.Context, id service.ID, op, fallback func(context.Context) error) error {
	d := l.check(ctx, id)
	if d.allowed {
		return op(ctx)
	}

	if fallback != nil {
		l.logEvent(ctx, telemetry.KindInfo, id, "rate limited, using fallback", map[string]any{"reason": d.reason})
		return fallback(ctx)
	}
	return &RateLimitError{Service: id, Reason: d.reason, RetryAfter: d.retryAfter}
}

// Info is a read-only view of a service's limiter state.
type Info struct {
	Service             service.ID `json:"service"`
	WindowRequests      int        `json:"windowRequests"`
	BurstCount          int        `json:"burstCount"`
	Throttled           bool       `json:"throttled"`
	MaxRequestsPerMin   int        `json:"maxRequestsPerMinute"`
	BurstLimit          int        `json:"burstLimit"`
	CooldownPeriodMs    int64      `json:"cooldownPeriodMs"`
	BaseMaxRequests     int        `json:"baseMaxRequestsPerMinute"`
	BaseBurstLimit      int        `json:"baseBurstLimit"`
	WindowRemainingMs   int64      `json:"windowRemainingMs"`
	CooldownRemainingMs int64      `json:"cooldownRemainingMs"`
}

// Info returns the current limiter state for id without changing it.
func (l *AdaptiveLimiter) Info(id service.ID) Info {
	base := l.Base(id)
	eff := Effective(base, l.snapshot(id))
	info := Info{
		Service:           id,
		MaxRequestsPerMin: eff.MaxRequestsPerMinute,
		BurstLimit:        eff.BurstLimit,
		CooldownPeriodMs:  eff.Cooldown.Milliseconds(),
		BaseMaxRequests:   base.MaxRequestsPerMinute,
		BaseBurstLimit:    base.BurstLimit,
	}

	st, ok := l.states[id]
	if !ok {
		return info
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()
	info.WindowRequests = st.windowCount
	info.BurstCount = st.burstCount
	info.WindowRemainingMs = max(l.config.Window-now.Sub(st.windowStart), 0).Milliseconds()
	if st.throttled {
		remaining := st.cooldownUntil.Sub(now)
		info.Throttled = remaining > 0
		info.CooldownRemainingMs = max(remaining, 0).Milliseconds()
	}
	return info
}

// ResetService clears one service's counters and throttle.
func (l *AdaptiveLimiter) ResetService(id service.ID) {
	st, ok := l.states[id]
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()
	st.windowCount = 0
	st.windowStart = now
	st.burstCount = 0
	st.burstStart = now
	st.throttled = false
	st.cooldownUntil = time.Time{}
}

// Reset clears every service's state.
func (l *AdaptiveLimiter) Reset() {
	for id := range l.states {
		l.ResetService(id)
	}
}
