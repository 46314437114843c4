package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/depguard/service"
	"github.com/jonwraymond/depguard/telemetry"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvent struct {
	kind telemetry.Kind
	msg  string
}

// stubMonitor returns a fixed snapshot and records events.
type stubMonitor struct {
	mu     sync.Mutex
	snap   telemetry.Snapshot
	events []recordedEvent
}

func healthyMonitor() *stubMonitor {
	return &stubMonitor{snap: telemetry.Snapshot{Healthy: true}}
}

func (m *stubMonitor) Snapshot(service.ID) telemetry.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *stubMonitor) LogEvent(_ context.Context, kind telemetry.Kind, _ service.ID, msg string, _ map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{kind, msg})
}

func (m *stubMonitor) set(snap telemetry.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
}

func (m *stubMonitor) count(kind telemetry.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func newTestLimiter(mon Monitor, clock *testClock, limits Limits) *AdaptiveLimiter {
	return NewAdaptiveLimiter(mon, AdaptiveLimiterConfig{
		Limits: map[service.ID]Limits{service.Completion: limits},
	}, WithLimiterClock(clock.Now))
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		id   service.ID
		want Limits
	}{
		{service.Completion, Limits{60, 10, 60 * time.Second}},
		{service.VectorSearch, Limits{100, 20, 30 * time.Second}},
		{service.Documentation, Limits{120, 30, 15 * time.Second}},
	}
	for _, tt := range tests {
		if got := limits[tt.id]; got != tt.want {
			t.Errorf("DefaultLimits()[%s] = %+v, want %+v", tt.id, got, tt.want)
		}
	}
}

func TestEffective(t *testing.T) {
	base := Limits{MaxRequestsPerMinute: 60, BurstLimit: 10, Cooldown: 60 * time.Second}

	tests := []struct {
		name string
		snap telemetry.Snapshot
		want Limits
	}{
		{"healthy", telemetry.Snapshot{Healthy: true}, base},
		{"slow", telemetry.Snapshot{Healthy: true, Slow: true}, Limits{48, 8, 60 * time.Second}},
		{"unhealthy", telemetry.Snapshot{Healthy: false}, Limits{30, 5, 120 * time.Second}},
		{"unhealthy and slow", telemetry.Snapshot{Healthy: false, Slow: true}, Limits{30, 5, 120 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Effective(base, tt.snap); got != tt.want {
				t.Errorf("Effective() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLimits_ScaleFloorsAtOne(t *testing.T) {
	got := Limits{MaxRequestsPerMinute: 1, BurstLimit: 1}.Scale(0.5)
	if got.MaxRequestsPerMinute != 1 || got.BurstLimit != 1 {
		t.Errorf("Scale(0.5) = %+v, want limits of 1", got)
	}
}

func TestAdaptiveLimiter_WindowLimitAndCooldown(t *testing.T) {
	clock := newTestClock()
	mon := healthyMonitor()
	rl := newTestLimiter(mon, clock, Limits{MaxRequestsPerMinute: 2, BurstLimit: 10, Cooldown: time.Minute})
	ctx := context.Background()

	if !rl.Allow(ctx, service.Completion) {
		t.Error("1st Allow() = false, want true")
	}
	if !rl.Allow(ctx, service.Completion) {
		t.Error("2nd Allow() = false, want true")
	}
	if rl.Allow(ctx, service.Completion) {
		t.Error("3rd Allow() = true, want false")
	}

	info := rl.Info(service.Completion)
	if !info.Throttled || info.CooldownRemainingMs != 60000 {
		t.Errorf("Info() = %+v, want throttled with 60000ms cooldown", info)
	}
	if mon.count(telemetry.KindWarning) != 1 {
		t.Errorf("warning events = %d, want 1", mon.count(telemetry.KindWarning))
	}

	clock.Advance(30 * time.Second)
	if rl.Allow(ctx, service.Completion) {
		t.Error("Allow() during cooldown = true, want false")
	}

	clock.Advance(30 * time.Second)
	if !rl.Allow(ctx, service.Completion) {
		t.Error("Allow() after cooldown = false, want true")
	}
	if got := rl.Info(service.Completion).WindowRequests; got != 1 {
		t.Errorf("WindowRequests = %d, want 1", got)
	}
	if mon.count(telemetry.KindInfo) != 1 {
		t.Errorf("info events = %d, want 1", mon.count(telemetry.KindInfo))
	}
}

func TestAdaptiveLimiter_BurstLimit(t *testing.T) {
	clock := newTestClock()
	rl := newTestLimiter(healthyMonitor(), clock, Limits{MaxRequestsPerMinute: 100, BurstLimit: 5, Cooldown: 10 * time.Second})
	ctx := context.Background()

	want := []bool{true, true, true, true, true, false}
	for i, w := range want {
		if got := rl.Allow(ctx, service.Completion); got != w {
			t.Errorf("call %d: Allow() = %v, want %v", i+1, got, w)
		}
	}

	// burst overflow throttles for half the cooldown
	info := rl.Info(service.Completion)
	if info.CooldownRemainingMs != 5000 {
		t.Errorf("CooldownRemainingMs = %d, want 5000", info.CooldownRemainingMs)
	}

	clock.Advance(5 * time.Second)
	if !rl.Allow(ctx, service.Completion) {
		t.Error("Allow() after burst cooldown = false, want true")
	}
}

func TestAdaptiveLimiter_BurstWindowResets(t *testing.T) {
	clock := newTestClock()
	rl := newTestLimiter(healthyMonitor(), clock, Limits{MaxRequestsPerMinute: 100, BurstLimit: 2, Cooldown: time.Second})
	ctx := context.Background()

	for range 2 {
		rl.Allow(ctx, service.Completion)
	}
	clock.Advance(time.Second)
	if !rl.Allow(ctx, service.Completion) {
		t.Error("Allow() in new burst window = false, want true")
	}
	if got := rl.Info(service.Completion).BurstCount; got != 1 {
		t.Errorf("BurstCount = %d, want 1", got)
	}
}

func TestAdaptiveLimiter_UnhealthyHalvesLimits(t *testing.T) {
	clock := newTestClock()
	mon := healthyMonitor()
	rl := newTestLimiter(mon, clock, Limits{MaxRequestsPerMinute: 4, BurstLimit: 10, Cooldown: 10 * time.Second})
	ctx := context.Background()

	mon.set(telemetry.Snapshot{Healthy: false})

	allowed := 0
	for range 4 {
		if rl.Allow(ctx, service.Completion) {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed = %d, want 2", allowed)
	}

	info := rl.Info(service.Completion)
	if info.CooldownPeriodMs != 20000 {
		t.Errorf("CooldownPeriodMs = %d, want 20000", info.CooldownPeriodMs)
	}
	if info.BaseMaxRequests != 4 || info.MaxRequestsPerMin != 2 {
		t.Errorf("limits = base %d effective %d, want base 4 effective 2", info.BaseMaxRequests, info.MaxRequestsPerMin)
	}

	// restored health restores the base limits on the next check
	mon.set(telemetry.Snapshot{Healthy: true})
	if got := rl.Info(service.Completion).MaxRequestsPerMin; got != 4 {
		t.Errorf("MaxRequestsPerMin after recovery = %d, want 4", got)
	}
}

func TestAdaptiveLimiter_ServicesIndependent(t *testing.T) {
	clock := newTestClock()
	rl := newTestLimiter(healthyMonitor(), clock, Limits{MaxRequestsPerMinute: 1, BurstLimit: 1, Cooldown: time.Minute})
	ctx := context.Background()

	rl.Allow(ctx, service.Completion)
	if rl.Allow(ctx, service.Completion) {
		t.Fatal("Allow(completion) = true, want false")
	}
	if !rl.Allow(ctx, service.VectorSearch) {
		t.Error("Allow(vectorSearch) = false, want true")
	}
}

func TestAdaptiveLimiter_Do(t *testing.T) {
	clock := newTestClock()
	mon := healthyMonitor()
	rl := newTestLimiter(mon, clock, Limits{MaxRequestsPerMinute: 1, BurstLimit: 1, Cooldown: time.Minute})
	ctx := context.Background()

	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	if err := rl.Do(ctx, service.Completion, op, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	err := rl.Do(ctx, service.Completion, op, nil)
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("Do() error = %v, want ErrRateLimitExceeded", err)
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("Do() error type = %T, want *RateLimitError", err)
	}
	if rle.Service != service.Completion || rle.Reason != ReasonWindow || rle.RetryAfter != time.Minute {
		t.Errorf("RateLimitError = %+v", rle)
	}

	fallbackRan := false
	err = rl.Do(ctx, service.Completion, op, func(context.Context) error {
		fallbackRan = true
		return nil
	})
	if err != nil || !fallbackRan {
		t.Errorf("Do() with fallback: err = %v, fallbackRan = %v", err, fallbackRan)
	}
	if calls != 1 {
		t.Errorf("op calls = %d, want 1", calls)
	}
}

func TestAdaptiveLimiter_DoPropagatesOperationError(t *testing.T) {
	rl := NewAdaptiveLimiter(nil, AdaptiveLimiterConfig{})
	opErr := errors.New("upstream")

	err := rl.Do(context.Background(), service.Documentation, func(context.Context) error {
		return opErr
	}, nil)
	if err != opErr {
		t.Errorf("Do() error = %v, want %v", err, opErr)
	}
}

func TestAdaptiveLimiter_InfoIsReadOnly(t *testing.T) {
	clock := newTestClock()
	rl := newTestLimiter(healthyMonitor(), clock, Limits{MaxRequestsPerMinute: 5, BurstLimit: 5, Cooldown: time.Second})

	rl.Allow(context.Background(), service.Completion)
	clock.Advance(90 * time.Second)

	info := rl.Info(service.Completion)
	if info.WindowRequests != 1 {
		t.Errorf("WindowRequests = %d, want 1", info.WindowRequests)
	}
	if info.WindowRemainingMs != 0 {
		t.Errorf("WindowRemainingMs = %d, want 0", info.WindowRemainingMs)
	}
	if again := rl.Info(service.Completion); again != info {
		t.Errorf("second Info() = %+v, want %+v", again, info)
	}
}

func TestAdaptiveLimiter_Reset(t *testing.T) {
	clock := newTestClock()
	rl := newTestLimiter(healthyMonitor(), clock, Limits{MaxRequestsPerMinute: 1, BurstLimit: 1, Cooldown: time.Hour})
	ctx := context.Background()

	rl.Allow(ctx, service.Completion)
	rl.Allow(ctx, service.Completion)
	rl.Reset()

	if info := rl.Info(service.Completion); info.Throttled || info.WindowRequests != 0 {
		t.Errorf("Info() after Reset = %+v", info)
	}
	if !rl.Allow(ctx, service.Completion) {
		t.Error("Allow() after Reset = false, want true")
	}
}

func TestAdaptiveLimiter_WithRegistry(t *testing.T) {
	clock := newTestClock()
	reg := telemetry.NewRegistry(telemetry.DefaultConfig(), telemetry.WithClock(clock.Now))
	rl := NewAdaptiveLimiter(reg, AdaptiveLimiterConfig{}, WithLimiterClock(clock.Now))
	ctx := context.Background()

	reg.RecordCall(ctx, service.Completion, clock.Now(), errors.New("down"))

	if got := rl.Info(service.Completion).MaxRequestsPerMin; got != 30 {
		t.Errorf("MaxRequestsPerMin = %d, want 30", got)
	}

	for range 6 {
		rl.Allow(ctx, service.Completion)
	}
	events := reg.Health(service.Completion).RecentEvents
	if len(events) == 0 || events[len(events)-1].Kind != telemetry.KindWarning {
		t.Errorf("RecentEvents = %+v, want trailing warning", events)
	}
}

func TestAdaptiveLimiter_Concurrent(t *testing.T) {
	rl := NewAdaptiveLimiter(nil, AdaptiveLimiterConfig{
		Limits: map[service.ID]Limits{service.Completion: {MaxRequestsPerMinute: 50, BurstLimit: 1000, Cooldown: time.Minute}},
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow(context.Background(), service.Completion) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}
