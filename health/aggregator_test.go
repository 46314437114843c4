package health

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func static(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestWorst(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Worst(tt.results); got != tt.want {
				t.Errorf("Worst() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_RegisterKeepsOrder(t *testing.T) {
	a := NewAggregator()
	a.Register("completion", static("completion", Healthy("")))
	a.Register("vectorSearch", static("vectorSearch", Healthy("")))
	a.Register("completion", static("completion", Degraded("")))

	if got, want := a.Names(), []string{"completion", "vectorSearch"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	res, err := a.Check(context.Background(), "completion")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Status != StatusDegraded {
		t.Errorf("Check() status = %v, want replaced checker's degraded", res.Status)
	}
}

func TestAggregator_CheckNotFound(t *testing.T) {
	if _, err := NewAggregator().Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check() error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	a := NewAggregator()
	a.Register("ok", static("ok", Healthy("fine")))
	a.Register("slow", static("slow", Degraded("latency")))
	a.Register("down", static("down", Unhealthy("refused", ErrCheckFailed)))

	results := a.CheckAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results["down"].Status != StatusUnhealthy || !errors.Is(results["down"].Error, ErrCheckFailed) {
		t.Errorf("results[down] = %+v", results["down"])
	}
	if got := Worst(results); got != StatusUnhealthy {
		t.Errorf("Worst() = %v, want unhealthy", got)
	}
}

func TestAggregator_CheckAllEmpty(t *testing.T) {
	if got := NewAggregator().CheckAll(context.Background()); len(got) != 0 {
		t.Errorf("CheckAll() = %v, want empty", got)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	a := NewAggregator(WithTimeout(20 * time.Millisecond))
	a.Register("stuck", NewCheckerFunc("stuck", func(ctx context.Context) Result {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return Healthy("too late")
	}))

	res := a.CheckAll(context.Background())["stuck"]
	if res.Status != StatusUnhealthy || !errors.Is(res.Error, ErrCheckTimeout) {
		t.Errorf("result = %+v, want timeout", res)
	}
}

func TestAggregator_ClockStampsResults(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	calls := 0
	now := func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 10 * time.Millisecond)
	}

	a := NewAggregator(WithClock(now))
	a.Register("x", static("x", Healthy("")))
	a.Register("stamped", static("stamped", Result{Status: StatusHealthy, Timestamp: base.Add(time.Hour)}))

	res, _ := a.Check(context.Background(), "x")
	if !res.Timestamp.Equal(base) {
		t.Errorf("Timestamp = %v, want %v", res.Timestamp, base)
	}
	if res.Duration != 10*time.Millisecond {
		t.Errorf("Duration = %v, want 10ms", res.Duration)
	}

	res, _ = a.Check(context.Background(), "stamped")
	if !res.Timestamp.Equal(base.Add(time.Hour)) {
		t.Errorf("checker timestamp overwritten: %v", res.Timestamp)
	}
}

func TestStatus_String(t *testing.T) {
	for s, want := range map[Status]string{
		StatusHealthy:   "healthy",
		StatusDegraded:  "degraded",
		StatusUnhealthy: "unhealthy",
		Status(9):       "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestResult_WithDetails(t *testing.T) {
	r := Healthy("ok").WithDetails(map[string]any{"calls": 3})
	if r.Details["calls"] != 3 || r.Message != "ok" {
		t.Errorf("WithDetails() = %+v", r)
	}
}

func TestNewCheckerFunc(t *testing.T) {
	var gotCtx context.Context
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	c := NewCheckerFunc("fn", func(ctx context.Context) Result {
		gotCtx = ctx
		return Degraded("slow")
	})
	if c.Name() != "fn" {
		t.Errorf("Name() = %q, want fn", c.Name())
	}
	if res := c.Check(ctx); res.Status != StatusDegraded {
		t.Errorf("Check() = %v, want degraded", res.Status)
	}
	if gotCtx.Value(key{}) != "v" {
		t.Error("Check() did not pass the context through")
	}
}
