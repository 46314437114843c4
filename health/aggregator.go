package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultTimeout = 5 * time.Second

// Aggregator runs a named set of checkers.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ordering: Names returns registration order.
type Aggregator struct {
	timeout time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	names    []string
	checkers map[string]Checker
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithTimeout bounds each run. Default: 5 seconds.
func WithTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithClock sets the time source used for timestamps and durations.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an empty aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		timeout:  defaultTimeout,
		now:      time.Now,
		checkers: make(map[string]Checker),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds checker under name. Re-registering a name replaces the
// checker in place.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.checkers[name]; !ok {
		a.names = append(a.names, name)
	}
	a.checkers[name] = checker
}

// Names returns the registered names.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.names)
}

// Check runs the checker registered under name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.run(ctx, checker), nil
}

// CheckAll runs every checker concurrently.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	names := slices.Clone(a.names)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = a.checkers[name]
	}
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out := make([]Result, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			out[i] = a.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]Result, len(names))
	for i, name := range names {
		results[name] = out[i]
	}
	return results
}

func (a *Aggregator) run(ctx context.Context, checker Checker) Result {
	start := a.now()
	done := make(chan Result, 1)
	go func() {
		done <- checker.Check(ctx)
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Unhealthy("check timed out", ErrCheckTimeout)
	}
	res.Duration = a.now().Sub(start)
	if res.Timestamp.IsZero() {
		res.Timestamp = start
	}
	return res
}
