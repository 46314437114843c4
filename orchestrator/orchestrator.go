// Package orchestrator wires depguard's components into one explicitly
// constructed context.
//
// An Orchestrator owns a telemetry registry, an adaptive limiter, a result
// cache, a lifecycle manager and a fallback executor. Nothing is global:
// two orchestrators built from the same configuration share no state.
//
// # Usage
//
//	o, err := orchestrator.New(cfg, orchestrator.WithInstruments(inst))
//	if err != nil {
//		return err
//	}
//	if err := o.Init(ctx); err != nil {
//		return err
//	}
//	defer o.Shutdown(ctx)
//
//	out, err := o.Annotate(ctx, fallback.Request{Source: src})
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/depguard/auth"
	"github.com/jonwraymond/depguard/cache"
	"github.com/jonwraymond/depguard/config"
	"github.com/jonwraymond/depguard/fallback"
	"github.com/jonwraymond/depguard/health"
	"github.com/jonwraymond/depguard/httpdep"
	"github.com/jonwraymond/depguard/lifecycle"
	"github.com/jonwraymond/depguard/observe"
	"github.com/jonwraymond/depguard/resilience"
	"github.com/jonwraymond/depguard/service"
	"github.com/jonwraymond/depguard/telemetry"
)

// Dependency is a collaborator that can be initialized and asked for
// annotations. *httpdep.Client satisfies it.
type Dependency interface {
	lifecycle.Initializer
	fallback.Annotator
}

// ServiceStatus is everything known about one dependency.
type ServiceStatus struct {
	Service   service.ID        `json:"service"`
	Health    telemetry.Report  `json:"health"`
	RateLimit resilience.Info   `json:"rateLimit"`
	Lifecycle *lifecycle.Status `json:"lifecycle,omitempty"`
}

// Orchestrator owns every component for one process or test.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Lifecycle: Init starts background work; Shutdown stops it and resets
// all state. Shutdown is idempotent.
type Orchestrator struct {
	config *config.Config
	inst   observe.Instruments
	now    func() time.Time

	registry  *telemetry.Registry
	limiter   *resilience.AdaptiveLimiter
	results   *cache.Memory[fallback.Outcome]
	lifecycle *lifecycle.Manager
	executor  *fallback.Executor
	deps      map[service.ID]Dependency

	readiness *health.Aggregator
	detailed  *health.Aggregator
	authn     auth.Authenticator

	mu            sync.Mutex
	janitorCancel context.CancelFunc
	janitorDone   chan struct{}
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	inst observe.Instruments
	now  func() time.Time
	deps map[service.ID]Dependency
}

// WithInstruments attaches tracing, metrics and logging to every component.
func WithInstruments(inst observe.Instruments) Option {
	return func(o *options) {
		o.inst = inst.Normalize()
	}
}

// WithClock overrides the time source of every time-dependent component.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDependency uses dep for id instead of an HTTP client built from the
// configuration.
func WithDependency(id service.ID, dep Dependency) Option {
	return func(o *options) {
		o.deps[id] = dep
	}
}

// New builds an orchestrator from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		inst: observe.NopInstruments(),
		now:  time.Now,
		deps: make(map[service.ID]Dependency),
	}
	for _, opt := range opts {
		opt(&o)
	}

	registry := telemetry.NewRegistry(cfg.Telemetry,
		telemetry.WithClock(o.now),
		telemetry.WithInstruments(o.inst),
	)
	limiter := resilience.NewAdaptiveLimiter(registry,
		resilience.AdaptiveLimiterConfig{Limits: cfg.ServiceLimits()},
		resilience.WithLimiterClock(o.now),
		resilience.WithLimiterInstruments(o.inst),
	)
	results := cache.NewMemory[fallback.Outcome](cfg.Cache, cache.WithClock(o.now))
	manager := lifecycle.NewManager(registry, cfg.Lifecycle,
		lifecycle.WithLimiter(limiter),
		lifecycle.WithLogger(o.inst.Logger),
	)

	deps, err := buildDependencies(cfg, o)
	if err != nil {
		return nil, err
	}
	for _, id := range service.All() {
		if dep, ok := deps[id]; ok {
			manager.Register(id, dep)
		}
	}

	tiers, err := buildTiers(cfg, deps)
	if err != nil {
		return nil, err
	}
	execOpts := []fallback.Option{
		fallback.WithAvailability(manager),
		fallback.WithInstruments(o.inst),
	}
	if cfg.Chain.CacheResults {
		execOpts = append(execOpts, fallback.WithCache(results, nil))
	}
	executor, err := fallback.NewExecutor(registry, limiter, tiers, execOpts...)
	if err != nil {
		return nil, err
	}

	authn, err := auth.New(cfg.Server.Auth)
	if err != nil {
		return nil, err
	}

	readiness := health.NewAggregator(health.WithClock(o.now))
	readiness.Register("lifecycle", manager.Checker())
	detailed := health.NewAggregator(health.WithClock(o.now))
	for _, id := range service.All() {
		detailed.Register(id.String(), registry.Checker(id))
	}

	return &Orchestrator{
		config:    cfg,
		inst:      o.inst,
		now:       o.now,
		registry:  registry,
		limiter:   limiter,
		results:   results,
		lifecycle: manager,
		executor:  executor,
		deps:      deps,
		readiness: readiness,
		detailed:  detailed,
		authn:     authn,
	}, nil
}

func buildDependencies(cfg *config.Config, o options) (map[service.ID]Dependency, error) {
	deps := make(map[service.ID]Dependency)
	for id, depCfg := range cfg.ServiceDependencies() {
		client, err := httpdep.New(id, depCfg, httpdep.WithLogger(o.inst.Logger))
		if err != nil {
			return nil, fmt.Errorf("orchestrator: dependency %s: %w", id, err)
		}
		deps[id] = client
	}
	for id, dep := range o.deps {
		deps[id] = dep
	}
	return deps, nil
}

func buildTiers(cfg *config.Config, deps map[service.ID]Dependency) ([]fallback.Tier, error) {
	var tiers []fallback.Tier

	add := func(kind fallback.TierKind, name string) {
		if name == "" {
			return
		}
		id, err := service.Parse(name)
		if err != nil {
			return
		}
		if dep, ok := deps[id]; ok {
			tiers = append(tiers, fallback.Tier{
				Kind:      kind,
				Service:   id,
				Annotator: dep,
				Timeout:   cfg.Chain.TierTimeout,
			})
		}
	}
	add(fallback.TierPrimary, cfg.Chain.Primary)
	add(fallback.TierSecondary, cfg.Chain.Secondary)

	table, err := fallback.NewPatternTable(cfg.Patterns())
	if err != nil {
		return nil, err
	}
	tiers = append(tiers, fallback.Tier{Kind: fallback.TierStatic, Annotator: table})
	return tiers, nil
}

// Init initializes every dependency and starts the background sweeps. On
// failure the returned error matches lifecycle.ErrInitialization.
func (o *Orchestrator) Init(ctx context.Context) error {
	if err := o.lifecycle.Initialize(ctx); err != nil {
		o.inst.Logger.Error(ctx, "initialization failed", observe.F("error", err.Error()))
		return err
	}
	o.startJanitor(ctx)
	o.inst.Logger.Info(ctx, "depguard initialized", observe.F("services", len(o.deps)))
	return nil
}

func (o *Orchestrator) startJanitor(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.janitorCancel != nil {
		return
	}

	jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	o.janitorCancel, o.janitorDone = cancel, done

	go func() {
		defer close(done)
		o.results.Run(jctx)
	}()
}

func (o *Orchestrator) stopJanitor() {
	o.mu.Lock()
	cancel, done := o.janitorCancel, o.janitorDone
	o.janitorCancel, o.janitorDone = nil, nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Shutdown stops background work and clears telemetry, limiter, cache and
// lifecycle state.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	err := o.lifecycle.Shutdown(ctx)
	o.stopJanitor()
	o.registry.Reset()
	o.limiter.Reset()
	o.results.Clear()
	return err
}

// Annotate runs req through the fallback chain.
func (o *Orchestrator) Annotate(ctx context.Context, req fallback.Request) (fallback.Outcome, error) {
	return o.executor.Execute(ctx, req)
}

// IsInitialized reports whether every dependency is ready.
func (o *Orchestrator) IsInitialized() bool {
	return o.lifecycle.IsInitialized()
}

// Health returns the telemetry health report for id.
func (o *Orchestrator) Health(id service.ID) telemetry.Report {
	return o.registry.Health(id)
}

// RateLimitInfo returns the limiter state for id.
func (o *Orchestrator) RateLimitInfo(id service.ID) resilience.Info {
	return o.limiter.Info(id)
}

// Status returns health, limiter and lifecycle state for id.
func (o *Orchestrator) Status(id service.ID) ServiceStatus {
	st := ServiceStatus{
		Service:   id,
		Health:    o.registry.Health(id),
		RateLimit: o.limiter.Info(id),
	}
	if ls, err := o.lifecycle.Status(id); err == nil {
		st.Lifecycle = &ls
	}
	return st
}

// Config returns the configuration the orchestrator was built from.
func (o *Orchestrator) Config() *config.Config { return o.config }

// Registry returns the telemetry registry.
func (o *Orchestrator) Registry() *telemetry.Registry { return o.registry }

// Limiter returns the adaptive limiter.
func (o *Orchestrator) Limiter() *resilience.AdaptiveLimiter { return o.limiter }

// Lifecycle returns the lifecycle manager.
func (o *Orchestrator) Lifecycle() *lifecycle.Manager { return o.lifecycle }

// Cache returns the result cache.
func (o *Orchestrator) Cache() *cache.Memory[fallback.Outcome] { return o.results }

// Executor returns the fallback executor.
func (o *Orchestrator) Executor() *fallback.Executor { return o.executor }
