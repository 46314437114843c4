package fallback

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jonwraymond/depguard/cache"
	"github.com/jonwraymond/depguard/observe"
	"github.com/jonwraymond/depguard/resilience"
	"github.com/jonwraymond/depguard/service"
)

// cacheScope namespaces executor entries in a shared cache.
const cacheScope = "annotate"

// Limiter admits dependency calls. *resilience.AdaptiveLimiter satisfies it.
type Limiter interface {
	Do(ctx context.Context, id service.ID, op, fallback func(context.Context) error) error
}

// Telemetry records dependency calls. *telemetry.Registry satisfies it.
type Telemetry interface {
	WithTelemetry(ctx context.Context, id service.ID, op func(context.Context) error) error
}

// Availability reports whether a dependency is worth calling.
// *lifecycle.Manager satisfies it.
type Availability interface {
	Available(id service.ID) bool
}

// Outcome is the result of a chain execution.
type Outcome struct {
	// Annotations belongs to the caller. Outcomes served through the cache
	// are copies, so changing them never alters a cached entry.
	Annotations []Annotation `json:"annotations"`

	// Tier is the tier that produced the annotations.
	Tier TierKind `json:"tier"`

	// Cached reports whether the outcome came from the cache.
	Cached bool `json:"cached"`
}

// Executor runs requests through the configured tiers.
//
// Contract:
// - Concurrency: safe for concurrent use once built.
// - Errors: returns an error only when every tier fails. The error matches
// ErrAllTiersFailed and joins one *TierError per tier.
type Executor struct {
	tiers   []Tier
	tel     Telemetry
	limiter Limiter
	avail   Availability
	loader  *cache.Loader[Outcome]
	inst    observe.Instruments
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache caches primary and secondary outcomes in c. A nil keyer uses
// cache.DefaultKeyer.
func WithCache(c cache.Cache[Outcome], keyer cache.Keyer) Option {
	return func(x *Executor) {
		if c != nil {
			x.loader = cache.NewLoader(c, keyer)
		}
	}
}

// WithAvailability skips tiers whose dependency a is not available.
func WithAvailability(a Availability) Option {
	return func(x *Executor) {
		x.avail = a
	}
}

// WithInstruments attaches metrics and logging.
func WithInstruments(inst observe.Instruments) Option {
	return func(x *Executor) {
		x.inst = inst.Normalize()
	}
}

// NewExecutor builds an executor over tiers. Tiers may be given in any
// order; they always run primary, secondary, then static. A nil limiter
// admits every call.
func NewExecutor(tel Telemetry, limiter Limiter, tiers []Tier, opts ...Option) (*Executor, error) {
	if len(tiers) == 0 {
		return nil, ErrNoTiers
	}
	if tel == nil && slices.ContainsFunc(tiers, Tier.dependent) {
		return nil, errors.New("fallback: telemetry is required for dependency tiers")
	}

	sorted := slices.Clone(tiers)
	slices.SortFunc(sorted, func(a, b Tier) int { return int(a.Kind) - int(b.Kind) })
	for i, t := range sorted {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if i > 0 && sorted[i-1].Kind == t.Kind {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTier, t.Kind)
		}
	}

	x := &Executor{
		tiers:   sorted,
		tel:     tel,
		limiter: limiter,
		inst:    observe.NopInstruments(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Tiers returns the configured tiers in execution order.
func (x *Executor) Tiers() []Tier {
	return slices.Clone(x.tiers)
}

// Execute annotates req with the first tier that succeeds.
func (x *Executor) Execute(ctx context.Context, req Request) (Outcome, error) {
	if x.loader == nil {
		return x.run(ctx, req)
	}

	out, hit, err := x.loader.Load(ctx, cacheScope, req, func(ctx context.Context) (Outcome, bool, error) {
		out, err := x.run(ctx, req)
		return out, err == nil && out.Tier != TierStatic, err
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Annotations = cloneAnnotations(out.Annotations)
	if hit {
		out.Cached = true
		x.inst.Logger.Debug(ctx, "fallback served from cache", observe.F("tier", out.Tier.String()))
	}
	return out, nil
}

// Invalidate drops any cached outcome for req.
func (x *Executor) Invalidate(req Request) error {
	if x.loader == nil {
		return nil
	}
	return x.loader.Invalidate(cacheScope, req)
}

func (x *Executor) run(ctx context.Context, req Request) (Outcome, error) {
	errs := make([]error, 0, len(x.tiers)+1)
	errs = append(errs, ErrAllTiersFailed)

	for _, tier := range x.tiers {
		anns, err := x.call(ctx, tier, req)
		if err == nil {
			x.inst.Metrics.RecordTier(ctx, tier.Kind.String())
			return Outcome{Annotations: anns, Tier: tier.Kind}, nil
		}

		terr := &TierError{Tier: tier.Kind, Service: tier.Service, Err: err}
		fields := []observe.Field{
			observe.F("tier", tier.Kind.String()),
			observe.F("error", err.Error()),
			observe.F("rate_limited", errors.Is(err, resilience.ErrRateLimitExceeded)),
		}
		if tier.dependent() {
			fields = append(fields, observe.F("service", tier.Service.String()))
		}
		x.inst.Logger.Warn(ctx, "fallback tier failed, advancing", fields...)
		errs = append(errs, terr)
	}

	return Outcome{}, errors.Join(errs...)
}

func (x *Executor) call(ctx context.Context, tier Tier, req Request) ([]Annotation, error) {
	var anns []Annotation
	annotate := func(ctx context.Context) error {
		return resilience.CallWithTimeout(ctx, tier.Timeout, func(ctx context.Context) error {
			out, err := tier.Annotator.Annotate(ctx, req)
			if err != nil {
				return err
			}
			anns = out
			return nil
		})
	}

	var err error
	switch {
	case !tier.dependent():
		err = annotate(ctx)
	case x.avail != nil && !x.avail.Available(tier.Service):
		err = ErrUnavailable
	case x.limiter != nil:
		err = x.limiter.Do(ctx, tier.Service, x.instrument(tier.Service, annotate), nil)
	default:
		err = x.instrument(tier.Service, annotate)(ctx)
	}
	if err != nil {
		return nil, err
	}
	return anns, nil
}

func (x *Executor) instrument(id service.ID, op func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return x.tel.WithTelemetry(ctx, id, op)
	}
}
