package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/depguard/service"
)

// Instrument names.
const (
	MetricCallTotal    = "depguard.call.total"
	MetricCallErrors   = "depguard.call.errors"
	MetricCallDuration = "depguard.call.duration_ms"
	MetricDenied       = "depguard.ratelimit.denied"
	MetricTierServed   = "depguard.fallback.tier"
)

// Metrics records dependency call outcomes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records one completed dependency call.
	RecordCall(ctx context.Context, id service.ID, duration time.Duration, err error)

	// RecordDenial records a rate-limit denial. Reason is "window",
	// "burst" or "cooldown".
	RecordDenial(ctx context.Context, id service.ID, reason string)

	// RecordTier records which fallback tier served a request.
	RecordTier(ctx context.Context, tier string)
}

type otelMetrics struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	deniedCount  metric.Int64Counter
	tierCount    metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		MetricCallTotal,
		metric.WithDescription("Total number of dependency calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		MetricCallErrors,
		metric.WithDescription("Total number of failed dependency calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricCallDuration,
		metric.WithDescription("Dependency call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	deniedCount, err := meter.Int64Counter(
		MetricDenied,
		metric.WithDescription("Calls denied by the adaptive rate limiter"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	tierCount, err := meter.Int64Counter(
		MetricTierServed,
		metric.WithDescription("Requests served per fallback tier"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		deniedCount:  deniedCount,
		tierCount:    tierCount,
	}, nil
}

func (m *otelMetrics) RecordCall(ctx context.Context, id service.ID, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("service", id.String()))

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

func (m *otelMetrics) RecordDenial(ctx context.Context, id service.ID, reason string) {
	m.deniedCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", id.String()),
		attribute.String("reason", reason),
	))
}

func (m *otelMetrics) RecordTier(ctx context.Context, tier string) {
	m.tierCount.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

type nopMetrics struct{}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordCall(context.Context, service.ID, time.Duration, error) {}
func (nopMetrics) RecordDenial(context.Context, service.ID, string)             {}
func (nopMetrics) RecordTier(context.Context, string)                           {}
