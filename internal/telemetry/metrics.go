package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/skydeck/skydeck/internal/telemetry"

// Alert outcomes recorded by RecordAlert.
const (
	AlertIssued     = "issued"
	AlertSuppressed = "suppressed"
	AlertNone       = "none"
	AlertFailed     = "failed"
)

// EngineMetrics holds the instruments for caches, upstream calls and alerts.
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	upstreamTotal    metric.Int64Counter
	upstreamDuration metric.Float64Histogram
	alerts           metric.Int64Counter
}

// NewEngineMetrics creates the engine instruments on the global meter provider.
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter(meterName)

	cacheHits, err := meter.Int64Counter(
		"engine.cache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"engine.cache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	upstreamTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of weather provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	upstreamDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of weather provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	alerts, err := meter.Int64Counter(
		"precipitation.alert.total",
		metric.WithDescription("Precipitation checks by outcome"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		upstreamTotal:    upstreamTotal,
		upstreamDuration: upstreamDuration,
		alerts:           alerts,
	}, nil
}

// RecordCacheHit records a hit on the named cache.
func (m *EngineMetrics) RecordCacheHit(ctx context.Context, cacheName string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.name", cacheName)))
}

// RecordCacheMiss records a miss on the named cache.
func (m *EngineMetrics) RecordCacheMiss(ctx context.Context, cacheName string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.name", cacheName)))
}

// RecordUpstream records one provider request.
func (m *EngineMetrics) RecordUpstream(ctx context.Context, provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Detached from the request so a cancelled caller still gets counted.
	ctx = context.WithoutCancel(ctx)
	m.upstreamDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.upstreamTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAlert records the outcome of one precipitation check.
func (m *EngineMetrics) RecordAlert(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
