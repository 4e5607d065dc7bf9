// Package observe provides observability primitives for outloud:
// OpenTelemetry metrics with an optional Prometheus scrape endpoint.
//
// The hook process is short-lived, so metrics are off unless the
// configuration sets a listener address; operators who want visibility into
// fallback rates and dedup behaviour enable it explicitly. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all outloud metrics.
const meterName = "github.com/outloud-dev/outloud"

// Metrics holds all OpenTelemetry metric instruments for the dispatcher.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// DispatchCycles counts dispatch cycles by outcome. Use with attribute:
	//   attribute.String("outcome", ...) — "spoken", "deduped", "deferred",
	//   "disabled", "empty", "failed".
	DispatchCycles metric.Int64Counter

	// SpeakRequests counts provider speak attempts. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	SpeakRequests metric.Int64Counter

	// Fallbacks counts failovers to the baseline provider. Use with
	// attribute: attribute.String("from", ...).
	Fallbacks metric.Int64Counter

	// SpeakDuration tracks synthesis-plus-playback latency in seconds.
	SpeakDuration metric.Float64Histogram
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.DispatchCycles, err = meter.Int64Counter("outloud.dispatch.cycles",
		metric.WithDescription("Dispatch cycles by outcome")); err != nil {
		return nil, err
	}
	if m.SpeakRequests, err = meter.Int64Counter("outloud.speak.requests",
		metric.WithDescription("Provider speak attempts")); err != nil {
		return nil, err
	}
	if m.Fallbacks, err = meter.Int64Counter("outloud.fallbacks",
		metric.WithDescription("Failovers to the baseline provider")); err != nil {
		return nil, err
	}
	if m.SpeakDuration, err = meter.Float64Histogram("outloud.speak.duration",
		metric.WithDescription("Synthesis and playback latency"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics built on the global
// meter provider. Instruments on a no-op provider record nothing, so this
// is safe to call whether or not InitProvider ran.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordCycle records a finished dispatch cycle with its outcome.
func (m *Metrics) RecordCycle(ctx context.Context, outcome string) {
	if m == nil || m.DispatchCycles == nil {
		return
	}
	m.DispatchCycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSpeak records one provider speak attempt and its latency.
func (m *Metrics) RecordSpeak(ctx context.Context, provider string, d time.Duration, err error) {
	if m == nil || m.SpeakRequests == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SpeakRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
	if m.SpeakDuration != nil {
		m.SpeakDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
			attribute.String("provider", provider),
		))
	}
}

// RecordFallback records a failover from the named provider to baseline.
func (m *Metrics) RecordFallback(ctx context.Context, from string) {
	if m == nil || m.Fallbacks == nil {
		return
	}
	m.Fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("from", from)))
}
