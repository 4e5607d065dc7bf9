package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func metricNames(rm metricdata.ResourceMetrics) map[string]bool {
	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestMetrics_RecordCycleAndSpeak(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCycle(ctx, "spoken")
	m.RecordSpeak(ctx, "say", 120*time.Millisecond, nil)
	m.RecordSpeak(ctx, "elevenlabs", time.Second, errors.New("boom"))
	m.RecordFallback(ctx, "elevenlabs")

	names := metricNames(collect(t, reader))
	for _, want := range []string{
		"outloud.dispatch.cycles",
		"outloud.speak.requests",
		"outloud.fallbacks",
		"outloud.speak.duration",
	} {
		if !names[want] {
			t.Errorf("metric %s not recorded", want)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	ctx := context.Background()
	// Recording on a nil Metrics must not panic: dispatch runs with metrics
	// disabled by default.
	m.RecordCycle(ctx, "spoken")
	m.RecordSpeak(ctx, "say", 0, nil)
	m.RecordFallback(ctx, "say")
}
