package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry keeps spans and metrics in memory.
type TestTelemetry struct {
	*Telemetry

	Recorder *tracetest.SpanRecorder
	Reader   *sdkmetric.ManualReader
}

// NewTestTelemetry returns telemetry whose Tracer and Meter record locally
// instead of exporting. Nothing is installed globally.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	rec := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	return &TestTelemetry{
		Telemetry: &Telemetry{
			cfg:     cfg,
			tracers: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)),
			meters:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		},
		Recorder: rec,
		Reader:   reader,
	}
}

// Span returns the last ended span called name, or nil.
func (t *TestTelemetry) Span(name string) sdktrace.ReadOnlySpan {
	ended := t.Recorder.Ended()
	for i := len(ended) - 1; i >= 0; i-- {
		if ended[i].Name() == name {
			return ended[i]
		}
	}
	return nil
}

// AssertSpan fails tb unless a span called name ended carrying every attr.
func (t *TestTelemetry) AssertSpan(tb testing.TB, name string, attrs ...attribute.KeyValue) {
	tb.Helper()
	span := t.Span(name)
	if span == nil {
		names := make([]string, 0, len(t.Recorder.Ended()))
		for _, s := range t.Recorder.Ended() {
			names = append(names, s.Name())
		}
		tb.Fatalf("span %q not recorded; have %v", name, names)
	}
	have := make(map[attribute.Key]attribute.Value, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		have[kv.Key] = kv.Value
	}
	for _, want := range attrs {
		got, ok := have[want.Key]
		if !ok {
			tb.Errorf("span %q has no attribute %q", name, want.Key)
			continue
		}
		if got != want.Value {
			tb.Errorf("span %q attribute %q = %v, want %v", name, want.Key, got.Emit(), want.Value.Emit())
		}
	}
}

// Counter collects now and returns the sum of the int64 counter called name
// across all attribute sets.
func (t *TestTelemetry) Counter(ctx context.Context, name string) (int64, error) {
	var rm metricdata.ResourceMetrics
	if err := t.Reader.Collect(ctx, &rm); err != nil {
		return 0, err
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != name || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total, nil
}
