package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scopes.
const (
	ScopeIngest = "github.com/fyrsmithlabs/landrag/internal/ingest"
	ScopeRAG    = "github.com/fyrsmithlabs/landrag/internal/rag"
	ScopeHTTP   = "github.com/fyrsmithlabs/landrag/internal/http"
)

// Telemetry owns the process-wide tracer and meter providers.
//
// An exporter that fails to start never stops the service. The failure is
// kept and reported by Err, and the affected signal falls back to the
// global no-op provider.
type Telemetry struct {
	cfg *Config

	tracers *sdktrace.TracerProvider
	meters  *sdkmetric.MeterProvider
	logs    log.LoggerProvider

	mu       sync.Mutex
	failures []error
}

// flusher is implemented by both SDK providers.
type flusher interface {
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// New builds the providers selected by cfg and installs them globally.
// With telemetry disabled nothing is installed.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	t := &Telemetry{cfg: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	res := newResource(cfg)

	if tp, err := newTracerProvider(ctx, cfg, res, o.spanExporter); err != nil {
		t.fail(fmt.Errorf("traces: %w", err))
	} else {
		t.tracers = tp
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res, o.metricExporter); err != nil {
		t.fail(fmt.Errorf("metrics: %w", err))
	} else if mp != nil {
		t.meters = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// Tracer returns a tracer for scope.
func (t *Telemetry) Tracer(scope string) trace.Tracer {
	if t == nil || t.tracers == nil {
		return otel.Tracer(scope)
	}
	return t.tracers.Tracer(scope)
}

// Meter returns a meter for scope.
func (t *Telemetry) Meter(scope string) metric.Meter {
	if t == nil || t.meters == nil {
		return otel.Meter(scope)
	}
	return t.meters.Meter(scope)
}

// LoggerProvider returns the provider for the zap bridge, or nil.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.logs
}

// Enabled reports whether export was requested.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.cfg != nil && t.cfg.Enabled
}

// Err returns the exporter start-up failures, or nil.
func (t *Telemetry) Err() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return errors.Join(t.failures...)
}

func (t *Telemetry) fail(err error) {
	t.mu.Lock()
	t.failures = append(t.failures, err)
	t.mu.Unlock()
}

func (t *Telemetry) providers() map[string]flusher {
	out := make(map[string]flusher, 2)
	if t.tracers != nil {
		out["traces"] = t.tracers
	}
	if t.meters != nil {
		out["metrics"] = t.meters
	}
	return out
}

// Flush exports everything pending.
func (t *Telemetry) Flush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	for name, p := range t.providers() {
		if err := p.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops every provider. Without a deadline on ctx it
// waits at most the configured shutdown timeout.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.cfg != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ShutdownAfter)
		defer cancel()
	}
	var errs []error
	for name, p := range t.providers() {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
