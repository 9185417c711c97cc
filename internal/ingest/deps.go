package ingest

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/landrag/internal/embeddings"
	"github.com/fyrsmithlabs/landrag/internal/logging"
	"github.com/fyrsmithlabs/landrag/internal/telemetry"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Deps are the shared collaborators of every pipeline. They are built once
// per process and passed in.
type Deps struct {
	Store    vectorstore.Store
	Embedder embeddings.Provider
	Logger   *logging.Logger
	// Metrics may be nil.
	Metrics *Metrics
	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

func (d Deps) logger() *logging.Logger {
	if d.Logger == nil {
		return logging.NewNop()
	}
	return d.Logger
}

func (d Deps) tracer() trace.Tracer {
	if d.Tracer == nil {
		return otel.Tracer(telemetry.ScopeIngest)
	}
	return d.Tracer
}

// track opens a span for one pipeline operation and tags ctx with the
// collection for logging. The returned func closes the span and records the
// outcome in Metrics.
func (d Deps) track(ctx context.Context, pipeline, operation, collection string) (context.Context, func(status, message string)) {
	start := time.Now()
	ctx = logging.WithCollection(ctx, collection)
	ctx, span := d.tracer().Start(ctx, "ingest."+pipeline+"."+operation,
		trace.WithAttributes(attribute.String("landrag.collection", collection)))

	return ctx, func(status, message string) {
		span.SetAttributes(attribute.String("landrag.status", status))
		if status != StatusSuccess {
			span.SetStatus(codes.Error, message)
		}
		span.End()
		d.Metrics.observe(pipeline, operation, status, time.Since(start).Seconds())
	}
}

// wrote counts points written by one operation.
func (d Deps) wrote(ctx context.Context, pipeline string, n int) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("landrag.points", n))
	d.Metrics.wrote(pipeline, n)
}
