package http

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// routeMetrics are the OTEL instruments recorded per request. Upload sizes
// are recorded only for requests that carry a body.
type routeMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	response metric.Int64Histogram
	upload   metric.Int64Histogram
	active   metric.Int64UpDownCounter
}

// newRouteMetrics creates the instruments on meter and, when jobs is set,
// an observable gauge of admitted ingestion and chat jobs.
func newRouteMetrics(meter metric.Meter, jobs *jobLimiter) (*routeMetrics, error) {
	var (
		m    routeMetrics
		errs = make([]error, 6)
	)
	m.requests, errs[0] = meter.Int64Counter("landrag.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status code"),
		metric.WithUnit("{request}"))
	m.latency, errs[1] = meter.Float64Histogram("landrag.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration by method, route and status code"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120, 300))
	m.response, errs[2] = meter.Int64Histogram("landrag.http.response_size_bytes",
		metric.WithDescription("HTTP response body size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 1e3, 1e4, 1e5, 1e6))
	m.upload, errs[3] = meter.Int64Histogram("landrag.http.upload_size_bytes",
		metric.WithDescription("Size of uploaded GeoJSON and PDF request bodies"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1e4, 1e5, 1e6, 1e7, 5e7))
	m.active, errs[4] = meter.Int64UpDownCounter("landrag.http.active_requests",
		metric.WithDescription("Requests currently being served"),
		metric.WithUnit("{request}"))
	if jobs != nil {
		_, errs[5] = meter.Int64ObservableGauge("landrag.http.jobs_in_flight",
			metric.WithDescription("Admitted ingestion and chat jobs"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(jobs.inFlight()))
				return nil
			}))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

// middleware records every request. Handler errors are rendered here so
// the recorded status is the one the client sees.
func (m *routeMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()
			start := time.Now()
			m.active.Add(ctx, 1)
			defer m.active.Add(ctx, -1)

			if err := next(c); err != nil {
				c.Error(err)
			}

			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("endpoint", routeLabel(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			m.requests.Add(ctx, 1, attrs)
			m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
			m.response.Record(ctx, c.Response().Size, attrs)
			if req.ContentLength > 0 {
				m.upload.Record(ctx, req.ContentLength, attrs)
			}
			return nil
		}
	}
}

// routeLabel maps the matched route to a metric label. Unmatched requests
// share one label so scanners cannot grow the series count.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
