package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/landrag/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newMetricsEcho(t *testing.T, tel *telemetry.TestTelemetry, jobs *jobLimiter) *echo.Echo {
	t.Helper()
	m, err := newRouteMetrics(tel.Meter(telemetry.ScopeHTTP), jobs)
	require.NoError(t, err)

	e := echo.New()
	e.Use(m.middleware())
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/add_plots", func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]string{"status": "success"}) })
	e.POST("/chat", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	})
	return e
}

func collect(t *testing.T, tel *telemetry.TestTelemetry) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tel.Reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestRouteMetrics_RecordsRequests(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	e := newMetricsEcho(t, tel, nil)

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/add_plots", strings.NewReader(`{"type":"FeatureCollection"}`)))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	data := collect(t, tel)

	requests, ok := data["landrag.http.requests_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	endpoints := map[string]bool{}
	for _, dp := range requests.DataPoints {
		total += dp.Value
		v, _ := dp.Attributes.Value("endpoint")
		endpoints[v.AsString()] = true
	}
	assert.Equal(t, int64(3), total)
	assert.True(t, endpoints["unmatched"])
	assert.True(t, endpoints["/add_plots"])

	latency, ok := data["landrag.http.request_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range latency.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)

	upload, ok := data["landrag.http.upload_size_bytes"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, upload.DataPoints, 1, "only the request with a body is recorded")
	assert.Equal(t, int64(len(`{"type":"FeatureCollection"}`)), upload.DataPoints[0].Sum)
}

func TestRouteMetrics_RecordsErrorStatus(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	e := newMetricsEcho(t, tel, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	requests := collect(t, tel)["landrag.http.requests_total"].(metricdata.Sum[int64])
	require.Len(t, requests.DataPoints, 1)
	assert.True(t, requests.DataPoints[0].Attributes.HasValue("status"))
	status, _ := requests.DataPoints[0].Attributes.Value(attribute.Key("status"))
	assert.Equal(t, int64(http.StatusBadRequest), status.AsInt64())
}

func TestRouteMetrics_JobsInFlight(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	jobs := newJobLimiter(2)
	newMetricsEcho(t, tel, jobs)

	release, err := jobs.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	gauge, ok := collect(t, tel)["landrag.http.jobs_in_flight"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1), gauge.DataPoints[0].Value)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/select_by_id", routeLabel("/select_by_id"))
}
