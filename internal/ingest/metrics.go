package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline label values.
const (
	PipelineGeo         = "geo"
	PipelineDocument    = "document"
	PipelineCollections = "collections"
)

// Skip reasons.
const (
	ReasonMissingGeometry = "missing_geometry"
	ReasonGeometry        = "geometry"
	ReasonEmbedding       = "embedding"
	ReasonDimension       = "dimension"
)

// Metrics holds the Prometheus instruments for ingestion.
type Metrics struct {
	requests *prometheus.CounterVec
	points   *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers ingestion metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "landrag",
				Subsystem: "ingest",
				Name:      "requests_total",
				Help:      "Ingestion and collection operations by pipeline, operation and status",
			},
			[]string{"pipeline", "operation", "status"},
		),
		points: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "landrag",
				Subsystem: "ingest",
				Name:      "points_total",
				Help:      "Points written to the vector store",
			},
			[]string{"pipeline"},
		),
		skipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "landrag",
				Subsystem: "ingest",
				Name:      "skipped_total",
				Help:      "Features or chunks skipped during ingestion, by reason",
			},
			[]string{"pipeline", "reason"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "landrag",
				Subsystem: "ingest",
				Name:      "duration_seconds",
				Help:      "Duration of ingestion operations in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"pipeline", "operation"},
		),
	}
}

func (m *Metrics) observe(pipeline, operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(pipeline, operation, status).Inc()
	m.duration.WithLabelValues(pipeline, operation).Observe(seconds)
}

func (m *Metrics) wrote(pipeline string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.points.WithLabelValues(pipeline).Add(float64(n))
}

func (m *Metrics) skip(pipeline, reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(pipeline, reason).Inc()
}
