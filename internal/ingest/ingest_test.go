package ingest

import (
	"strconv"
	"testing"

	"github.com/fyrsmithlabs/landrag/internal/embeddings/embeddingstest"
	"github.com/fyrsmithlabs/landrag/internal/logging"
	"github.com/fyrsmithlabs/landrag/internal/telemetry"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore/vectorstoretest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testDim = 8

type harness struct {
	store    *vectorstoretest.Recorder
	embedder *embeddingstest.Fake
	logs     *logging.TestLogger
	reg      *prometheus.Registry
	tel      *telemetry.TestTelemetry
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Dimension: testDim}, nil)
	require.NoError(t, err)

	h := &harness{
		store:    vectorstoretest.NewRecorder(backend),
		embedder: embeddingstest.New(testDim),
		logs:     logging.NewTestLogger(),
		reg:      prometheus.NewRegistry(),
		tel:      telemetry.NewTestTelemetry(),
	}
	h.deps = Deps{
		Store:    h.store,
		Embedder: h.embedder,
		Logger:   h.logs.Logger,
		Metrics:  NewMetrics(h.reg),
		Tracer:   h.tel.Tracer(telemetry.ScopeIngest),
	}
	return h
}

const squareGeometry = `{"type":"Polygon","coordinates":[[[27.5,53.9],[27.6,53.9],[27.6,54.0],[27.5,54.0],[27.5,53.9]]]}`

// bowtieGeometry crosses itself at the square's center.
const bowtieGeometry = `{"type":"Polygon","coordinates":[[[27.5,53.9],[27.6,54.0],[27.6,53.9],[27.5,54.0],[27.5,53.9]]]}`

// degenerateGeometry is a two-position ring that survives no repair.
const degenerateGeometry = `{"type":"Polygon","coordinates":[[[27.5,53.9],[27.6,54.0]]]}`

func feature(id int, props, geometry string) string {
	if props != "" {
		props = "," + props
	}
	return `{"type":"Feature","properties":{"id":` + strconv.Itoa(id) + `,"square":0.25` + props + `},"geometry":` + geometry + `}`
}

func collection(features ...string) []byte {
	body := `{"type":"FeatureCollection","name":"plots","features":[`
	for i, f := range features {
		if i > 0 {
			body += ","
		}
		body += f
	}
	return []byte(body + "]}")
}
