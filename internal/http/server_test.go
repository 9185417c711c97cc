package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fyrsmithlabs/landrag/internal/chunker"
	"github.com/fyrsmithlabs/landrag/internal/documents"
	"github.com/fyrsmithlabs/landrag/internal/documents/documentstest"
	"github.com/fyrsmithlabs/landrag/internal/embeddings/embeddingstest"
	"github.com/fyrsmithlabs/landrag/internal/ingest"
	"github.com/fyrsmithlabs/landrag/internal/logging"
	"github.com/fyrsmithlabs/landrag/internal/rag"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"
)

const plotsJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"id":30987,"square":0.25,"electricity":"True"},
 "geometry":{"type":"Polygon","coordinates":[[[27.5,53.9],[27.6,53.9],[27.6,54.0],[27.5,54.0],[27.5,53.9]]]}},
{"type":"Feature","properties":{"id":31059,"square":1.5},"geometry":null}]}`

type testServer struct {
	server *Server
	store  vectorstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Dimension: 8}, nil)
	require.NoError(t, err)

	deps := ingest.Deps{
		Store:    store,
		Embedder: embeddingstest.New(8),
		Logger:   logging.NewNop(),
		Metrics:  ingest.NewMetrics(prometheus.NewRegistry()),
	}
	splitter, err := chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
	require.NoError(t, err)
	docs, err := ingest.NewDocumentPipeline(deps, documents.PDFExtractor{}, splitter)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "landrag_test_total", Help: "test"}))

	server, err := NewServer(Services{
		Plots:       ingest.NewGeoPipeline(deps),
		Documents:   docs,
		Collections: ingest.NewCollections(deps),
		Chat:        rag.NewEngine(store, deps.Embedder, fake.NewFakeLLM([]string{"Участок 30987"}), rag.Config{}, nil),
		Health:      store,
	}, logging.NewNop(), &Config{Gatherer: reg})
	require.NoError(t, err)
	return &testServer{server: server, store: store}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.echo.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, method, target, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	t.Run("requires services", func(t *testing.T) {
		_, err := NewServer(Services{}, logging.NewNop(), nil)
		assert.Error(t, err)
	})

	t.Run("requires logger", func(t *testing.T) {
		ts := newTestServer(t)
		_, err := NewServer(ts.server.services, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		ts := newTestServer(t)
		server, err := NewServer(ts.server.services, logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8000, server.config.Port)
		assert.Equal(t, 64, server.config.MaxUploadMB)
		assert.Equal(t, 4, cap(server.jobs.slots))
	})
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

type downStore struct{}

func (downStore) Health(context.Context) error { return errors.New("qdrant unreachable") }

func TestHealth_Unavailable(t *testing.T) {
	ts := newTestServer(t)
	services := ts.server.services
	services.Health = downStore{}
	server, err := NewServer(services, logging.NewNop(), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "qdrant unreachable")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "landrag_test_total")
}

func TestPlotsRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(upload(t, http.MethodPost, "/add_plots?collection_name=plots", "plots.geojson", []byte(plotsJSON)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ingest.GeoResult](t, rec)
	assert.Equal(t, ingest.StatusSuccess, res.Status)
	assert.Equal(t, 2, res.TotalFeatures)
	assert.Equal(t, 1, res.IngestedPoints)
	assert.Equal(t, "plots", res.CollectionName)

	rec = ts.do(upload(t, http.MethodPost, "/update_plots?collection_name=plots", "plots.geojson", []byte(plotsJSON)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully upserted 1 land plots into 'plots'.", decode[ingest.GeoResult](t, rec).Message)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/select_by_value?collection_name=plots&field=electricity&value=True", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	sel := decode[ingest.SelectResult](t, rec)
	assert.Equal(t, 1, sel.Count)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/select_by_id?collection_name=plots&id=30987", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	sel = decode[ingest.SelectResult](t, rec)
	require.Len(t, sel.Points, 1)
	assert.Equal(t, vectorstore.NumID(30987), sel.Points[0].ID)

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/delete_collection?collection_name=plots", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "'plots' was successfully deleted", decode[ingest.Result](t, rec).Message)
}

func TestPlotsRoutes_DefaultCollection(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(upload(t, http.MethodPost, "/add_plots", "plots.geojson", []byte(plotsJSON)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultPlotCollection, decode[ingest.GeoResult](t, rec).CollectionName)
}

func TestPlotsRoutes_ErrorResults(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(upload(t, http.MethodPost, "/add_plots", "plots.geojson", []byte(`{"type":"FeatureCollection"`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ingest.StatusError, decode[ingest.GeoResult](t, rec).Status)

	rec = ts.do(upload(t, http.MethodPost, "/update_plots?collection_name=ghost", "plots.geojson", []byte(plotsJSON)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Collection with name 'ghost' does not exist", decode[ingest.GeoResult](t, rec).Message)
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"plots without file", httptest.NewRequest(http.MethodPost, "/add_plots", nil)},
		{"docs without file", httptest.NewRequest(http.MethodPost, "/add_docs", nil)},
		{"delete without name", httptest.NewRequest(http.MethodDelete, "/delete_collection", nil)},
		{"select without value", httptest.NewRequest(http.MethodGet, "/select_by_value?collection_name=plots&field=id", nil)},
		{"select by id without id", httptest.NewRequest(http.MethodGet, "/select_by_id?collection_name=plots", nil)},
		{"select by negative id", httptest.NewRequest(http.MethodGet, "/select_by_id?collection_name=plots&id=-1", nil)},
		{"chat with malformed json", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"messages":`))
			r.Header.Set("Content-Type", "application/json")
			return r
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestDocumentRoutes(t *testing.T) {
	ts := newTestServer(t)
	pdf := documentstest.PDF("Land use rules for protected zones")

	rec := ts.do(upload(t, http.MethodPost, "/add_docs", "rules.pdf", pdf))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ingest.DocumentResult](t, rec)
	assert.Equal(t, ingest.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "Successfully ingested 1 chunks from 'rules.pdf' into 'document'.", res.Message)

	rec = ts.do(upload(t, http.MethodPost, "/update_docs?collection_name=document", "rules.pdf", pdf))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ingest.StatusSuccess, decode[ingest.DocumentResult](t, rec).Status)

	rec = ts.do(upload(t, http.MethodPost, "/add_docs", "notes.pdf", []byte("not a pdf")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ingest.StatusError, decode[ingest.DocumentResult](t, rec).Status)
}

func TestChat(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(upload(t, http.MethodPost, "/add_plots", "plots.geojson", []byte(plotsJSON)))
	require.Equal(t, http.StatusOK, rec.Code)

	chat := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		return ts.do(req)
	}

	rec = chat(`{"messages":[{"role":"user","content":"Участок с электричеством?"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"Участок 30987"}`, rec.Body.String())

	rec = chat(`{"messages":[{"role":"assistant","content":"Hello"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"Question is not defined"}`, rec.Body.String())

	rec = chat(`{"messages":[{"role":"user","content":"q"}],"collection_name":"ghost"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"An error occured while response processing"}`, rec.Body.String())
}

func TestJobLimiter(t *testing.T) {
	l := newJobLimiter(1)
	release, err := l.acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, l.inFlight())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Zero(t, l.inFlight())
	release2, err := l.acquire(context.Background())
	require.NoError(t, err)
	release2()
}

func TestServer_StartShutdown(t *testing.T) {
	ts := newTestServer(t)
	ts.server.config.Host = "127.0.0.1"
	ts.server.config.Port = 0

	done := make(chan error, 1)
	go func() { done <- ts.server.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.server.Shutdown(ctx))
	assert.NoError(t, <-done)
}
