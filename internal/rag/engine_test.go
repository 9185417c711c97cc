package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/landrag/internal/embeddings/embeddingstest"
	"github.com/fyrsmithlabs/landrag/internal/telemetry"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore/vectorstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const testDim = 8

// recordingModel captures the messages of every call.
type recordingModel struct {
	response string
	err      error
	calls    [][]llms.MessageContent
}

func (m *recordingModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls = append(m.calls, msgs)
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.response}}}, nil
}

func (m *recordingModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

type fixture struct {
	store    *vectorstoretest.Recorder
	embedder *embeddingstest.Fake
	model    *recordingModel
	tel      *telemetry.TestTelemetry
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	backend, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Dimension: testDim}, nil)
	require.NoError(t, err)

	f := &fixture{
		store:    vectorstoretest.NewRecorder(backend),
		embedder: embeddingstest.New(testDim),
		model:    &recordingModel{response: "Участок 101: https://eri2.nca.by/guest/investmentObject/101#main"},
		tel:      telemetry.NewTestTelemetry(),
	}

	require.NoError(t, backend.CreateCollection(ctx, "plots", testDim))
	descriptions := map[uint64]string{
		101: "Площадь участка: 0.25 га. Есть электроснабжение.",
		102: "Площадь участка: 1.5 га. Право: аренда.",
	}
	var points []vectorstore.Point
	for id, d := range descriptions {
		points = append(points, vectorstore.Point{
			ID:     vectorstore.NumID(id),
			Vector: f.embedder.Vector(d),
			Payload: map[string]any{
				"id":          int64(id),
				"description": d,
				"water":       nil,
				"geometry":    `{"type":"Polygon"}`,
				"location":    map[string]any{"lon": 27.5, "lat": 53.9},
			},
		})
	}
	require.NoError(t, backend.Insert(ctx, "plots", points))

	f.engine = NewEngine(f.store, f.embedder, f.model, Config{TopK: 2, Tracer: f.tel.Tracer(telemetry.ScopeRAG)}, nil)
	return f
}

func TestQuestion(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     string
		ok       bool
	}{
		{"empty", nil, "", false},
		{"assistant only", []Message{{Role: "assistant", Content: "hi"}, {Role: "system", Content: "x"}}, "", false},
		{"single", []Message{{Role: "user", Content: "where?"}}, "where?", true},
		{"most recent wins", []Message{
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "answer"},
			{Role: "user", Content: "second"},
			{Role: "assistant", Content: "pending"},
		}, "second", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Question(tt.messages)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_NoQuestionShortCircuits(t *testing.T) {
	f := newFixture(t)
	before := f.store.Total()

	ans := f.engine.Answer(context.Background(), "plots", []Message{{Role: "assistant", Content: "hello"}})
	assert.Equal(t, NoQuestionResponse, ans.Response)
	assert.Zero(t, f.embedder.Calls())
	assert.Equal(t, before, f.store.Total())
	assert.Empty(t, f.model.calls)
}

func TestEngine_Answer(t *testing.T) {
	f := newFixture(t)
	question := "Площадь участка: 0.25 га. Есть электроснабжение."

	ans := f.engine.Answer(context.Background(), "plots", []Message{{Role: "user", Content: question}})
	assert.Equal(t, f.model.response, ans.Response, "model text is returned verbatim")
	require.Len(t, ans.Sources, 2)
	assert.Equal(t, vectorstore.NumID(101), ans.Sources[0].ID, "best match first")
	assert.GreaterOrEqual(t, ans.Sources[0].Score, ans.Sources[1].Score)

	assert.Equal(t, []string{question}, f.embedder.Queries(), "question is embedded in query mode")
	assert.Equal(t, 1, f.store.Calls("Search"))

	require.Len(t, f.model.calls, 1)
	msgs := f.model.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Parts[0].(llms.TextContent).Text, "https://eri2.nca.by/guest/investmentObject/")

	human := msgs[1].Parts[0].(llms.TextContent).Text
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Contains(t, human, "Source:{id: 101}\nContent:"+question)
	assert.Less(t, strings.Index(human, "id: 101"), strings.Index(human, "id: 102"))
	assert.True(t, strings.HasSuffix(human, question))

	f.tel.AssertSpan(t, "rag.answer",
		attribute.String("landrag.collection", "plots"),
		attribute.Int("landrag.top_k", 2),
		attribute.Int("landrag.hits", 2),
	)
	f.tel.AssertSpan(t, "rag.generate")
}

func TestEngine_RetrievalFailure(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		f := newFixture(t)
		f.embedder.Err = errors.New("model offline")
		ans := f.engine.Answer(context.Background(), "plots", []Message{{Role: "user", Content: "q"}})
		assert.Equal(t, RetrievalFailedResponse, ans.Response)
		assert.Empty(t, f.model.calls)
	})
	t.Run("search", func(t *testing.T) {
		f := newFixture(t)
		ans := f.engine.Answer(context.Background(), "missing", []Message{{Role: "user", Content: "q"}})
		assert.Equal(t, RetrievalFailedResponse, ans.Response)
		assert.Empty(t, f.model.calls)
	})
}

func TestEngine_GenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.model.err = errors.New("context window exceeded")

	ans := f.engine.Answer(context.Background(), "plots", []Message{{Role: "user", Content: "q"}})
	assert.Equal(t, GenerationFailedResponse, ans.Response)

	span := f.tel.Span("rag.answer")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "generation", span.Status().Description)
}

func TestEngine_EmptyModelResponse(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(f.store, f.embedder, fake.NewFakeLLM(nil), Config{}, nil)

	ans := engine.Answer(context.Background(), "plots", []Message{{Role: "user", Content: "q"}})
	assert.Equal(t, GenerationFailedResponse, ans.Response)
}

func TestEngine_FakeModel(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(f.store, f.embedder, fake.NewFakeLLM([]string{"ok"}), Config{RequestsPerSecond: 100}, nil)

	for range 3 {
		ans := engine.Answer(context.Background(), "plots", []Message{{Role: "user", Content: "q"}})
		assert.Equal(t, "ok", ans.Response)
	}
	assert.Equal(t, DefaultTopK, engine.config.TopK)
}
