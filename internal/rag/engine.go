// Package rag answers questions over a collection: it retrieves the most
// similar points, assembles them into a context block and asks a language
// model for an answer grounded in that context.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/landrag/internal/embeddings"
	"github.com/fyrsmithlabs/landrag/internal/logging"
	"github.com/fyrsmithlabs/landrag/internal/telemetry"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
	"github.com/tmc/langchaingo/llms"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Fixed user-facing responses.
const (
	NoQuestionResponse       = "Question is not defined"
	RetrievalFailedResponse  = "An error occured while response processing"
	GenerationFailedResponse = "Generation issue."
)

// DefaultTopK is the number of points retrieved per question.
const DefaultTopK = 5

var (
	// ErrRetrieval wraps embedding and search failures.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration wraps language model failures.
	ErrGeneration = errors.New("generation failed")
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is a retrieved point that went into the context.
type Source struct {
	ID    vectorstore.PointID `json:"id"`
	Score float32             `json:"score"`
}

// Answer is the outcome of a question. Response is always set.
type Answer struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources,omitempty"`
}

// Config tunes retrieval and generation.
type Config struct {
	TopK        int
	Temperature float64
	MaxTokens   int
	// RequestsPerSecond limits model calls. Zero disables the limit.
	RequestsPerSecond float64
	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

// Engine runs the retrieval-augmented answer flow.
type Engine struct {
	store     vectorstore.Store
	embedder  embeddings.Provider
	generator llms.Model
	limiter   *rate.Limiter
	config    Config
	tracer    trace.Tracer
	log       *logging.Logger
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(store vectorstore.Store, embedder embeddings.Provider, generator llms.Model, cfg Config, logger *logging.Logger) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(telemetry.ScopeRAG)
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Engine{
		store:     store,
		embedder:  embedder,
		generator: generator,
		limiter:   limiter,
		config:    cfg,
		tracer:    tracer,
		log:       logger.Named("rag"),
	}
}

// Question returns the content of the most recent user message.
func Question(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && messages[i].Content != "" {
			return messages[i].Content, true
		}
	}
	return "", false
}

// Answer answers the latest user question from collection. Failures are
// reported through the fixed responses and never returned as errors.
func (e *Engine) Answer(ctx context.Context, collection string, messages []Message) Answer {
	ctx = logging.WithCollection(ctx, collection)
	ctx, span := e.tracer.Start(ctx, "rag.answer", trace.WithAttributes(
		attribute.String("landrag.collection", collection),
		attribute.Int("landrag.top_k", e.config.TopK),
	))
	defer span.End()

	question, ok := Question(messages)
	if !ok {
		e.log.Info(ctx, "no user question in chat history", zap.Int("messages", len(messages)))
		return Answer{Response: NoQuestionResponse}
	}
	e.log.Info(ctx, "answering question", zap.Int("question_len", len(question)))

	hits, err := e.retrieve(ctx, collection, question)
	if err != nil {
		e.log.Error(ctx, "retrieval failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval")
		return Answer{Response: RetrievalFailedResponse}
	}
	span.SetAttributes(attribute.Int("landrag.hits", len(hits)))

	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = Source{ID: h.ID, Score: h.Score}
	}

	text, err := e.generate(ctx, BuildContext(hits), question)
	if err != nil {
		e.log.Error(ctx, "generation failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation")
		return Answer{Response: GenerationFailedResponse, Sources: sources}
	}
	return Answer{Response: text, Sources: sources}
}

func (e *Engine) retrieve(ctx context.Context, collection, question string) ([]vectorstore.ScoredPoint, error) {
	vector, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrieval, err)
	}
	hits, err := e.store.Search(ctx, collection, vector, e.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: searching %s: %w", ErrRetrieval, collection, err)
	}
	e.log.Debug(ctx, "retrieved context", zap.Int("hits", len(hits)))
	return hits, nil
}

func (e *Engine) generate(ctx context.Context, contextBlock, question string) (string, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limiter: %w", ErrGeneration, err)
		}
	}

	opts := []llms.CallOption{llms.WithTemperature(e.config.Temperature)}
	if e.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(e.config.MaxTokens))
	}

	ctx, span := e.tracer.Start(ctx, "rag.generate")
	defer span.End()

	start := time.Now()
	resp, err := e.generator.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, humanMessage(contextBlock, question)),
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	e.log.Debug(ctx, "generation finished", zap.Duration("duration", time.Since(start)))
	return resp.Choices[0].Content, nil
}
