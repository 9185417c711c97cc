// Package app constructs every long-lived dependency of landrag once, from
// configuration, and hands them to the HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/landrag/internal/chunker"
	"github.com/fyrsmithlabs/landrag/internal/config"
	"github.com/fyrsmithlabs/landrag/internal/documents"
	"github.com/fyrsmithlabs/landrag/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/landrag/internal/http"
	"github.com/fyrsmithlabs/landrag/internal/ingest"
	"github.com/fyrsmithlabs/landrag/internal/logging"
	"github.com/fyrsmithlabs/landrag/internal/rag"
	"github.com/fyrsmithlabs/landrag/internal/telemetry"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// ErrDimensionMismatch is returned when the embedding model and the
// configured collection dimension disagree.
var ErrDimensionMismatch = errors.New("embedding dimension does not match configuration")

// App holds the shared dependencies and the pipelines built on them.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Telemetry *telemetry.Telemetry

	Store     vectorstore.Store
	Embedder  embeddings.Provider
	Generator llms.Model

	Plots       *ingest.GeoPipeline
	Documents   *ingest.DocumentPipeline
	Collections *ingest.Collections
	Engine      *rag.Engine

	registry prometheus.Registerer
	gatherer prometheus.Gatherer
}

type options struct {
	version   string
	logger    *logging.Logger
	store     vectorstore.Store
	embedder  embeddings.Provider
	generator llms.Model
	registry  *prometheus.Registry
}

// Option overrides a dependency New would otherwise build.
type Option func(*options)

// WithVersion sets the service version reported to telemetry.
func WithVersion(v string) Option { return func(o *options) { o.version = v } }

// WithLogger uses an existing logger.
func WithLogger(l *logging.Logger) Option { return func(o *options) { o.logger = l } }

// WithStore uses an existing vector store.
func WithStore(s vectorstore.Store) Option { return func(o *options) { o.store = s } }

// WithEmbedder uses an existing embedding provider.
func WithEmbedder(e embeddings.Provider) Option { return func(o *options) { o.embedder = e } }

// WithGenerator uses an existing language model.
func WithGenerator(g llms.Model) Option { return func(o *options) { o.generator = g } }

// WithRegistry registers ingestion metrics on reg instead of the default
// registry.
func WithRegistry(reg *prometheus.Registry) Option { return func(o *options) { o.registry = reg } }

// New validates cfg and builds the application. On error everything
// created so far is released.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.Telemetry, err = telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, o.version))
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	a.Logger = o.logger
	if a.Logger == nil {
		lcfg, err := logging.FromSettings(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("invalid logging configuration: %w", err)
		}
		if a.Logger, err = logging.NewLogger(lcfg, a.Telemetry.LoggerProvider()); err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
	}
	zl := a.Logger.Underlying()
	if err := a.Telemetry.Err(); err != nil {
		a.Logger.Warn(ctx, "telemetry export unavailable, continuing without it", zap.Error(err))
	}

	a.Embedder = o.embedder
	if a.Embedder == nil {
		if a.Embedder, err = embeddings.NewProvider(embeddings.FromSettings(cfg.Embeddings), zl); err != nil {
			return nil, fmt.Errorf("initializing embeddings: %w", err)
		}
	}
	if got := a.Embedder.Dimension(); got != cfg.Embeddings.Dimension {
		return nil, fmt.Errorf("%w: model produces %d, embeddings.dimension is %d", ErrDimensionMismatch, got, cfg.Embeddings.Dimension)
	}

	a.Store = o.store
	if a.Store == nil {
		if a.Store, err = vectorstore.NewStore(ctx, cfg, zl); err != nil {
			return nil, fmt.Errorf("initializing vector store: %w", err)
		}
	}

	a.Generator = o.generator
	if a.Generator == nil {
		if a.Generator, err = rag.NewGenerator(cfg.LLM); err != nil {
			return nil, fmt.Errorf("initializing llm: %w", err)
		}
	}

	a.registry, a.gatherer = prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	if o.registry != nil {
		a.registry, a.gatherer = o.registry, o.registry
	}

	deps := ingest.Deps{
		Store:    a.Store,
		Embedder: a.Embedder,
		Logger:   a.Logger,
		Metrics:  ingest.NewMetrics(a.registry),
		Tracer:   a.Telemetry.Tracer(telemetry.ScopeIngest),
	}
	splitter, err := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	a.Plots = ingest.NewGeoPipeline(deps)
	if a.Documents, err = ingest.NewDocumentPipeline(deps, documents.PDFExtractor{}, splitter); err != nil {
		return nil, err
	}
	a.Collections = ingest.NewCollections(deps)
	ragCfg := rag.ConfigFromSettings(cfg.LLM)
	ragCfg.Tracer = a.Telemetry.Tracer(telemetry.ScopeRAG)
	a.Engine = rag.NewEngine(a.Store, a.Embedder, a.Generator, ragCfg, a.Logger)

	a.Logger.Info(ctx, "landrag initialized",
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.String("embedding_model", cfg.Embeddings.Model),
		zap.Int("dimension", cfg.Embeddings.Dimension),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		logging.Secret("llm_api_key", cfg.LLM.APIKey),
		zap.Bool("telemetry", a.Telemetry.Enabled()),
	)
	return a, nil
}

// Server builds the HTTP server over the application's pipelines.
func (a *App) Server() (*httpserver.Server, error) {
	return httpserver.NewServer(httpserver.Services{
		Plots:       a.Plots,
		Documents:   a.Documents,
		Collections: a.Collections,
		Chat:        a.Engine,
		Health:      a.Store,
	}, a.Logger, &httpserver.Config{
		Host:              a.Config.Server.Host,
		Port:              a.Config.Server.Port,
		MaxUploadMB:       a.Config.Server.MaxUploadMB,
		MaxConcurrentJobs: a.Config.Server.MaxConcurrentJobs,
		Gatherer:          a.gatherer,
		Meter:             a.Telemetry.Meter(telemetry.ScopeHTTP),
	})
}

// Close releases the embedder, the store and telemetry, in that order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Embedder != nil {
		if err := a.Embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embeddings: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing vector store: %w", err))
		}
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
