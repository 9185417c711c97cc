// Package http exposes the ingestion, collection and chat operations over
// HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/landrag/internal/ingest"
	"github.com/fyrsmithlabs/landrag/internal/logging"
	"github.com/fyrsmithlabs/landrag/internal/rag"
	"github.com/fyrsmithlabs/landrag/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// PlotIngester loads land-plot feature collections.
type PlotIngester interface {
	IngestFeatures(ctx context.Context, payload []byte, collection string) ingest.GeoResult
	UpdateFeatures(ctx context.Context, payload []byte, collection string) ingest.GeoResult
}

// DocumentIngester loads PDF documents.
type DocumentIngester interface {
	IngestDocument(ctx context.Context, src ingest.Source, collection string) ingest.DocumentResult
	UpdateDocument(ctx context.Context, src ingest.Source, collection string) ingest.DocumentResult
}

// CollectionManager runs collection-level operations.
type CollectionManager interface {
	Delete(ctx context.Context, name string) ingest.Result
	SelectByValue(ctx context.Context, name, field, value string) ingest.SelectResult
	GetPoint(ctx context.Context, name string, id uint64) ingest.SelectResult
}

// Answerer answers chat questions.
type Answerer interface {
	Answer(ctx context.Context, collection string, messages []rag.Message) rag.Answer
}

// HealthChecker reports backend availability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Services are the operations the server routes to.
type Services struct {
	Plots       PlotIngester
	Documents   DocumentIngester
	Collections CollectionManager
	Chat        Answerer
	// Health is optional.
	Health HealthChecker
}

func (s Services) validate() error {
	switch {
	case s.Plots == nil:
		return errors.New("plot ingester is required")
	case s.Documents == nil:
		return errors.New("document ingester is required")
	case s.Collections == nil:
		return errors.New("collection manager is required")
	case s.Chat == nil:
		return errors.New("chat answerer is required")
	}
	return nil
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// MaxUploadMB caps request bodies.
	MaxUploadMB int
	// MaxConcurrentJobs bounds concurrent ingestion and chat work.
	MaxConcurrentJobs int
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Meter records request metrics. Nil uses the global provider.
	Meter metric.Meter
}

// Default collection names when a request does not name one.
const (
	DefaultPlotCollection     = "land_plots"
	DefaultDocumentCollection = "document"
)

// Server provides the HTTP endpoints for landrag.
type Server struct {
	echo     *echo.Echo
	services Services
	logger   *logging.Logger
	config   *Config
	jobs     *jobLimiter
}

// NewServer creates a new HTTP server.
func NewServer(services Services, logger *logging.Logger, cfg *Config) (*Server, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 64
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 4
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Meter == nil {
		cfg.Meter = otel.Meter(telemetry.ScopeHTTP)
	}
	jobs := newJobLimiter(cfg.MaxConcurrentJobs)
	metrics, err := newRouteMetrics(cfg.Meter, jobs)
	if err != nil {
		return nil, fmt.Errorf("creating http metrics: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(metrics.middleware())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadMB)))

	s := &Server{
		echo:     e,
		services: services,
		logger:   logger,
		config:   cfg,
		jobs:     jobs,
	}

	s.registerRoutes()

	return s, nil
}

// requestLogger carries the request id into the request context and logs
// every request once it completes.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	s.echo.POST("/add_plots", s.handlePlots(s.services.Plots.IngestFeatures))
	s.echo.POST("/update_plots", s.handlePlots(s.services.Plots.UpdateFeatures))
	s.echo.POST("/add_docs", s.handleDocument(s.services.Documents.IngestDocument))
	s.echo.POST("/update_docs", s.handleDocument(s.services.Documents.UpdateDocument))

	s.echo.DELETE("/delete_collection", s.handleDeleteCollection)
	s.echo.GET("/select_by_value", s.handleSelectByValue)
	s.echo.GET("/select_by_id", s.handleSelectByID)

	s.echo.POST("/chat", s.handleChat)
}

// Echo returns the underlying router.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
