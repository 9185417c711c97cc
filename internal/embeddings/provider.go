package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/landrag/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider generates embeddings in document or query mode.
type Provider interface {
	// EmbedDocuments embeds texts that will be stored, preserving order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector length produced by the model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for creating an embedding provider.
type Config struct {
	// Provider is "tei", "openai" or "fastembed".
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	// Dimension overrides the dimension detected from the model name.
	Dimension int

	DocumentPrefix string
	QueryPrefix    string

	// CacheDir is the model cache directory (fastembed only).
	CacheDir string

	Cache CacheConfig
}

// CacheConfig configures the Redis embedding cache.
type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	TTL      time.Duration
}

// FromSettings converts the operator-facing settings into a Config.
func FromSettings(s config.EmbeddingsConfig) Config {
	return Config{
		Provider:       s.Provider,
		Model:          s.Model,
		BaseURL:        s.BaseURL,
		APIKey:         s.APIKey.Value(),
		Dimension:      s.Dimension,
		DocumentPrefix: s.DocumentPrefix,
		QueryPrefix:    s.QueryPrefix,
		CacheDir:       s.CacheDir,
		Cache: CacheConfig{
			Enabled:  s.CacheEnabled,
			Addr:     s.CacheAddr,
			Password: s.CachePassword.Value(),
			TTL:      s.CacheTTL.Duration(),
		},
	}
}

// NewProvider creates the configured backend and wraps it with prefixing,
// caching and metrics as requested.
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dim := cfg.Dimension
	if dim == 0 {
		dim = DetectDimension(cfg.Model)
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case "tei", "":
		base, err = NewTEIProvider(TEIConfig{BaseURL: cfg.BaseURL, Model: cfg.Model, APIKey: cfg.APIKey, Dimension: dim})
	case "openai":
		base, err = NewOpenAIProvider(OpenAIConfig{BaseURL: cfg.BaseURL, Model: cfg.Model, APIKey: cfg.APIKey, Dimension: dim})
	case "fastembed":
		base, err = newLocalProvider(LocalConfig{Model: cfg.Model, CacheDir: cfg.CacheDir})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	p := base
	// fastembed applies its own passage/query prefixes.
	if cfg.Provider != "fastembed" && (cfg.DocumentPrefix != "" || cfg.QueryPrefix != "") {
		p = NewPrefixed(p, cfg.DocumentPrefix, cfg.QueryPrefix)
	}
	if cfg.Cache.Enabled {
		cache, err := NewRedisCache(cfg.Cache)
		if err != nil {
			_ = base.Close()
			return nil, err
		}
		p = NewCachedProvider(p, cache, cfg.Model, logger)
	}
	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimension", p.Dimension()),
		zap.Bool("cache", cfg.Cache.Enabled),
	)
	return NewInstrumented(p, cfg.Model, NewMetrics(logger)), nil
}

// DetectDimension returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func DetectDimension(model string) int {
	if dim, ok := knownModelDimension(model); ok {
		return dim
	}
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "large"):
		return 1024
	case strings.Contains(m, "base"):
		return 768
	default:
		return 384
	}
}

func checkTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	return nil
}
