// Package config provides configuration loading for landrag.
//
// Configuration is assembled from built-in defaults, an optional YAML file,
// an optional .env file and LANDRAG_* environment variables, in that order
// of increasing precedence. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete landrag configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Chunking    ChunkingConfig    `koanf:"chunking"`
	LLM         LLMConfig         `koanf:"llm"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host              string   `koanf:"host"`
	Port              int      `koanf:"port"`
	ShutdownTimeout   Duration `koanf:"shutdown_timeout"`
	MaxUploadMB       int      `koanf:"max_upload_mb"`
	MaxConcurrentJobs int      `koanf:"max_concurrent_jobs"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	// Provider is "qdrant" or "chromem".
	Provider string `koanf:"provider"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	UseTLS         bool   `koanf:"use_tls"`
	APIKey         Secret `koanf:"api_key"`
	MaxMessageSize int    `koanf:"max_message_size"`
}

// ChromemConfig holds settings for the embedded chromem-go store.
// An empty Path keeps everything in memory.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// EmbeddingsConfig holds embedding provider settings.
type EmbeddingsConfig struct {
	// Provider is "tei", "openai" or "fastembed".
	Provider       string `koanf:"provider"`
	Model          string `koanf:"model"`
	BaseURL        string `koanf:"base_url"`
	APIKey         Secret `koanf:"api_key"`
	Dimension      int    `koanf:"dimension"`
	DocumentPrefix string `koanf:"document_prefix"`
	QueryPrefix    string `koanf:"query_prefix"`
	CacheDir       string `koanf:"cache_dir"`

	CacheEnabled  bool     `koanf:"cache_enabled"`
	CacheAddr     string   `koanf:"cache_addr"`
	CachePassword Secret   `koanf:"cache_password"`
	CacheTTL      Duration `koanf:"cache_ttl"`
}

// ChunkingConfig holds document splitter settings.
type ChunkingConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// LLMConfig holds language model settings.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible server) or "ollama".
	Provider          string  `koanf:"provider"`
	Model             string  `koanf:"model"`
	BaseURL           string  `koanf:"base_url"`
	APIKey            Secret  `koanf:"api_key"`
	Temperature       float64 `koanf:"temperature"`
	MaxTokens         int     `koanf:"max_tokens"`
	TopK              int     `koanf:"top_k"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns a Config populated with production defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ShutdownTimeout:   Duration(10 * time.Second),
			MaxUploadMB:       64,
			MaxConcurrentJobs: 4,
		},
		VectorStore: VectorStoreConfig{
			Provider: "qdrant",
		},
		Qdrant: QdrantConfig{
			Host:           "localhost",
			Port:           6334,
			MaxMessageSize: 50 * 1024 * 1024,
		},
		Embeddings: EmbeddingsConfig{
			Provider:       "tei",
			Model:          "intfloat/multilingual-e5-small",
			BaseURL:        "http://localhost:8080",
			Dimension:      384,
			DocumentPrefix: "passage: ",
			QueryPrefix:    "query: ",
			CacheAddr:      "localhost:6379",
			CacheTTL:       Duration(24 * time.Hour),
		},
		Chunking: ChunkingConfig{
			ChunkSize:    500,
			ChunkOverlap: 100,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
			TopK:      5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			SampleRate:     1.0,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	if c.Server.MaxConcurrentJobs <= 0 {
		return errors.New("server.max_concurrent_jobs must be positive")
	}

	switch c.VectorStore.Provider {
	case "qdrant":
		if c.Qdrant.Host == "" {
			return errors.New("qdrant.host is required")
		}
		if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d (must be 1-65535)", c.Qdrant.Port)
		}
	case "chromem":
	default:
		return fmt.Errorf("unknown vectorstore.provider %q (want qdrant or chromem)", c.VectorStore.Provider)
	}

	switch c.Embeddings.Provider {
	case "tei", "openai":
		if c.Embeddings.BaseURL == "" {
			return fmt.Errorf("embeddings.base_url is required for provider %q", c.Embeddings.Provider)
		}
	case "fastembed":
	default:
		return fmt.Errorf("unknown embeddings.provider %q (want tei, openai or fastembed)", c.Embeddings.Provider)
	}
	if c.Embeddings.Model == "" {
		return errors.New("embeddings.model is required")
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embeddings.dimension must be positive, got %d", c.Embeddings.Dimension)
	}
	if c.Embeddings.CacheEnabled && c.Embeddings.CacheAddr == "" {
		return errors.New("embeddings.cache_addr is required when the cache is enabled")
	}

	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}

	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown llm.provider %q (want openai or ollama)", c.LLM.Provider)
	}
	if c.LLM.TopK <= 0 {
		return fmt.Errorf("llm.top_k must be positive, got %d", c.LLM.TopK)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %v", c.LLM.Temperature)
	}
	if c.LLM.RequestsPerSecond < 0 {
		return errors.New("llm.requests_per_second cannot be negative")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
		}
	}

	return nil
}
