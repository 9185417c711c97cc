package vectorstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/landrag/internal/config"
	"go.uber.org/zap"
)

// NewStore creates the Store selected by cfg.VectorStore.Provider:
//   - "qdrant" (default): QdrantStore over gRPC
//   - "chromem": embedded ChromemStore, in memory unless chromem.path is set
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "qdrant", "":
		store, err := NewQdrantStore(ctx, QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			UseTLS:         cfg.Qdrant.UseTLS,
			APIKey:         cfg.Qdrant.APIKey.Value(),
			MaxMessageSize: cfg.Qdrant.MaxMessageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("creating qdrant store: %w", err)
		}
		if !cfg.Qdrant.UseTLS && logger != nil {
			logger.Warn("qdrant gRPC connection uses plaintext",
				zap.String("host", cfg.Qdrant.Host),
				zap.Int("port", cfg.Qdrant.Port),
			)
		}
		return store, nil
	case "chromem":
		store, err := NewChromemStore(ChromemConfig{
			Path:      cfg.Chromem.Path,
			Compress:  cfg.Chromem.Compress,
			Dimension: cfg.Embeddings.Dimension,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating chromem store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown vectorstore provider %q", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
