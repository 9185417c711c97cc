//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// Hub names mapped to the identifiers fastembed downloads.
var localModels = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

type localProvider struct {
	mu        sync.RWMutex
	flag      *fastembed.FlagEmbedding
	dimension int
}

func resolveLocalModel(name string) (fastembed.EmbeddingModel, int, error) {
	dim, known := knownModelDimension(name)
	if model, ok := localModels[name]; ok {
		return model, dim, nil
	}
	if !known {
		return "", 0, fmt.Errorf("%w: unsupported fastembed model %q", ErrInvalidConfig, name)
	}
	// Native names such as fast-bge-small-en-v1.5 pass straight through.
	return fastembed.EmbeddingModel(name), dim, nil
}

func newLocalProvider(cfg LocalConfig) (Provider, error) {
	cfg = cfg.withDefaults()
	model, dim, err := resolveLocalModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	quiet := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("loading local model %s: %w", cfg.Model, err)
	}
	return &localProvider{flag: flag, dimension: dim}, nil
}

// session returns the loaded model under the read lock; release must be
// called when done.
func (p *localProvider) session(ctx context.Context) (*fastembed.FlagEmbedding, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p.mu.RLock()
	if p.flag == nil {
		p.mu.RUnlock()
		return nil, nil, fmt.Errorf("%w: local model closed", ErrEmbeddingFailed)
	}
	return p.flag, p.mu.RUnlock, nil
}

// EmbedDocuments uses fastembed's passage mode, which adds its own prefix.
func (p *localProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(texts); err != nil {
		return nil, err
	}
	flag, release, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	out, err := flag.PassageEmbed(texts, localBatchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return out, nil
}

func (p *localProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	flag, release, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	out, err := flag.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return out, nil
}

func (p *localProvider) Dimension() int { return p.dimension }

func (p *localProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flag == nil {
		return nil
	}
	err := p.flag.Destroy()
	p.flag = nil
	return err
}
