package embeddings

import (
	"errors"
	"path/filepath"
)

// ErrLocalUnavailable is returned by the "fastembed" provider in binaries
// built without cgo.
var ErrLocalUnavailable = errors.New("fastembed: local models need a cgo build; use the tei or openai provider")

const (
	defaultLocalMaxLength = 512
	localBatchSize        = 256
)

// LocalConfig configures in-process ONNX embeddings.
type LocalConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

func (c LocalConfig) withDefaults() LocalConfig {
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(".", "local_cache")
	}
	if c.MaxLength <= 0 {
		c.MaxLength = defaultLocalMaxLength
	}
	return c
}
