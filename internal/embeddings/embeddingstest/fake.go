// Package embeddingstest provides a deterministic embedding provider for tests.
package embeddingstest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"
)

// Fake derives vectors from an FNV hash of the input text, so equal texts
// always map to equal vectors. It records every input it receives.
type Fake struct {
	Dim int
	// Err, when set, is returned by every embedding call.
	Err error

	mu        sync.Mutex
	documents [][]string
	queries   []string
}

// New returns a Fake producing vectors of length dim.
func New(dim int) *Fake {
	return &Fake{Dim: dim}
}

func (f *Fake) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.documents = append(f.documents, append([]string(nil), texts...))
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if len(texts) == 0 {
		return nil, errors.New("empty input")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.Vector(t)
	}
	return out, nil
}

func (f *Fake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Vector(text), nil
}

func (f *Fake) Dimension() int { return f.Dim }

func (f *Fake) Close() error { return nil }

// Vector returns the unit vector the fake produces for text.
func (f *Fake) Vector(text string) []float32 {
	v := make([]float32, f.Dim)
	var norm float64
	for i := range v {
		h := fnv.New32a()
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		x := float64(h.Sum32()%2001)/1000 - 1
		v[i] = float32(x)
		norm += x * x
	}
	if norm == 0 {
		v[0], norm = 1, 1
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// DocumentCalls returns the batches passed to EmbedDocuments.
func (f *Fake) DocumentCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.documents...)
}

// Queries returns the texts passed to EmbedQuery.
func (f *Fake) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// Calls returns the total number of embedding calls.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.documents) + len(f.queries)
}
