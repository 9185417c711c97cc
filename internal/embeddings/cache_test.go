package embeddings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/landrag/internal/embeddings/embeddingstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet error
	failSet error
	closed  bool
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	b, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return b, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Close() error {
	m.closed = true
	return nil
}

func TestCachedProvider_EmbedsOnlyMisses(t *testing.T) {
	fake := embeddingstest.New(4)
	cache := newMemCache()
	p := NewCachedProvider(fake, cache, "e5", nil)
	ctx := context.Background()

	first, err := p.EmbedDocuments(ctx, []string{"a", "b"})
	require.NoError(t, err)

	second, err := p.EmbedDocuments(ctx, []string{"b", "c", "a"})
	require.NoError(t, err)

	calls := fake.DocumentCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"c"}, calls[1])
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, fake.Vector("c"), second[1])
}

func TestCachedProvider_QueryAndDocumentKeysDiffer(t *testing.T) {
	fake := embeddingstest.New(4)
	p := NewCachedProvider(fake, newMemCache(), "e5", nil)
	ctx := context.Background()

	_, err := p.EmbedDocuments(ctx, []string{"same"})
	require.NoError(t, err)
	_, err = p.EmbedQuery(ctx, "same")
	require.NoError(t, err)
	_, err = p.EmbedQuery(ctx, "same")
	require.NoError(t, err)

	assert.Equal(t, []string{"same"}, fake.Queries())
	assert.NotEqual(t, cacheKey("e5", "doc", "same"), cacheKey("e5", "query", "same"))
}

func TestCachedProvider_CacheFailuresPassThrough(t *testing.T) {
	fake := embeddingstest.New(4)
	cache := newMemCache()
	cache.failGet = errors.New("connection refused")
	cache.failSet = errors.New("connection refused")
	p := NewCachedProvider(fake, cache, "e5", nil)

	v, err := p.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, fake.Vector("q"), v)
}

func TestCachedProvider_IgnoresWrongDimension(t *testing.T) {
	fake := embeddingstest.New(4)
	cache := newMemCache()
	cache.data[cacheKey("e5", "query", "q")] = encodeVector([]float32{1, 2})
	p := NewCachedProvider(fake, cache, "e5", nil)

	v, err := p.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, v, 4)
	assert.Len(t, fake.Queries(), 1)
}

func TestCachedProvider_Close(t *testing.T) {
	cache := newMemCache()
	p := NewCachedProvider(embeddingstest.New(2), cache, "m", nil)
	require.NoError(t, p.Close())
	assert.True(t, cache.closed)
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
