package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by a Cache when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores encoded vectors by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg CacheConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: cache address required", ErrInvalidConfig)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to embedding cache at %s: %w", cfg.Addr, err)
	}
	return &RedisCache{client: client, ttl: cfg.TTL}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedProvider serves repeated texts from a Cache. Cache failures are
// logged and fall through to the wrapped provider.
type CachedProvider struct {
	next   Provider
	cache  Cache
	model  string
	logger *zap.Logger
}

// NewCachedProvider wraps next with cache. model namespaces the keys so
// switching models never returns stale vectors.
func NewCachedProvider(next Provider, cache Cache, model string, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{next: next, cache: cache, model: model, logger: logger}
}

// EmbedDocuments looks up every text and embeds only the misses, in one batch.
func (c *CachedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := c.lookup(ctx, "doc", t); ok {
			vectors[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := c.next.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(fresh), len(missTexts))
	}
	for j, i := range missIdx {
		vectors[i] = fresh[j]
		c.store(ctx, "doc", missTexts[j], fresh[j])
	}
	return vectors, nil
}

// EmbedQuery returns the cached query vector or computes and stores it.
func (c *CachedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if v, ok := c.lookup(ctx, "query", text); ok {
		return v, nil
	}
	v, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, "query", text, v)
	return v, nil
}

func (c *CachedProvider) Dimension() int { return c.next.Dimension() }

// Close closes both the cache and the wrapped provider.
func (c *CachedProvider) Close() error {
	return errors.Join(c.cache.Close(), c.next.Close())
}

func (c *CachedProvider) lookup(ctx context.Context, mode, text string) ([]float32, bool) {
	b, err := c.cache.Get(ctx, cacheKey(c.model, mode, text))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("embedding cache read failed", zap.Error(err))
		}
		return nil, false
	}
	v, err := decodeVector(b)
	if err != nil || len(v) != c.next.Dimension() {
		return nil, false
	}
	return v, true
}

func (c *CachedProvider) store(ctx context.Context, mode, text string, v []float32) {
	if err := c.cache.Set(ctx, cacheKey(c.model, mode, text), encodeVector(v)); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
}

func cacheKey(model, mode, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "landrag:emb:" + model + ":" + mode + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector: %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
