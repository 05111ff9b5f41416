// Package embcache caches query embeddings: an in-process LRU in front of an optional
// key-value store shared between replicas.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/db"
	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/metrics"
	"github.com/kailas-cloud/hybridex/internal/repository/codec"
)

// DefaultSize is the number of vectors kept in memory per encoder.
const DefaultSize = 4096

// store is the consumer interface for the shared cache tier (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches the vectors of one encoder.
type CachedEmbedder struct {
	inner     domain.Embedder
	namespace string
	local     *lru.Cache[string, []float32]
	store     store
	ttl       time.Duration
	logger    *zap.Logger
}

// New creates a caching decorator. namespace separates encoders sharing a store.
func New(inner domain.Embedder, namespace string, size int, logger *zap.Logger) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultSize
	}
	local, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding lru: %w", err)
	}
	return &CachedEmbedder{inner: inner, namespace: namespace, local: local, logger: logger}, nil
}

// WithStore adds a shared tier consulted on local misses. A zero ttl never expires entries.
func (c *CachedEmbedder) WithStore(s store, ttl time.Duration) *CachedEmbedder {
	c.store = s
	c.ttl = ttl
	return c
}

// Embed returns a cached embedding or calls the inner embedder.
// A hit reports no token usage.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.local.Get(key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	if vec, ok := c.getFromStore(ctx, key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		c.local.Add(key, vec)
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.local.Add(key, result.Embedding)
	c.putToStore(ctx, key, result.Embedding)
	return result, nil
}

// Len returns the number of vectors held in memory.
func (c *CachedEmbedder) Len() int { return c.local.Len() }

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.namespace + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromStore(ctx context.Context, key string) ([]float32, bool) {
	if c.store == nil {
		return nil, false
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := codec.BytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putToStore(ctx context.Context, key string, vec []float32) {
	if c.store == nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, codec.VectorToBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}
