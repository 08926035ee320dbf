package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"go.uber.org/zap"

	"github.com/celt313/gamequest/metrics"
)

// Cache is a process-wide, read-mostly embedding cache decorator. Values are
// content-derived and deterministic, so a concurrent double write is
// idempotent and last-writer-wins is safe. Create one handle at process
// start and pass it into retrievers explicitly.
type Cache struct {
	inner  MultiModalModel
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string][]float64
}

// NewCache wraps a model with an in-process cache.
func NewCache(inner MultiModalModel, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		inner:   inner,
		logger:  logger,
		entries: make(map[string][]float64),
	}
}

// GetTextEmbedding returns the cached embedding for the text, computing and
// storing it on first use.
func (c *Cache) GetTextEmbedding(ctx context.Context, text string) ([]float64, error) {
	return c.lookup(ctx, "t:"+text, func(ctx context.Context) ([]float64, error) {
		return c.inner.GetTextEmbedding(ctx, text)
	})
}

// GetQueryEmbedding returns the cached embedding for the query.
func (c *Cache) GetQueryEmbedding(ctx context.Context, query string) ([]float64, error) {
	return c.lookup(ctx, "q:"+query, func(ctx context.Context) ([]float64, error) {
		return c.inner.GetQueryEmbedding(ctx, query)
	})
}

// GetImageEmbedding returns the cached embedding for the image payload.
func (c *Cache) GetImageEmbedding(ctx context.Context, image []byte) ([]float64, error) {
	return c.lookup(ctx, "i:"+string(image), func(ctx context.Context) ([]float64, error) {
		return c.inner.GetImageEmbedding(ctx, image)
	})
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(ctx context.Context, payload string, compute func(context.Context) ([]float64, error)) ([]float64, error) {
	key := cacheKey(payload)

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	emb, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = emb
	c.mu.Unlock()
	c.logger.Debug("embedding cached", zap.String("key", key[:12]))

	return emb, nil
}

func cacheKey(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

var _ MultiModalModel = (*Cache)(nil)
