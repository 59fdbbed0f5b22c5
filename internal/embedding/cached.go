package embedding

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// CachedEmbedder serves repeated texts from a Cache and sends only misses to
// the wrapped embedder, in one batch, preserving input order.
type CachedEmbedder struct {
	inner  Embedder
	cache  Cache
	model  string
	logger *zap.Logger
}

// NewCachedEmbedder wraps inner. model is folded into cache keys so vectors
// from different models never mix.
func NewCachedEmbedder(inner Embedder, cache Cache, model string, opts ...Option) *CachedEmbedder {
	o := applyOptions(opts)
	return &CachedEmbedder{inner: inner, cache: cache, model: model, logger: o.logger}
}

// Embed returns a cached embedding or computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.model, text)
	if vec, ok := c.cache.Get(ctx, key); ok {
		c.logger.Debug("embedding cache hit", zap.Int("text_length", len(text)))
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, vec)
	return vec, nil
}

// EmbedBatch fills hits from the cache and embeds the misses in one call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := c.cache.Get(ctx, CacheKey(c.model, text)); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	c.logger.Debug("embedding cache lookup",
		zap.Int("total", len(texts)),
		zap.Int("misses", len(missTexts)))
	if len(missTexts) == 0 {
		return out, nil
	}
	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.cache.Set(ctx, CacheKey(c.model, missTexts[j]), vecs[j])
	}
	return out, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the wrapped embedder and the cache when it holds resources.
func (c *CachedEmbedder) Close() error {
	err := c.inner.Close()
	if closer, ok := c.cache.(io.Closer); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
