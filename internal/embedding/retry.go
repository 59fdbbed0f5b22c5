package embedding

import (
	"context"
	"time"

	"github.com/hyperjump/ragdoc/internal/retry"
	"go.uber.org/zap"
)

// RetryingEmbedder retries failed provider calls with exponential backoff.
type RetryingEmbedder struct {
	inner  Embedder
	policy retry.Policy
	logger *zap.Logger
}

// NewRetryingEmbedder wraps inner with policy.
func NewRetryingEmbedder(inner Embedder, policy retry.Policy, opts ...Option) *RetryingEmbedder {
	o := applyOptions(opts)
	return &RetryingEmbedder{inner: inner, policy: policy, logger: o.logger}
}

func (r *RetryingEmbedder) notify(err error, wait time.Duration) {
	r.logger.Warn("embedding failed, retrying", zap.Error(err), zap.Duration("wait", wait))
}

// Embed retries inner.Embed.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := retry.Do(ctx, r.policy, func() error {
		var err error
		vec, err = r.inner.Embed(ctx, text)
		return err
	}, r.notify)
	return vec, err
}

// EmbedBatch retries inner.EmbedBatch as a whole.
func (r *RetryingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := retry.Do(ctx, r.policy, func() error {
		var err error
		vecs, err = r.inner.EmbedBatch(ctx, texts)
		return err
	}, r.notify)
	return vecs, err
}

// Dimensions returns the wrapped embedder's dimension.
func (r *RetryingEmbedder) Dimensions() int {
	return r.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (r *RetryingEmbedder) Close() error {
	return r.inner.Close()
}
