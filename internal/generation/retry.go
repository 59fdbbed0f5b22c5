package generation

import (
	"context"
	"time"

	"github.com/hyperjump/ragdoc/internal/retry"
	"go.uber.org/zap"
)

// RetryingGenerator retries failed generations with exponential backoff.
type RetryingGenerator struct {
	inner  Generator
	policy retry.Policy
	logger *zap.Logger
}

// NewRetryingGenerator wraps inner with policy.
func NewRetryingGenerator(inner Generator, policy retry.Policy, opts ...Option) *RetryingGenerator {
	return &RetryingGenerator{inner: inner, policy: policy, logger: applyOptions(opts).logger}
}

// Generate retries inner.Generate.
func (r *RetryingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := retry.Do(ctx, r.policy, func() error {
		var err error
		text, err = r.inner.Generate(ctx, prompt)
		return err
	}, func(err error, wait time.Duration) {
		r.logger.Warn("generation failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
	return text, err
}

// Close closes the wrapped generator.
func (r *RetryingGenerator) Close() error {
	return r.inner.Close()
}
