package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/retry"
	"go.uber.org/zap"
)

// NewFromConfig builds the configured provider and wraps it with the retry
// policy and the cache. The cache sits outermost so hits skip retries.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (Embedder, error) {
	o := applyOptions(opts)
	base, model, err := newProvider(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	var e Embedder = base

	policy := retry.FromConfig(cfg.Providers.Retry)
	if policy.Enabled() {
		e = NewRetryingEmbedder(e, policy, opts...)
	}

	switch cfg.Embedding.Cache.Type {
	case "memory":
		e = NewCachedEmbedder(e, NewLRUCache(cfg.Embedding.Cache.Size, cfg.Embedding.Cache.TTL), model, opts...)
	case "redis":
		rc := cfg.Embedding.Cache.Redis
		cache, err := NewRedisCache(ctx, RedisCacheConfig{
			Address:   rc.Address,
			Password:  rc.Password,
			DB:        rc.DB,
			KeyPrefix: rc.KeyPrefix,
			TTL:       cfg.Embedding.Cache.TTL,
		}, opts...)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("failed to connect embedding cache: %w", err)
		}
		e = NewCachedEmbedder(e, cache, model, opts...)
	case "none", "":
	default:
		_ = e.Close()
		return nil, fmt.Errorf("unknown embedding cache type: %s (supported: none, memory, redis)", cfg.Embedding.Cache.Type)
	}

	o.logger.Info("embedder ready",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", model),
		zap.Int("dimensions", e.Dimensions()),
		zap.String("cache", cfg.Embedding.Cache.Type))
	return e, nil
}

func newProvider(ctx context.Context, cfg *config.Config, opts []Option) (Embedder, string, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case ProviderGemini, "":
		e, err := NewGeminiEmbedder(ctx, GeminiConfig{
			APIKey:     cfg.Providers.GeminiAPIKey,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			BatchSize:  ec.BatchSize,
			Timeout:    cfg.Providers.Timeout,
		}, opts...)
		if err != nil {
			return nil, "", err
		}
		return e, e.model, nil
	case ProviderOpenAI:
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.Providers.OpenAIAPIKey,
			BaseURL:    cfg.Providers.OpenAIBaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			BatchSize:  ec.BatchSize,
			Timeout:    cfg.Providers.Timeout,
		}, opts...)
		if err != nil {
			return nil, "", err
		}
		return e, e.model, nil
	case ProviderMock:
		return NewMockEmbedder(ec.Dimensions), ProviderMock, nil
	default:
		return nil, "", fmt.Errorf("unknown embedding provider: %s (supported: gemini, openai, mock)", ec.Provider)
	}
}
