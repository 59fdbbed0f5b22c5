// Package embedding provides text embedding providers, caching and retries.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/ragdoc/internal/apperr"
)

// Embedder produces vector embeddings for text. EmbedBatch returns exactly one
// vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// DefaultBatchSize is the largest batch sent in one provider request.
const DefaultBatchSize = 100

type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// embedInBatches splits texts into sequential requests of at most size texts
// and checks that every request returned one vector per text.
func embedInBatches(ctx context.Context, provider string, texts []string, size int, fn batchFunc) ([][]float32, error) {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, apperr.NewProviderError(provider, "embed", err)
		}
		if len(vecs) != end-start {
			return nil, apperr.NewProviderError(provider, "embed",
				fmt.Errorf("got %d embeddings for %d texts", len(vecs), end-start))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// embedOne embeds a single text through a batch function.
func embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
