// Package rag answers questions over ingested documents: it retrieves the
// nearest chunks and has a generator compose an answer from them.
package rag

import (
	"context"
	"fmt"

	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/hyperjump/ragdoc/internal/embedding"
	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/internal/vector"
)

// Retriever embeds a question and returns the nearest chunks as the
// collection ranks them.
type Retriever struct {
	embedder   embedding.Embedder
	collection *vector.Collection
}

// NewRetriever creates a retriever over collection.
func NewRetriever(embedder embedding.Embedder, collection *vector.Collection) *Retriever {
	return &Retriever{embedder: embedder, collection: collection}
}

// Retrieve returns up to topK results ascending by distance.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]*models.QueryResult, error) {
	if topK <= 0 {
		return nil, apperr.InvalidParameter("topK must be positive, got %d", topK)
	}
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", apperr.NewProviderError("embedding", "embed", err))
	}
	results, err := r.collection.Query(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	return results, nil
}
