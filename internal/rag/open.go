package rag

import (
	"context"
	"fmt"

	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/embedding"
	"github.com/hyperjump/ragdoc/internal/generation"
	"github.com/hyperjump/ragdoc/internal/indexer"
	"github.com/hyperjump/ragdoc/internal/metrics"
	"github.com/hyperjump/ragdoc/internal/storage"
	"github.com/hyperjump/ragdoc/internal/vector"
	"go.uber.org/zap"
)

// Open builds a Service from configuration: embedding provider, vector store
// and collection, document ledger and generator. Close releases them.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (svc *Service, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	embedder, err := embedding.NewFromConfig(ctx, cfg, embedding.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	closers = append(closers, embedder.Close)

	store, err := vector.NewStore(ctx, cfg.Vector, vector.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	closers = append(closers, store.Close)

	collection, err := vector.NewCollection(ctx, cfg.Vector.Collection, store, embedder,
		vector.WithLogger(logger), vector.WithTimeout(cfg.Vector.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	var ledger storage.Ledger
	if cfg.Ledger.DatabasePath != "" {
		sl, err := storage.NewSQLiteLedger(cfg.Ledger.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger: %w", err)
		}
		closers = append(closers, sl.Close)
		ledger = sl
	}

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	generator, err := generation.NewFromConfig(ctx, cfg, generation.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	closers = append(closers, generator.Close)

	idx := indexer.NewIndexer(collection, ledger, chunker, indexer.WithLogger(logger))
	svc = NewService(idx, NewRetriever(embedder, collection), NewComposer(generator),
		WithLogger(logger), WithMetrics(m), WithTopK(cfg.Retrieval.TopK))
	svc.closers = closers
	return svc, nil
}
