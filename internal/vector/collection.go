package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/hyperjump/ragdoc/internal/embedding"
	"github.com/hyperjump/ragdoc/internal/models"
	"go.uber.org/zap"
)

// DefaultSource is attached to records whose metadata carries no source.
const DefaultSource = "pdf"

// Collection is the single named collection the pipeline reads and writes.
// It embeds chunk texts and delegates storage and search to a Store.
type Collection struct {
	name       string
	dimensions int
	store      Store
	embedder   embedding.Embedder
	timeout    time.Duration
	logger     *zap.Logger
}

// NewCollection ensures the named collection exists with the embedder's dimension.
func NewCollection(ctx context.Context, name string, store Store, embedder embedding.Embedder, opts ...Option) (*Collection, error) {
	if name == "" {
		return nil, apperr.InvalidParameter("collection name is required")
	}
	o := applyOptions(opts)
	c := &Collection{
		name:       name,
		dimensions: embedder.Dimensions(),
		store:      store,
		embedder:   embedder,
		timeout:    o.timeout,
		logger:     o.logger,
	}
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Collection) ensure(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return indexError("ensure collection", c.store.EnsureCollection(ctx, c.name, c.dimensions))
}

// Upsert embeds all chunk texts in one batch and writes the records keyed
// by chunk id. Nothing is written when embedding fails.
func (c *Collection) Upsert(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return apperr.NewProviderError("embedding", "embed", err)
	}
	if len(vectors) != len(chunks) {
		return apperr.NewProviderError("embedding", "embed",
			fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks)))
	}
	records := make([]*models.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = &models.Record{
			ID:       ch.ID,
			Text:     ch.Text,
			Metadata: recordMetadata(ch.Metadata, i),
			Vector:   vectors[i],
		}
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.store.Upsert(ctx, c.name, records); err != nil {
		return indexError("upsert", err)
	}
	c.logger.Debug("records upserted", zap.String("collection", c.name), zap.Int("count", len(records)))
	return nil
}

// recordMetadata copies meta and guarantees source and chunk_index are set.
func recordMetadata(meta models.Metadata, position int) models.Metadata {
	out := meta.Clone()
	if s, ok := out.String(models.MetaSource); !ok || s == "" {
		out[models.MetaSource] = DefaultSource
	}
	if _, ok := out.Int(models.MetaChunkIndex); !ok {
		out[models.MetaChunkIndex] = position
	}
	return out
}

// Query returns up to topK records nearest to vector, ascending by distance.
func (c *Collection) Query(ctx context.Context, vector []float32, topK int) ([]*models.QueryResult, error) {
	if topK <= 0 {
		return nil, apperr.InvalidParameter("topK must be positive, got %d", topK)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	results, err := c.store.Query(ctx, c.name, vector, topK)
	if err != nil {
		return nil, indexError("query", err)
	}
	if results == nil {
		results = []*models.QueryResult{}
	}
	return results, nil
}

// Clear drops every record and recreates the empty collection under the same name.
func (c *Collection) Clear(ctx context.Context) error {
	dropCtx, cancel := c.withTimeout(ctx)
	err := c.store.DropCollection(dropCtx, c.name)
	cancel()
	if err != nil {
		return indexError("drop collection", err)
	}
	if err := c.ensure(ctx); err != nil {
		return err
	}
	c.logger.Info("collection cleared", zap.String("collection", c.name))
	return nil
}

// Delete removes records by chunk id.
func (c *Collection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return indexError("delete", c.store.Delete(ctx, c.name, ids))
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	n, err := c.store.Count(ctx, c.name)
	if err != nil {
		return 0, indexError("count", err)
	}
	return n, nil
}

// indexError classifies backend failures; invalid parameters pass through.
func indexError(op string, err error) error {
	if err == nil || apperr.IsInvalidParameter(err) {
		return err
	}
	return apperr.NewIndexError("vector", op, err)
}
