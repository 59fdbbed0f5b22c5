// Package vector provides the vector index: a Collection that embeds chunks
// and delegates storage and nearest-neighbour search to a backend Store.
package vector

import (
	"context"

	"github.com/hyperjump/ragdoc/internal/models"
)

// Store is a vector index backend. Query returns up to topK records
// ascending by distance under the store's metric; a missing collection
// yields no results. DropCollection on a missing collection succeeds.
type Store interface {
	EnsureCollection(ctx context.Context, name string, dimensions int) error
	DropCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, name string, records []*models.Record) error
	Query(ctx context.Context, name string, vector []float32, topK int) ([]*models.QueryResult, error)
	Delete(ctx context.Context, name string, ids []string) error
	Count(ctx context.Context, name string) (int64, error)
	Close() error
}
