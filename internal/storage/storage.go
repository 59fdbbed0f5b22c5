// Package storage keeps the ledger of ingested documents and their chunk ids.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/ragdoc/internal/models"
)

// ErrNotFound is returned when a document id is not in the ledger.
var ErrNotFound = errors.New("document not found")

// Ledger records which chunks belong to which ingested document. It does not
// hold vectors; the vector collection stays the source of truth for retrieval.
type Ledger interface {
	// PutDocument inserts or replaces doc together with its chunk ids.
	PutDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	// Clear removes every document and chunk entry.
	Clear(ctx context.Context) error
	Close() error
}
