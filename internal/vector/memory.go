package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/hyperjump/ragdoc/internal/models"
)

const backendMemory = "memory"

// MemoryStore is an in-memory Store using brute-force search.
// Suitable for tests and local development; nothing is persisted.
type MemoryStore struct {
	metric      Metric
	collections map[string]*memCollection
	mu          sync.RWMutex
}

type memCollection struct {
	dimensions int
	records    map[string]*models.Record
}

// NewMemoryStore creates an empty store ranking by metric.
func NewMemoryStore(metric Metric) *MemoryStore {
	return &MemoryStore{
		metric:      metric,
		collections: make(map[string]*memCollection),
	}
}

// EnsureCollection creates the collection if it does not exist.
func (m *MemoryStore) EnsureCollection(_ context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return apperr.InvalidParameter("dimensions must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		if c.dimensions != dimensions {
			return apperr.NewIndexError(backendMemory, "ensure collection",
				fmt.Errorf("collection %s has dimension %d, requested %d", name, c.dimensions, dimensions))
		}
		return nil
	}
	m.collections[name] = &memCollection{dimensions: dimensions, records: make(map[string]*models.Record)}
	return nil
}

// DropCollection removes the collection and all its records.
func (m *MemoryStore) DropCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

// Upsert writes all records or none. The last write for an id wins.
func (m *MemoryStore) Upsert(_ context.Context, name string, records []*models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return apperr.NewIndexError(backendMemory, "upsert", fmt.Errorf("collection %s does not exist", name))
	}
	for _, r := range records {
		if len(r.Vector) != c.dimensions {
			return apperr.NewIndexError(backendMemory, "upsert",
				fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", r.ID, len(r.Vector), c.dimensions))
		}
	}
	for _, r := range records {
		c.records[r.ID] = &models.Record{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata.Clone(),
			Vector:   append([]float32(nil), r.Vector...),
		}
	}
	return nil
}

// Query returns the topK nearest records.
func (m *MemoryStore) Query(_ context.Context, name string, vector []float32, topK int) ([]*models.QueryResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok || len(c.records) == 0 || topK <= 0 {
		return []*models.QueryResult{}, nil
	}
	if len(vector) != c.dimensions {
		return nil, apperr.NewIndexError(backendMemory, "query",
			fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), c.dimensions))
	}
	results := make([]*models.QueryResult, 0, len(c.records))
	for _, r := range c.records {
		results = append(results, &models.QueryResult{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata.Clone(),
			Distance: m.metric.Distance(vector, r.Vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes records by id; unknown ids are ignored.
func (m *MemoryStore) Delete(_ context.Context, name string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(c.records, id)
	}
	return nil
}

// Count returns the number of records in the collection.
func (m *MemoryStore) Count(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return 0, nil
	}
	return int64(len(c.records)), nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}
