// Package models defines core data structures for chunks, index records, and answers.
package models

import (
	"encoding/json"
	"time"
)

// Metadata keys written by the pipeline.
const (
	MetaChunkIndex = "chunk_index"
	MetaStartPos   = "start_pos"
	MetaEndPos     = "end_pos"
	MetaSource     = "source"
	MetaFilename   = "filename"
	MetaUploadDate = "upload_date"
	MetaDocumentID = "document_id"
)

// Metadata holds scalar values (string, bool, int, int64, float64) attached to a chunk.
type Metadata map[string]any

// Clone returns a shallow copy; nil yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Int returns the integer value stored under key. Values decoded from JSON
// arrive as float64 or json.Number and are accepted too.
func (m Metadata) Int(key string) (int, bool) {
	switch n := m[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// String returns the string value stored under key.
func (m Metadata) String(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// Chunk is one segment of a source document. Immutable once created.
type Chunk struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Record is the persisted form of a chunk inside the vector index.
type Record struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Metadata Metadata  `json:"metadata"`
	Vector   []float32 `json:"-"`
}

// Document is a ledger entry for one ingested source.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Source     string    `json:"source"`
	UploadedAt time.Time `json:"uploaded_at"`
	ChunkIDs   []string  `json:"chunk_ids"`
	Metadata   Metadata  `json:"metadata,omitempty"`
}

// IngestResult is returned by the ingest boundary.
type IngestResult struct {
	DocumentID string   `json:"document_id"`
	Filename   string   `json:"filename"`
	Chunks     int      `json:"chunks"`
	ChunkIDs   []string `json:"chunk_ids"`
	// Skipped is set when a file was unchanged since its last ingest.
	Skipped bool `json:"skipped,omitempty"`
}
