package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"
)

const backendMilvus = "milvus"

// Field names of a ragdoc collection.
const (
	fieldID        = "id"
	fieldEmbedding = "embedding"
	fieldText      = "text"
	fieldMetadata  = "metadata"

	maxIDLength   = 64
	maxTextLength = 65535
)

// MilvusConfig holds connection settings for MilvusStore.
type MilvusConfig struct {
	Address  string
	Username string
	Password string
	Database string
}

// MilvusStore is a Store backed by a Milvus server. Collections use a VarChar
// primary key holding the chunk id and an AUTOINDEX on the embedding field.
type MilvusStore struct {
	client *milvusclient.Client
	metric Metric
	logger *zap.Logger
}

// NewMilvusStore connects to Milvus.
func NewMilvusStore(ctx context.Context, cfg MilvusConfig, metric Metric, opts ...Option) (*MilvusStore, error) {
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, apperr.NewIndexError(backendMilvus, "connect", err)
	}
	return &MilvusStore{client: c, metric: metric, logger: applyOptions(opts).logger}, nil
}

func (s *MilvusStore) metricType() entity.MetricType {
	if s.metric == MetricL2 {
		return entity.L2
	}
	return entity.COSINE
}

func collectionSchema(name string, dimensions int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("ragdoc chunks").
		WithAutoID(false).
		WithField(entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLength).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(fieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimensions))).
		WithField(entity.NewField().
			WithName(fieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxTextLength)).
		WithField(entity.NewField().
			WithName(fieldMetadata).
			WithDataType(entity.FieldTypeJSON))
}

// EnsureCollection creates, indexes and loads the collection if it does not
// exist. An existing collection must match dimensions and the store's metric.
func (s *MilvusStore) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return apperr.NewIndexError(backendMilvus, "has collection", err)
	}
	if exists {
		if err := s.verifyCollection(ctx, name, dimensions); err != nil {
			return err
		}
	} else {
		if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, collectionSchema(name, dimensions))); err != nil {
			return apperr.NewIndexError(backendMilvus, "create collection", err)
		}
		task, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, fieldEmbedding, index.NewAutoIndex(s.metricType())).WithIndexName(fieldEmbedding))
		if err != nil {
			return apperr.NewIndexError(backendMilvus, "create index", err)
		}
		if err := task.Await(ctx); err != nil {
			return apperr.NewIndexError(backendMilvus, "create index", err)
		}
		s.logger.Info("milvus collection created",
			zap.String("collection", name),
			zap.Int("dimensions", dimensions),
			zap.String("metric", string(s.metric)))
	}
	return s.load(ctx, name)
}

func (s *MilvusStore) verifyCollection(ctx context.Context, name string, dimensions int) error {
	coll, err := s.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(name))
	if err != nil {
		return apperr.NewIndexError(backendMilvus, "describe collection", err)
	}
	idx, err := s.client.DescribeIndex(ctx, milvusclient.NewDescribeIndexOption(name, fieldEmbedding))
	if err != nil {
		return apperr.NewIndexError(backendMilvus, "describe index", err)
	}
	var params map[string]string
	if idx.Index != nil {
		params = idx.Params()
	}
	if err := checkCollection(coll.Schema, params, dimensions, s.metricType()); err != nil {
		return apperr.NewIndexError(backendMilvus, "ensure collection", fmt.Errorf("collection %q: %w", name, err))
	}
	return nil
}

// checkCollection compares the embedding field and index of an existing
// collection with the dimensions and metric this store writes.
func checkCollection(schema *entity.Schema, indexParams map[string]string, dimensions int, metric entity.MetricType) error {
	if schema == nil {
		return fmt.Errorf("no schema")
	}
	var field *entity.Field
	for _, f := range schema.Fields {
		if f.Name == fieldEmbedding {
			field = f
			break
		}
	}
	if field == nil {
		return fmt.Errorf("no %s field", fieldEmbedding)
	}
	dim, err := field.GetDim()
	if err != nil {
		return fmt.Errorf("%s field: %w", fieldEmbedding, err)
	}
	if int(dim) != dimensions {
		return fmt.Errorf("collection has dimension %d, requested %d", dim, dimensions)
	}
	got := indexParams[index.MetricTypeKey]
	if !strings.EqualFold(got, string(metric)) {
		return fmt.Errorf("collection metric is %q, want %q", got, metric)
	}
	return nil
}

func (s *MilvusStore) load(ctx context.Context, name string) error {
	task, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return apperr.NewIndexError(backendMilvus, "load collection", err)
	}
	if err := task.Await(ctx); err != nil {
		return apperr.NewIndexError(backendMilvus, "load collection", err)
	}
	return nil
}

// DropCollection drops the collection; a missing collection is not an error.
func (s *MilvusStore) DropCollection(ctx context.Context, name string) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return apperr.NewIndexError(backendMilvus, "has collection", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
		return apperr.NewIndexError(backendMilvus, "drop collection", err)
	}
	return nil
}

// Upsert writes records in one request keyed by chunk id.
func (s *MilvusStore) Upsert(ctx context.Context, name string, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}
	cols, err := recordColumns(records)
	if err != nil {
		return apperr.NewIndexError(backendMilvus, "upsert", err)
	}
	if _, err := s.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(name, cols...)); err != nil {
		return apperr.NewIndexError(backendMilvus, "upsert", err)
	}
	return nil
}

// recordColumns converts records to id, embedding, text and metadata columns.
func recordColumns(records []*models.Record) ([]column.Column, error) {
	dim := len(records[0].Vector)
	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	texts := make([]string, len(records))
	metas := make([][]byte, len(records))
	for i, r := range records {
		if len(r.Vector) != dim {
			return nil, fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", r.ID, len(r.Vector), dim)
		}
		if len(r.ID) > maxIDLength {
			return nil, fmt.Errorf("id %q exceeds %d bytes", r.ID, maxIDLength)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata for %s: %w", r.ID, err)
		}
		ids[i] = r.ID
		vectors[i] = r.Vector
		texts[i] = r.Text
		metas[i] = meta
	}
	return []column.Column{
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnFloatVector(fieldEmbedding, dim, vectors),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnJSONBytes(fieldMetadata, metas),
	}, nil
}

// Query searches the embedding field and converts scores to distances.
func (s *MilvusStore) Query(ctx context.Context, name string, vector []float32, topK int) ([]*models.QueryResult, error) {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return nil, apperr.NewIndexError(backendMilvus, "has collection", err)
	}
	if !exists {
		return []*models.QueryResult{}, nil
	}
	if err := s.load(ctx, name); err != nil {
		return nil, err
	}
	results, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		name,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(fieldEmbedding).
		WithOutputFields(fieldText, fieldMetadata))
	if err != nil {
		return nil, apperr.NewIndexError(backendMilvus, "search", err)
	}
	if len(results) == 0 {
		return []*models.QueryResult{}, nil
	}
	rs := results[0]
	out, err := toQueryResults(rs.ResultCount, rs.IDs, rs.Fields, rs.Scores, s.metric)
	if err != nil {
		return nil, apperr.NewIndexError(backendMilvus, "search", err)
	}
	return out, nil
}

// toQueryResults maps one search result set to QueryResults. COSINE scores
// are similarities and become 1 - score; L2 scores are already squared
// distances.
func toQueryResults(count int, ids column.Column, fields []column.Column, scores []float32, metric Metric) ([]*models.QueryResult, error) {
	out := make([]*models.QueryResult, count)
	for i := range out {
		out[i] = &models.QueryResult{Metadata: models.Metadata{}}
		if i < len(scores) {
			out[i].Distance = scoreToDistance(scores[i], metric)
		}
	}
	if idCol, ok := ids.(*column.ColumnVarChar); ok {
		for i, id := range idCol.Data() {
			if i < count {
				out[i].ID = id
			}
		}
	}
	for _, field := range fields {
		switch col := field.(type) {
		case *column.ColumnVarChar:
			if col.Name() != fieldText {
				continue
			}
			for i, text := range col.Data() {
				if i < count {
					out[i].Text = text
				}
			}
		case *column.ColumnJSONBytes:
			if col.Name() != fieldMetadata {
				continue
			}
			for i, raw := range col.Data() {
				if i >= count || len(raw) == 0 {
					continue
				}
				var meta models.Metadata
				if err := json.Unmarshal(raw, &meta); err != nil {
					return nil, fmt.Errorf("decode metadata: %w", err)
				}
				out[i].Metadata = meta
			}
		}
	}
	return out, nil
}

func scoreToDistance(score float32, metric Metric) float64 {
	if metric == MetricL2 {
		return float64(score)
	}
	return 1 - float64(score)
}

// Delete removes records by chunk id.
func (s *MilvusStore) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(name).WithStringIDs(fieldID, ids)); err != nil {
		return apperr.NewIndexError(backendMilvus, "delete", err)
	}
	return nil
}

// Count returns the row count reported by collection statistics.
func (s *MilvusStore) Count(ctx context.Context, name string) (int64, error) {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return 0, apperr.NewIndexError(backendMilvus, "has collection", err)
	}
	if !exists {
		return 0, nil
	}
	stats, err := s.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(name))
	if err != nil {
		return 0, apperr.NewIndexError(backendMilvus, "collection stats", err)
	}
	val, ok := stats["row_count"]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, apperr.NewIndexError(backendMilvus, "collection stats", err)
	}
	return n, nil
}

// Close closes the Milvus connection.
func (s *MilvusStore) Close() error {
	return s.client.Close(context.Background())
}
