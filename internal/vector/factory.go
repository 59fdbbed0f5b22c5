package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/ragdoc/internal/config"
)

// Backend represents the type of vector store to use.
type Backend string

const (
	// BackendMemory uses in-memory brute-force search. Good for tests and local runs.
	BackendMemory Backend = backendMemory
	// BackendMilvus uses a Milvus server.
	BackendMilvus Backend = backendMilvus
)

// NewStore creates the store selected by cfg.Backend.
// Supported backends: "memory" (default), "milvus".
func NewStore(ctx context.Context, cfg config.VectorConfig, opts ...Option) (Store, error) {
	metric, err := ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	switch Backend(cfg.Backend) {
	case BackendMemory, "":
		return NewMemoryStore(metric), nil
	case BackendMilvus:
		connectCtx, cancel := context.WithTimeout(ctx, timeoutOr(cfg))
		defer cancel()
		return NewMilvusStore(connectCtx, MilvusConfig{
			Address:  cfg.Milvus.Address,
			Username: cfg.Milvus.Username,
			Password: cfg.Milvus.Password,
			Database: cfg.Milvus.Database,
		}, metric, opts...)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: memory, milvus)", cfg.Backend)
	}
}

func timeoutOr(cfg config.VectorConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return 30 * time.Second
}
