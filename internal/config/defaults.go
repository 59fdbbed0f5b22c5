package config

import "time"

// DefaultConfigPath is where the CLI looks for its config first.
const DefaultConfigPath = "/usr/local/etc/ragdoc/config.yaml"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
		if cfg.Chunking.ChunkOverlap == 0 {
			cfg.Chunking.ChunkOverlap = 200
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "pdf_collection"
	}
	if cfg.Vector.Metric == "" {
		cfg.Vector.Metric = "cosine"
	}
	if cfg.Vector.Dimensions == 0 {
		cfg.Vector.Dimensions = 768
	}
	if cfg.Vector.Timeout == 0 {
		cfg.Vector.Timeout = 30 * time.Second
	}
	if cfg.Vector.Backend == "milvus" && cfg.Vector.Milvus.Address == "" {
		cfg.Vector.Milvus.Address = "localhost:19530"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = cfg.Vector.Dimensions
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Embedding.Cache.Type == "" {
		cfg.Embedding.Cache.Type = "none"
	}
	if cfg.Embedding.Cache.Size == 0 {
		cfg.Embedding.Cache.Size = 10000
	}
	if cfg.Embedding.Cache.TTL == 0 {
		cfg.Embedding.Cache.TTL = 24 * time.Hour
	}
	if cfg.Embedding.Cache.Redis.KeyPrefix == "" {
		cfg.Embedding.Cache.Redis.KeyPrefix = "emb:"
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = cfg.Embedding.Provider
	}
	if cfg.Providers.Timeout == 0 {
		cfg.Providers.Timeout = 60 * time.Second
	}
	if cfg.Providers.Retry.MaxAttempts == 0 {
		cfg.Providers.Retry.MaxAttempts = 1
	}
	if cfg.Providers.Retry.InitialInterval == 0 {
		cfg.Providers.Retry.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Providers.Retry.MaxInterval == 0 {
		cfg.Providers.Retry.MaxInterval = 10 * time.Second
	}
	if cfg.Ledger.DatabasePath == "" {
		cfg.Ledger.DatabasePath = "./data/ragdoc.db"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".txt", ".md", ".docx", ".xlsx", ".pptx", ".odp", ".ods"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
