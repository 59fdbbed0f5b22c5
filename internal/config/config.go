// Package config provides configuration loading and structs for the ragdoc server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Vector     VectorConfig     `yaml:"vector"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	UploadDir      string        `yaml:"upload_dir"`
	MaxUploadMB    int64         `yaml:"max_upload_mb" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ChunkingConfig holds segmentation settings, in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// RetrievalConfig holds query settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" validate:"gt=0"`
}

// VectorConfig selects the vector index backend. Metric must match the
// embedding model: cosine for normalized text embeddings, l2 otherwise.
type VectorConfig struct {
	Backend    string        `yaml:"backend" validate:"oneof=memory milvus"`
	Collection string        `yaml:"collection" validate:"required"`
	Metric     string        `yaml:"metric" validate:"oneof=cosine l2"`
	Dimensions int           `yaml:"dimensions" validate:"gt=0"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
	Milvus     MilvusConfig  `yaml:"milvus"`
}

// MilvusConfig holds Milvus connection settings.
type MilvusConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string      `yaml:"provider" validate:"oneof=gemini openai mock"`
	Model      string      `yaml:"model"`
	Dimensions int         `yaml:"dimensions" validate:"gte=0"`
	BatchSize  int         `yaml:"batch_size" validate:"gt=0"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Type  string        `yaml:"type" validate:"oneof=none memory redis"`
	Size  int           `yaml:"size" validate:"gte=0"`
	TTL   time.Duration `yaml:"ttl" validate:"gte=0"`
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the shared embedding cache.
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0"`
	KeyPrefix string `yaml:"key_prefix"`
}

// GenerationConfig holds answer generation settings.
type GenerationConfig struct {
	Provider string `yaml:"provider" validate:"oneof=gemini openai mock"`
	Model    string `yaml:"model"`
}

// ProvidersConfig holds credentials and call policy shared by embedding and generation.
type ProvidersConfig struct {
	GeminiAPIKey  string        `yaml:"gemini_api_key"`
	OpenAIAPIKey  string        `yaml:"openai_api_key"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	Retry         RetryConfig   `yaml:"retry"`
}

// RetryConfig configures provider retries. MaxAttempts 1 disables retrying.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" validate:"gte=1"`
	InitialInterval time.Duration `yaml:"initial_interval" validate:"gte=0"`
	MaxInterval     time.Duration `yaml:"max_interval" validate:"gte=0"`
}

// LedgerConfig holds the document ledger location.
type LedgerConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults and
// environment overrides, expands paths, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	cfg.Ledger.DatabasePath = expandPath(cfg.Ledger.DatabasePath, configDir)
	if cfg.Server.UploadDir != "" {
		cfg.Server.UploadDir = expandPath(cfg.Server.UploadDir, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration built from defaults, .env and
// the environment only.
func Default() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg := &Config{}
	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Vector.Backend == "milvus" && c.Vector.Milvus.Address == "" {
		return errors.New("invalid config: vector.milvus.address is required for the milvus backend")
	}
	if c.Embedding.Cache.Type == "redis" && c.Embedding.Cache.Redis.Address == "" {
		return errors.New("invalid config: embedding.cache.redis.address is required for the redis cache")
	}
	return nil
}

// ApplyEnv overrides secrets and endpoints with environment variables when set.
func ApplyEnv(cfg *Config) {
	if v := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		cfg.Providers.GeminiAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Providers.OpenAIBaseURL = v
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		cfg.Vector.Milvus.Address = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		cfg.Embedding.Cache.Redis.Address = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// SaveWatchDirectories rewrites watch.directories in the config file at path
// and leaves every other key as written, so secrets taken from the environment
// and applied defaults never reach the file. Entries that still resolve to the
// same directory keep their original spelling. A missing file is created.
func SaveWatchDirectories(path string, dirs []string) error {
	var doc yaml.Node
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode}
	}
	if len(doc.Content) == 0 {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("failed to update config: %s is not a mapping", path)
	}

	watch := mappingValue(root, "watch")
	if watch == nil || watch.Kind != yaml.MappingNode {
		watch = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setMappingValue(root, "watch", watch)
	}

	spelled := make(map[string]string)
	if prev := mappingValue(watch, "directories"); prev != nil && prev.Kind == yaml.SequenceNode {
		configDir := filepath.Dir(path)
		for _, n := range prev.Content {
			spelled[expandPath(n.Value, configDir)] = n.Value
		}
	}
	list := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, d := range dirs {
		if orig, ok := spelled[d]; ok {
			d = orig
		}
		list.Content = append(list.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: d})
	}
	setMappingValue(watch, "directories", list)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
