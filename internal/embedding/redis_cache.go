package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCacheConfig configures a RedisCache.
type RedisCacheConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisCache shares embeddings between processes through Redis. Values are
// JSON-encoded float arrays.
type RedisCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache(ctx context.Context, cfg RedisCacheConfig, opts ...Option) (*RedisCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newRedisCache(client, cfg, opts...), nil
}

func newRedisCache(client *goredis.Client, cfg RedisCacheConfig, opts ...Option) *RedisCache {
	o := applyOptions(opts)
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "emb:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: cfg.TTL, logger: o.logger}
}

func (c *RedisCache) key(k string) string { return c.prefix + k }

// Get returns the cached embedding. Redis errors and corrupt values count as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("redis get failed, treating as miss", zap.Error(err))
		}
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("corrupt cached embedding, deleting", zap.String("key", c.key(key)), zap.Error(err))
		_ = c.client.Del(ctx, c.key(key)).Err()
		return nil, false
	}
	return vec, true
}

// Set stores the embedding with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []float32) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("key", c.key(key)), zap.Error(err))
	}
}

// Close closes the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func decodeVector(data []byte) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errors.New("empty vector")
	}
	return vec, nil
}
