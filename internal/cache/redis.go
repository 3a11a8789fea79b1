package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"semantic-slicer/internal/slicer"
)

// Key prefix for cached slicing results
const cacheKeyPrefix = "slice:"

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{
		client: client,
	}, nil
}

// Get retrieves cached chunks by key
func (c *RedisCache) Get(ctx context.Context, key string) ([]slicer.Chunk, bool, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var chunks []slicer.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, false, fmt.Errorf("decode cached chunks: %w", err)
	}
	return chunks, true, nil
}

// Set stores chunks with TTL
func (c *RedisCache) Set(ctx context.Context, key string, chunks []slicer.Chunk, ttl time.Duration) error {
	data, err := json.Marshal(stripMetadata(chunks))
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+key, data, ttl).Err()
}

// Close closes the cache connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
