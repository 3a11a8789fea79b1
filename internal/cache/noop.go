package cache

import (
	"context"
	"time"

	"semantic-slicer/internal/slicer"
)

// NoOpCache is a cache implementation that does nothing.
// Used when caching is disabled - all operations succeed
// but no actual caching occurs (always cache miss).
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache instance
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always reports a miss
func (c *NoOpCache) Get(ctx context.Context, key string) ([]slicer.Chunk, bool, error) {
	return nil, false, nil
}

// Set does nothing and always succeeds
func (c *NoOpCache) Set(ctx context.Context, key string, chunks []slicer.Chunk, ttl time.Duration) error {
	return nil
}

// Close does nothing and always succeeds
func (c *NoOpCache) Close() error {
	return nil
}
