package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"semantic-slicer/internal/slicer"
)

type memoryEntry struct {
	chunks    []slicer.Chunk
	expiresAt time.Time
}

// MemoryCache keeps the most recently used results in process.
type MemoryCache struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryCache creates an LRU cache holding at most size results.
func NewMemoryCache(size int) (*MemoryCache, error) {
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &MemoryCache{entries: entries, now: time.Now}, nil
}

// Get returns a copy of the cached chunks unless they have expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]slicer.Chunk, bool, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.entries.Remove(key)
		return nil, false, nil
	}
	return stripMetadata(entry.chunks), true, nil
}

// Set stores a copy of chunks. A non-positive ttl never expires.
func (c *MemoryCache) Set(_ context.Context, key string, chunks []slicer.Chunk, ttl time.Duration) error {
	entry := memoryEntry{chunks: stripMetadata(chunks)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries.Add(key, entry)
	return nil
}

// Len reports the number of cached results.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.entries.Purge()
	return nil
}
