package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"semantic-slicer/internal/slicer"
)

// Cache stores slicing results keyed by Key. Cached chunks carry no
// metadata; callers attach the request's metadata on a hit.
type Cache interface {
	// Get returns the cached chunks for key and whether they were found.
	Get(ctx context.Context, key string) ([]slicer.Chunk, bool, error)

	// Set stores chunks under key for ttl.
	Set(ctx context.Context, key string, chunks []slicer.Chunk, ttl time.Duration) error

	// Close releases the cache connection.
	Close() error
}

// Key derives the cache key for one slicing request. The fingerprint must
// identify the slicer configuration.
func Key(fingerprint, header, content string) string {
	h := sha256.New()
	for _, part := range []string{fingerprint, header, content} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// stripMetadata returns a copy of chunks without metadata.
func stripMetadata(chunks []slicer.Chunk) []slicer.Chunk {
	out := make([]slicer.Chunk, len(chunks))
	for i, c := range chunks {
		c.Metadata = nil
		out[i] = c
	}
	return out
}
