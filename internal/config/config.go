package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"

	"semantic-slicer/internal/slicer"
	"semantic-slicer/internal/tokens"
)

// Config holds runtime configuration shared by every binary.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// Slicing
	MaxChunkTokenCount int    `env:"MAX_CHUNK_TOKEN_COUNT" envDefault:"1000"`
	MinChunkPercentage int    `env:"MIN_CHUNK_PERCENTAGE" envDefault:"10"`
	OverlapPercentage  int    `env:"OVERLAP_PERCENTAGE" envDefault:"0"`
	Encoding           string `env:"ENCODING" envDefault:"cl100k_base"` // "cl100k_base", "o200k_base", "words" or any tiktoken name
	Separators         string `env:"SEPARATORS" envDefault:"text"`      // "text" or "markdown"
	StripHTML          bool   `env:"STRIP_HTML" envDefault:"false"`

	// Cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"memory"` // "memory", "redis" or "none"
	CacheSize     int           `env:"CACHE_SIZE" envDefault:"1024"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres"` // "postgres" or "none"
	DBURL         string `env:"DB_URL"`

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"nats"` // "nats" or "none"
	QueueURL      string `env:"QUEUE_URL"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}

// SlicerOptions resolves the slicing fields into slicer options. Range
// checks are left to slicer.New.
func (c Config) SlicerOptions() (slicer.Options, error) {
	seps, err := slicer.SeparatorSet(c.Separators)
	if err != nil {
		return slicer.Options{}, err
	}
	counter, err := tokens.New(tokens.Encoding(c.Encoding))
	if err != nil {
		return slicer.Options{}, fmt.Errorf("failed to load encoding: %w", err)
	}
	return slicer.Options{
		MaxChunkTokenCount: c.MaxChunkTokenCount,
		MinChunkPercentage: c.MinChunkPercentage,
		OverlapPercentage:  c.OverlapPercentage,
		Separators:         seps,
		StripHTML:          c.StripHTML,
		Counter:            counter,
	}, nil
}

// Fingerprint identifies the slicing configuration, so cached results from
// a different configuration are never reused.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%d|%d|%d|%t",
		c.Encoding, c.Separators, c.MaxChunkTokenCount, c.MinChunkPercentage, c.OverlapPercentage, c.StripHTML)
}
