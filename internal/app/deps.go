package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"semantic-slicer/internal/cache"
	"semantic-slicer/internal/config"
	"semantic-slicer/internal/logger"
	"semantic-slicer/internal/queue"
	"semantic-slicer/internal/slicer"
	"semantic-slicer/internal/store"
)

// Deps bundles common runtime dependencies for services.
// Store and Queue are nil when their provider is "none".
type Deps struct {
	Config config.Config
	Log    *slog.Logger
	Slicer *slicer.Slicer
	Cache  cache.Cache
	Store  store.Store
	Queue  queue.Queue

	closers []func() error
}

// Build loads env, config, and shared components. A missing .env file is
// not an error.
func Build() (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	return New(cfg, logger.New(cfg.LogLevel))
}

// New builds the shared components for cfg.
func New(cfg config.Config, log *slog.Logger) (Deps, error) {
	deps := Deps{Config: cfg, Log: log}

	opts, err := cfg.SlicerOptions()
	if err != nil {
		return Deps{}, fmt.Errorf("failed to resolve slicer options: %w", err)
	}
	if deps.Slicer, err = slicer.New(opts); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize slicer: %w", err)
	}

	if deps.Cache, err = buildCache(cfg, log); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	deps.closers = append(deps.closers, deps.Cache.Close)

	st, err := buildStore(cfg, log)
	if err != nil {
		_ = deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	if st != nil {
		deps.Store = st
		deps.closers = append(deps.closers, st.Close)
	}

	q, nc, err := buildQueue(cfg, log)
	if err != nil {
		_ = deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	if q != nil {
		deps.Queue = q
		deps.closers = append(deps.closers, nc.Drain)
	}
	return deps, nil
}

// Close releases every connection opened by New, newest first.
func (d Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "memory":
		c, err := cache.NewMemoryCache(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		log.Info("using in-memory cache", "size", cfg.CacheSize)
		return c, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when CACHE_PROVIDER=redis")
		}
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		log.Info("using Redis cache")
		return c, nil
	case "none":
		log.Info("caching disabled")
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: memory, redis, none)", cfg.CacheProvider)
	}
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	case "none":
		log.Info("document store disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: postgres, none)", cfg.StoreProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, *nats.Conn, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nc, nil
	case "none":
		log.Info("task queue disabled")
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: nats, none)", cfg.QueueProvider)
	}
}
