package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ha1tch/minired/pkg/bootstrap"
	"github.com/ha1tch/minired/pkg/cache"
	"github.com/ha1tch/minired/pkg/config"
	"github.com/ha1tch/minired/pkg/metrics"
	"github.com/ha1tch/minired/pkg/service"
	"github.com/ha1tch/minired/pkg/storage"
	"github.com/ha1tch/minired/pkg/validation"
)

// app holds the wired components shared by every command
type app struct {
	cfg     *config.Config
	store   storage.Store
	cache   cache.Cache
	metrics *metrics.Collector
	service *service.Service
	logger  zerolog.Logger
}

func newLogger(out io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// newApp opens the configured store and cache and builds the service
func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	store, err := storage.NewStore(cfg.StorageType, cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	info := storage.Describe(store)
	logger.Info().
		Str("type", info.Type).
		Str("version", info.Version).
		Bool("persistent", info.Persistent).
		Bool("native_recommender", info.NativeRecommender).
		Bool("supports_exec", info.SupportsExec).
		Msg("Storage initialized")

	cacheInstance, err := cache.New(cfg.CacheType, cfg.CacheSize, cfg.CacheDuration(), cfg.RedisHost, cfg.RedisPort)
	if err != nil {
		if cfg.CacheType != "redis" {
			store.Close()
			return nil, err
		}
		logger.Warn().Err(err).Msg("Failed to connect to Redis, falling back to memory cache")
		cacheInstance = cache.NewMemoryCache(cfg.CacheSize, cfg.CacheDuration())
	} else {
		logger.Info().Str("type", cfg.CacheType).Msg("Cache initialized")
	}

	collector := metrics.NewCollector("minired")
	svc := service.New(store, cacheInstance, validation.NewPersonValidator(), collector, logger)

	return &app{
		cfg:     cfg,
		store:   store,
		cache:   cacheInstance,
		metrics: collector,
		service: svc,
		logger:  logger,
	}, nil
}

// bootstrap applies the configured statements and seed, if any
func (a *app) bootstrap(ctx context.Context) (bootstrap.Report, error) {
	script, err := bootstrap.Load(a.cfg.BootstrapPath, a.cfg.SeedPath, a.cfg.BootstrapContinueOnError)
	if err != nil {
		return bootstrap.Report{}, err
	}
	if script.Empty() {
		return bootstrap.Report{}, nil
	}

	a.logger.Info().
		Str("statements", a.cfg.BootstrapPath).
		Str("seed", a.cfg.SeedPath).
		Bool("continue_on_error", script.ContinueOnError).
		Msg("Applying bootstrap")
	return a.service.Bootstrap(ctx, script)
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close cache")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close storage")
	}
}
