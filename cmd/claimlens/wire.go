package main

import (
	"context"
	"fmt"

	"github.com/openmedicaid/claimlens/internal/aggregates"
	"github.com/openmedicaid/claimlens/internal/analysis"
	"github.com/openmedicaid/claimlens/internal/cache"
	"github.com/openmedicaid/claimlens/internal/config"
	"github.com/openmedicaid/claimlens/internal/logger"
	"github.com/openmedicaid/claimlens/internal/outlier"
)

// openStore returns the configured aggregate source and a release func.
func openStore(ctx context.Context, cfg *config.Config) (aggregates.Store, func(), error) {
	switch cfg.Source.Type {
	case config.SourcePostgres:
		store, err := aggregates.NewPostgresStore(ctx, cfg.Source.PostgresDSN, cfg.Source.MaxConns, cfg.Source.SlowQuery)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to aggregate database: %w", err)
		}
		logger.Info("Reading aggregates from PostgreSQL (max %d connections)", cfg.Source.MaxConns)
		return store, store.Close, nil
	case config.SourceHTTP:
		logger.Info("Reading aggregates from %s", cfg.Source.URL)
		return aggregates.NewHTTPStore(cfg.Source.URL, cfg.Source.Timeout, cfg.Source.MaxRetries, cfg.Source.RetryDelay), func() {}, nil
	default:
		if cfg.Source.FilePath == "" {
			logger.Info("Reading aggregates from the embedded sample snapshot")
		} else {
			logger.Info("Reading aggregates from %s", cfg.Source.FilePath)
		}
		return aggregates.NewFileStore(cfg.Source.FilePath), func() {}, nil
	}
}

// openCatalog loads the curated outlier catalog.
func openCatalog(cfg *config.Config) (*outlier.Catalog, error) {
	if cfg.Analysis.CatalogFile == "" {
		return outlier.DefaultCatalog(cfg.OutlierConfig())
	}
	return outlier.LoadCatalog(cfg.Analysis.CatalogFile, cfg.OutlierConfig())
}

// openCache returns the response cache, or nil when caching is off.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	switch cfg.Cache.Type {
	case config.CacheRedis:
		c, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.Prefix,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Caching responses in Redis at %s", cfg.Cache.RedisAddr)
		return c, func() { _ = c.Close() }, nil
	case config.CacheMemory:
		return cache.NewMemory(cfg.Cache.TTL), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

// engineOptions maps configuration onto the engine. Side-effect wiring
// (store, history, cache, notifier, metrics) is left to the caller.
func engineOptions(cfg *config.Config) (analysis.Options, error) {
	catalog, err := openCatalog(cfg)
	if err != nil {
		return analysis.Options{}, fmt.Errorf("failed to load outlier catalog: %w", err)
	}
	return analysis.Options{
		Outlier: cfg.OutlierConfig(),
		Rules:   cfg.Analysis.Rules,
		Derive:  cfg.DeriveOptions(),
		Catalog: catalog,
	}, nil
}

// computeReport runs one side-effect-free computation over the configured
// source.
func computeReport(ctx context.Context, cfg *config.Config) (*analysis.Report, error) {
	opts, err := engineOptions(cfg)
	if err != nil {
		return nil, err
	}
	engine, err := analysis.New(opts)
	if err != nil {
		return nil, err
	}

	store, release, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer release()

	snap, err := store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return engine.Run(ctx, snap)
}
