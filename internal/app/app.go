// Package app wires configuration into a running feed engine: shop sources,
// the pool cache, geocoding, and impression publishing.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/shop-discovery/internal/adapter/fixture"
	kafkaadapter "github.com/couchcryptid/shop-discovery/internal/adapter/kafka"
	"github.com/couchcryptid/shop-discovery/internal/adapter/mapbox"
	"github.com/couchcryptid/shop-discovery/internal/adapter/places"
	"github.com/couchcryptid/shop-discovery/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/shop-discovery/internal/adapter/redis"
	"github.com/couchcryptid/shop-discovery/internal/cache"
	"github.com/couchcryptid/shop-discovery/internal/config"
	"github.com/couchcryptid/shop-discovery/internal/domain"
	"github.com/couchcryptid/shop-discovery/internal/feed"
	"github.com/couchcryptid/shop-discovery/internal/observability"
)

// App holds the wired engine and everything that must be closed with it.
type App struct {
	Engine   *feed.Engine
	Geocoder domain.Geocoder // nil when geocoding is disabled

	closers []namedCloser
	logger  *slog.Logger
}

type namedCloser struct {
	name  string
	close func() error
}

// Build constructs the engine from cfg. On error everything opened so far is
// closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{logger: logger}

	sources, err := a.sources(ctx, cfg, logger, metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxCountry, cfg.MapboxTimeout, metrics, logger)
		a.Geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var impressions domain.ImpressionPublisher
	if cfg.ImpressionsEnabled {
		writer := kafkaadapter.NewImpressionWriter(cfg, logger)
		a.closers = append(a.closers, namedCloser{"kafka writer", writer.Close})
		impressions = writer
		metrics.ImpressionsEnabled.Set(1)
		logger.Info("impression publishing enabled", "topic", cfg.KafkaImpressionsTopic)
	}

	a.Engine = feed.NewEngine(feed.Options{
		Provider:      feed.NewMultiProvider(logger, sources...),
		Pools:         a.poolCache(cfg, logger, metrics),
		CacheTTL:      cfg.CacheTTL,
		LocateTimeout: cfg.LocateTimeout,
		Policy:        feed.PagePolicy{FirstPageSize: cfg.FirstPageSize, PageSize: cfg.PageSize},
		MaxCategories: cfg.MaxCategories,
		Impressions:   impressions,
		Logger:        logger,
		Metrics:       metrics,
	})
	return a, nil
}

// sources opens every configured shop source, system of record first.
func (a *App) sources(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) ([]feed.NamedProvider, error) {
	var out []feed.NamedProvider

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, namedCloser{"postgres", db.Close})
		store := postgres.NewShopStore(db, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		out = append(out, feed.NamedProvider{Name: "postgres", Provider: feed.Instrument("postgres", store, metrics)})
	}

	if cfg.PlacesAPIKey != "" {
		client := places.NewClient(cfg.PlacesAPIKey, cfg.PlacesRadiusMeters, cfg.PlacesTimeout, logger)
		out = append(out, feed.NamedProvider{Name: "places", Provider: feed.Instrument("places", client, metrics)})
	}

	if cfg.FixturePath != "" {
		store, err := fixture.Load(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		logger.Info("fixture loaded", "path", cfg.FixturePath, "shops", store.Len())
		out = append(out, feed.NamedProvider{Name: "fixture", Provider: feed.Instrument("fixture", store, metrics)})
	}

	if len(out) == 0 {
		return nil, errors.New("no shop source configured")
	}
	return out, nil
}

// poolCache picks Redis when configured so replicas share pools, otherwise an
// in-process LRU.
func (a *App) poolCache(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *cache.Gate[domain.ShopPage] {
	opts := cache.Options{Name: "pool", Logger: logger, Lookups: metrics.CacheLookups}

	if cfg.RedisAddr != "" {
		client := redisadapter.NewClient(cfg.RedisAddr)
		a.closers = append(a.closers, namedCloser{"redis", client.Close})
		logger.Info("pool cache using redis", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		// Keys outlive the freshness window; the Gate judges age.
		return cache.NewGate[domain.ShopPage](redisadapter.NewStore[domain.ShopPage](client, "shop-discovery:", 2*cfg.CacheTTL), opts)
	}

	logger.Info("pool cache in memory", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	return cache.NewGate[domain.ShopPage](cache.NewMemoryStore[domain.ShopPage](cfg.CacheSize), opts)
}

// Close releases every opened resource, logging failures.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Error(fmt.Sprintf("%s close error", c.name), "error", err)
		}
	}
	a.closers = nil
}
