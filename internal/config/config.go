package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Bounds for how long a feed request may wait on the user's location.
const (
	MinLocateTimeout = 5 * time.Second
	MaxLocateTimeout = 15 * time.Second
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Shop sources. At least one must be configured.
	DatabaseURL        string
	PlacesAPIKey       string
	PlacesRadiusMeters int
	PlacesTimeout      time.Duration
	FixturePath        string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxCountry   string
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	LocateTimeout time.Duration

	// Cache Gate configuration. RedisAddr switches the pool cache from the
	// in-process LRU to a shared Redis store.
	CacheTTL  time.Duration
	CacheSize int
	RedisAddr string

	// Impression publishing.
	KafkaBrokers          []string
	KafkaImpressionsTopic string
	ImpressionsEnabled    bool

	// Feed paging and sampling.
	FirstPageSize int
	PageSize      int
	MaxCategories int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	placesTimeout, err := parseDuration("PLACES_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "3m")
	if err != nil {
		return nil, err
	}
	locateTimeout, err := parseDuration("LOCATE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	if locateTimeout < MinLocateTimeout || locateTimeout > MaxLocateTimeout {
		return nil, fmt.Errorf("LOCATE_TIMEOUT must be between %s and %s", MinLocateTimeout, MaxLocateTimeout)
	}

	placesRadius, err := parsePositiveInt("PLACES_RADIUS_METERS", 5000)
	if err != nil {
		return nil, err
	}
	firstPageSize, err := parsePositiveInt("FIRST_PAGE_SIZE", 5)
	if err != nil {
		return nil, err
	}
	pageSize, err := parsePositiveInt("PAGE_SIZE", 15)
	if err != nil {
		return nil, err
	}
	maxCategories, err := parsePositiveInt("MAX_CATEGORIES", 8)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL:        os.Getenv("DATABASE_URL"),
		PlacesAPIKey:       os.Getenv("PLACES_API_KEY"),
		PlacesRadiusMeters: placesRadius,
		PlacesTimeout:      placesTimeout,
		FixturePath:        os.Getenv("SHOPS_FIXTURE"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxCountry:   sharedcfg.EnvOrDefault("MAPBOX_COUNTRY", "in"),
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseSize("MAPBOX_CACHE_SIZE", 1000),

		LocateTimeout: locateTimeout,

		CacheTTL:  cacheTTL,
		CacheSize: parseSize("CACHE_SIZE", 512),
		RedisAddr: os.Getenv("REDIS_ADDR"),

		KafkaBrokers:          sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaImpressionsTopic: sharedcfg.EnvOrDefault("KAFKA_IMPRESSIONS_TOPIC", "shop-impressions"),
		ImpressionsEnabled:    os.Getenv("IMPRESSIONS_ENABLED") == "true",

		FirstPageSize: firstPageSize,
		PageSize:      pageSize,
		MaxCategories: maxCategories,
	}

	if cfg.DatabaseURL == "" && cfg.PlacesAPIKey == "" && cfg.FixturePath == "" {
		return nil, errors.New("no shop source configured: set DATABASE_URL, PLACES_API_KEY or SHOPS_FIXTURE")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.ImpressionsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when IMPRESSIONS_ENABLED is true")
		}
		if cfg.KafkaImpressionsTopic == "" {
			return nil, errors.New("KAFKA_IMPRESSIONS_TOPIC is required when IMPRESSIONS_ENABLED is true")
		}
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

// parseSize falls back to def on unparsable input; cache sizes are advisory.
func parseSize(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
