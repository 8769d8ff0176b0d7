package mapbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/shop-discovery/internal/cache"
	"github.com/couchcryptid/shop-discovery/internal/domain"
	"github.com/couchcryptid/shop-discovery/internal/observability"
)

// Place names move rarely; a day keeps the cache useful without pinning
// renamed localities forever.
const geocodeTTL = 24 * time.Hour

var errNoMatch = errors.New("no geocoding match")

// CachedGeocoder wraps a Geocoder with an in-memory LRU Cache Gate.
type CachedGeocoder struct {
	inner domain.Geocoder
	gate  *cache.Gate[domain.GeocodingResult]
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return newCachedGeocoder(inner, maxEntries, metrics, clockwork.NewRealClock())
}

func newCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics, clock clockwork.Clock) *CachedGeocoder {
	return &CachedGeocoder{
		inner: inner,
		gate: cache.NewGate[domain.GeocodingResult](cache.NewMemoryStore[domain.GeocodingResult](maxEntries), cache.Options{
			Name:    "geocode",
			Clock:   clock,
			Lookups: metrics.CacheLookups,
		}),
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	key := cache.StringKey("fwd:" + strings.ToLower(strings.TrimSpace(query)))
	result, err := c.gate.GetOrCompute(ctx, key, geocodeTTL, func(ctx context.Context) (domain.GeocodingResult, error) {
		result, err := c.inner.ForwardGeocode(ctx, query)
		if err != nil {
			return result, err
		}
		// Misses are not stored so a transient "not found" can be retried.
		if !result.Found() {
			return result, errNoMatch
		}
		return result, nil
	})
	if errors.Is(err, errNoMatch) {
		return domain.GeocodingResult{}, nil
	}
	return result, err
}
