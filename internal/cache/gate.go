// Package cache provides a TTL-bounded, request-coalescing cache in front of
// expensive lookups such as remote shop queries and geocoding.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// Key identifies a cached value. Equal queries must produce equal keys.
type Key interface {
	CacheKey() string
}

// StringKey is a Key for callers that already hold a canonical string.
type StringKey string

func (k StringKey) CacheKey() string { return string(k) }

// Entry is a stored value and the time it was stored.
type Entry[V any] struct {
	Value    V         `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// Store is the backing storage behind a Gate.
type Store[V any] interface {
	Get(ctx context.Context, key string) (Entry[V], bool, error)
	Set(ctx context.Context, key string, e Entry[V]) error
	Delete(ctx context.Context, key string) error
}

const defaultComputeTimeout = 30 * time.Second

// Options configures a Gate. Zero values fall back to a real clock, the
// default logger and a 30s compute timeout.
type Options struct {
	Name    string
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Lookups *prometheus.CounterVec // labels: cache, result

	// ComputeTimeout bounds a shared compute call. It runs detached from the
	// caller that started it.
	ComputeTimeout time.Duration
}

// Gate returns a fresh cached value when one exists and otherwise runs the
// compute function, storing only successful results.
type Gate[V any] struct {
	store   Store[V]
	name    string
	clock   clockwork.Clock
	logger  *slog.Logger
	lookups *prometheus.CounterVec
	timeout time.Duration
	group   singleflight.Group
}

// NewGate wraps store with TTL freshness checks and request coalescing.
func NewGate[V any](store Store[V], opts Options) *Gate[V] {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = defaultComputeTimeout
	}
	return &Gate[V]{
		store:   store,
		name:    opts.Name,
		clock:   opts.Clock,
		logger:  opts.Logger,
		lookups: opts.Lookups,
		timeout: opts.ComputeTimeout,
	}
}

// GetOrCompute returns the stored value for key if it is younger than ttl.
// Otherwise it runs compute, stores a successful result and returns it.
// Concurrent callers for the same key share one compute call; a caller whose
// ctx ends stops waiting without cancelling it. Errors are returned to every
// waiting caller and never stored. A ttl of zero or less
// bypasses the cache.
func (g *Gate[V]) GetOrCompute(ctx context.Context, key Key, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	if ttl <= 0 {
		g.observe("bypass")
		return compute(ctx)
	}

	k := key.CacheKey()
	if v, ok := g.lookup(ctx, k, ttl); ok {
		g.observe("hit")
		return v, nil
	}
	g.observe("miss")

	ch := g.group.DoChan(k, func() (any, error) {
		// One caller's cancellation must not fail the other waiters.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()

		// Another caller may have filled the key while we waited.
		if v, ok := g.lookup(ctx, k, ttl); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return v, err
		}
		entry := Entry[V]{Value: v, StoredAt: g.clock.Now()}
		if err := g.store.Set(ctx, k, entry); err != nil {
			g.logger.Warn("cache store failed", "cache", g.name, "error", err)
		}
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Invalidate removes key so the next request recomputes it.
func (g *Gate[V]) Invalidate(ctx context.Context, key Key) error {
	return g.store.Delete(ctx, key.CacheKey())
}

func (g *Gate[V]) lookup(ctx context.Context, k string, ttl time.Duration) (V, bool) {
	var zero V
	entry, ok, err := g.store.Get(ctx, k)
	if err != nil {
		g.logger.Warn("cache read failed", "cache", g.name, "error", err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	if g.clock.Since(entry.StoredAt) >= ttl {
		return zero, false
	}
	return entry.Value, true
}

func (g *Gate[V]) observe(result string) {
	if g.lookups != nil {
		g.lookups.WithLabelValues(g.name, result).Inc()
	}
}
