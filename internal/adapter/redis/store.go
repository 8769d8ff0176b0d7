// Package redis is a shared cache.Store so pool caching survives restarts and
// is shared between replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/shop-discovery/internal/cache"
)

// NewClient creates a go-redis client with service pool settings.
func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// Store keeps JSON-encoded cache entries under prefix. Keys expire after
// expiry so abandoned entries do not accumulate; freshness itself is judged
// by the Gate from Entry.StoredAt.
type Store[V any] struct {
	client *goredis.Client
	prefix string
	expiry time.Duration
}

func NewStore[V any](client *goredis.Client, prefix string, expiry time.Duration) *Store[V] {
	return &Store[V]{client: client, prefix: prefix, expiry: expiry}
}

var _ cache.Store[int] = (*Store[int])(nil)

func (s *Store[V]) Get(ctx context.Context, key string) (cache.Entry[V], bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return cache.Entry[V]{}, false, nil
	}
	if err != nil {
		return cache.Entry[V]{}, false, fmt.Errorf("redis get: %w", err)
	}
	var e cache.Entry[V]
	if err := json.Unmarshal(data, &e); err != nil {
		return cache.Entry[V]{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return e, true, nil
}

func (s *Store[V]) Set(ctx context.Context, key string, e cache.Entry[V]) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.expiry).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store[V]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// CheckReadiness pings Redis.
func (s *Store[V]) CheckReadiness(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
