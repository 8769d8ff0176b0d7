package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shop-discovery/internal/cache"
)

func unreachableStore(t *testing.T) *Store[string] {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore[string](client, "test:", time.Minute)
}

func TestStore_UnreachableGetIsErrorNotMiss(t *testing.T) {
	s := unreachableStore(t)

	_, ok, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "redis get")
}

func TestStore_UnreachableSetAndReadiness(t *testing.T) {
	s := unreachableStore(t)

	err := s.Set(context.Background(), "k", cache.Entry[string]{Value: "v", StoredAt: time.Now()})
	require.Error(t, err)
	require.Error(t, s.CheckReadiness(context.Background()))
}

func TestStore_GateTreatsStoreErrorsAsMiss(t *testing.T) {
	gate := cache.NewGate[string](unreachableStore(t), cache.Options{Name: "pool"})

	calls := 0
	v, err := gate.GetOrCompute(context.Background(), cache.StringKey("k"), time.Minute, func(context.Context) (string, error) {
		calls++
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, 1, calls)
}
