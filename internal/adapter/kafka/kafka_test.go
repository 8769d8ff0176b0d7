package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shop-discovery/internal/config"
	"github.com/couchcryptid/shop-discovery/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	imp := domain.Impression{
		ID:         "3f2b7c1e-0000-4000-8000-000000000001",
		ShopKey:    "id:42",
		ShopName:   "Sharma Sweets",
		Category:   "Sweets",
		IsPaid:     true,
		Position:   2,
		Page:       1,
		DistanceKm: domain.Float64(0.8),
		ServedAt:   now,
	}

	msg, err := serializeToMessage(imp)
	require.NoError(t, err)

	assert.Equal(t, []byte("id:42"), msg.Key)
	assert.Contains(t, string(msg.Value), `"shop_name":"Sharma Sweets"`)
	require.Len(t, msg.Headers, 4)
	assert.Equal(t, "event_id", msg.Headers[0].Key)
	assert.Equal(t, []byte(imp.ID), msg.Headers[0].Value)
	assert.Equal(t, "placement", msg.Headers[1].Key)
	assert.Equal(t, []byte("paid"), msg.Headers[1].Value)
	assert.Equal(t, []byte("2"), msg.Headers[2].Value)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[3].Value)

	var decoded domain.Impression
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, imp.ShopKey, decoded.ShopKey)
	require.NotNil(t, decoded.DistanceKm)
	assert.InDelta(t, 0.8, *decoded.DistanceKm, 1e-9)
}

func TestPlacement(t *testing.T) {
	tests := []struct {
		paid, featured bool
		want           string
	}{
		{true, true, "paid_featured"},
		{true, false, "paid"},
		{false, true, "featured"},
		{false, false, "organic"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, placement(domain.Impression{IsPaid: tt.paid, IsFeatured: tt.featured}))
	}
}

func TestPublishImpressions_EmptyBatchIsNoop(t *testing.T) {
	w := NewImpressionWriter(&config.Config{KafkaBrokers: []string{"localhost:1"}, KafkaImpressionsTopic: "shop-impressions"}, slog.Default())
	defer w.Close()

	require.NoError(t, w.PublishImpressions(context.Background(), nil))
}
