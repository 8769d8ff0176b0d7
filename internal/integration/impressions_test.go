//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/shop-discovery/internal/adapter/fixture"
	"github.com/couchcryptid/shop-discovery/internal/adapter/kafka"
	"github.com/couchcryptid/shop-discovery/internal/config"
	"github.com/couchcryptid/shop-discovery/internal/domain"
	"github.com/couchcryptid/shop-discovery/internal/feed"
	"github.com/couchcryptid/shop-discovery/internal/observability"
)

const testImpressionsTopic = "test-shop-impressions"

// publishedImpression holds a deserialized message read from the impressions topic.
type publishedImpression struct {
	Impression domain.Impression
	Key        string
	Headers    map[string]string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("shop-discovery-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testImpressionsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// readImpression reads a single message from the consumer and deserializes it.
func readImpression(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedImpression {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from impressions topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var imp domain.Impression
	require.NoError(t, json.Unmarshal(msg.Value, &imp), "unmarshal impression")

	return publishedImpression{Impression: imp, Key: string(msg.Key), Headers: headers}
}

// TestImpressionWriter verifies that kafka.ImpressionWriter produces keyed,
// headed messages a plain consumer can read back.
func TestImpressionWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testImpressionsTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaImpressionsTopic: testImpressionsTopic}
	writer := kafka.NewImpressionWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	servedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	imp := domain.Impression{
		ID:         "c0ffee00-0000-4000-8000-000000000001",
		ShopKey:    "id:ptn-001",
		ShopName:   "Sharma Sweets",
		Category:   "Sweets",
		IsPaid:     true,
		Position:   1,
		Page:       1,
		DistanceKm: domain.Float64(0.4),
		ServedAt:   servedAt,
	}
	require.NoError(t, writer.PublishImpressions(ctx, []domain.Impression{imp}))

	got := readImpression(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "id:ptn-001", got.Key)
	assert.Equal(t, imp.ID, got.Headers["event_id"])
	assert.Equal(t, "paid", got.Headers["placement"])
	assert.Equal(t, "1", got.Headers["position"])
	_, err := time.Parse(time.RFC3339, got.Headers["served_at"])
	assert.NoError(t, err, "served_at should be valid RFC3339")

	assert.Equal(t, "Sharma Sweets", got.Impression.ShopName)
	assert.True(t, got.Impression.ServedAt.Equal(servedAt))
	require.NotNil(t, got.Impression.DistanceKm)
	assert.InDelta(t, 0.4, *got.Impression.DistanceKm, 1e-9)
}

// TestFeedPublishesPromotedImpressions wires a feed engine over an in-memory
// fixture to a real topic and checks that only promoted shops on the first
// page are reported.
func TestFeedPublishesPromotedImpressions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testImpressionsTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaImpressionsTopic: testImpressionsTopic}
	writer := kafka.NewImpressionWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	shops := []domain.ShopRecord{
		{PrimaryID: "ptn-001", DisplayName: "Sharma Sweets", Category: "Sweets", Locality: "Patna",
			Coordinates: &domain.Coordinate{Lat: 25.5945, Lng: 85.1380}, IsPaid: true},
		{PrimaryID: "ptn-002", DisplayName: "Gupta Kirana", Category: "Grocery", Locality: "Patna",
			Coordinates: &domain.Coordinate{Lat: 25.5950, Lng: 85.1370}},
		{PrimaryID: "ptn-003", DisplayName: "Maurya Books", Category: "Books", Locality: "Patna",
			Coordinates: &domain.Coordinate{Lat: 25.5960, Lng: 85.1390}, IsFeatured: true},
	}
	metrics := observability.NewMetricsForTesting()
	engine := feed.NewEngine(feed.Options{
		Provider:    fixture.NewStore(shops),
		Impressions: writer,
		Logger:      discardLogger(),
		Metrics:     metrics,
	})

	viewer := domain.Coordinate{Lat: 25.5941, Lng: 85.1376}
	page, err := engine.Discover(ctx, feed.Request{Locator: domain.StaticLocator{Coordinate: &viewer}, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)

	consumer := newConsumer(t, broker)
	received := map[string]publishedImpression{}
	for len(received) < 2 {
		got := readImpression(ctx, t, consumer)
		received[got.Key] = got
	}

	assert.Contains(t, received, "id:ptn-001")
	assert.Contains(t, received, "id:ptn-003")
	assert.NotContains(t, received, "id:ptn-002")
	assert.Equal(t, "paid", received["id:ptn-001"].Headers["placement"])
	assert.Equal(t, "featured", received["id:ptn-003"].Headers["placement"])
	for _, got := range received {
		assert.Equal(t, 1, got.Impression.Page)
		assert.NotEmpty(t, got.Impression.ID)
	}

	// The organic shop never produces a message.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no third message on impressions topic")
}
