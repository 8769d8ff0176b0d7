package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/shop-discovery/internal/config"
	"github.com/couchcryptid/shop-discovery/internal/domain"
)

// ImpressionWriter produces promoted-listing impressions to a Kafka topic.
// It implements domain.ImpressionPublisher.
type ImpressionWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewImpressionWriter creates a Kafka producer for the configured impressions topic.
func NewImpressionWriter(cfg *config.Config, logger *slog.Logger) *ImpressionWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaImpressionsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &ImpressionWriter{writer: w, logger: logger}
}

// PublishImpressions writes a batch in one WriteMessages call. Messages are
// keyed by shop so one shop's impressions stay on one partition.
func (w *ImpressionWriter) PublishImpressions(ctx context.Context, impressions []domain.Impression) error {
	if len(impressions) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(impressions))
	for i := range impressions {
		msg, err := serializeToMessage(impressions[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d impressions: %w", len(msgs), err)
	}
	w.logger.Debug("impressions published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *ImpressionWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Impression into a Kafka message.
func serializeToMessage(imp domain.Impression) (kafkago.Message, error) {
	data, err := json.Marshal(imp)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize impression: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(imp.ShopKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_id", Value: []byte(imp.ID)},
			{Key: "placement", Value: []byte(placement(imp))},
			{Key: "position", Value: []byte(strconv.Itoa(imp.Position))},
			{Key: "served_at", Value: []byte(imp.ServedAt.Format(time.RFC3339))},
		},
	}, nil
}

func placement(imp domain.Impression) string {
	switch {
	case imp.IsPaid && imp.IsFeatured:
		return "paid_featured"
	case imp.IsPaid:
		return "paid"
	case imp.IsFeatured:
		return "featured"
	default:
		return "organic"
	}
}
