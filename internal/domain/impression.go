package domain

import (
	"context"
	"time"
)

// Impression records that a promoted shop was shown to a user.
type Impression struct {
	ID         string    `json:"id"`
	ShopKey    string    `json:"shop_key"`
	ShopName   string    `json:"shop_name"`
	Category   string    `json:"category"`
	IsPaid     bool      `json:"is_paid"`
	IsFeatured bool      `json:"is_featured"`
	Position   int       `json:"position"`
	Page       int       `json:"page"`
	Filter     string    `json:"filter_category,omitempty"`
	Locality   string    `json:"filter_locality,omitempty"`
	DistanceKm *float64  `json:"distance_km,omitempty"`
	ServedAt   time.Time `json:"served_at"`
}

// ImpressionPublisher delivers impressions to an analytics sink.
type ImpressionPublisher interface {
	PublishImpressions(ctx context.Context, impressions []Impression) error
}
