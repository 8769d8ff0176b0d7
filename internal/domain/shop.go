package domain

import (
	"context"
	"math"
)

// AllCategories is the category filter sentinel meaning "no category filter".
const AllCategories = "all"

// Coordinate is a WGS-84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are finite and within range.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// ShopRecord is a discoverable business as supplied by a shop source.
type ShopRecord struct {
	PrimaryID   string      `json:"id,omitempty"`
	ExternalID  string      `json:"place_id,omitempty"`
	DisplayName string      `json:"name"`
	Category    string      `json:"category"`
	Locality    string      `json:"city,omitempty"`
	Coordinates *Coordinate `json:"coordinates,omitempty"`
	Rating      float64     `json:"rating,omitempty"`
	ReviewCount int         `json:"review_count,omitempty"`
	IsPaid      bool        `json:"is_paid,omitempty"`
	IsFeatured  bool        `json:"is_featured,omitempty"`

	// PrecomputedDistanceKm is set by sources that already know the caller's
	// location. It takes precedence over coordinate-based distance.
	PrecomputedDistanceKm *float64 `json:"distance_km,omitempty"`
}

// RankingContext holds the per-request ranking inputs. It is built fresh for
// every ranking call and never stored.
type RankingContext struct {
	Coordinate       *Coordinate
	SelectedCategory string // "" or AllCategories disables the category key
	SelectedLocality string // "" disables the locality key
}

// categoryFilter returns the selected category, or "" when none applies.
func (c RankingContext) categoryFilter() string {
	if c.SelectedCategory == AllCategories {
		return ""
	}
	return c.SelectedCategory
}

// RankedEntry is a shop annotated for display after ranking.
type RankedEntry struct {
	Shop       ShopRecord `json:"shop"`
	Key        string     `json:"key"`
	DistanceKm *float64   `json:"distance_km,omitempty"`
}

// ShopQuery is the request sent to a shop source. Offset is the number of
// records that precede Page; pages are not uniformly sized.
type ShopQuery struct {
	Coordinate *Coordinate
	Category   string
	Locality   string
	SearchText string
	Page       int
	PageSize   int
	Offset     int
}

// ShopPage is one page of results from a shop source.
type ShopPage struct {
	Shops          []ShopRecord `json:"shops"`
	TotalAvailable *int         `json:"total_available,omitempty"`
}

// ShopProvider supplies raw shop pools. An empty page with a nil error is a
// valid terminal result.
type ShopProvider interface {
	FetchShops(ctx context.Context, q ShopQuery) (ShopPage, error)
}

// Float64 returns a pointer to v. Handy for optional distance fields.
func Float64(v float64) *float64 {
	return &v
}
