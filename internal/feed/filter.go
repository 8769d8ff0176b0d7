package feed

import (
	"fmt"
	"strings"

	olc "github.com/google/open-location-code/go"

	"github.com/couchcryptid/shop-discovery/internal/domain"
)

// cellCodeLength is the Open Location Code precision used to round the
// caller's position for cache keys. Length 8 is a cell of roughly 275 m.
const cellCodeLength = 8

// Filter is the set of user-chosen inputs that change which shops a feed shows.
type Filter struct {
	Category   string `json:"category,omitempty"`
	Locality   string `json:"locality,omitempty"`
	SearchText string `json:"q,omitempty"`
}

// Normalize trims whitespace and folds the "all" sentinel to an empty
// category. Categories are case-sensitive, so "All" is a real category.
func (f Filter) Normalize() Filter {
	f.Category = strings.TrimSpace(f.Category)
	if f.Category == domain.AllCategories {
		f.Category = ""
	}
	f.Locality = strings.TrimSpace(f.Locality)
	f.SearchText = strings.TrimSpace(f.SearchText)
	return f
}

// RankingContext builds the ranking inputs for this filter.
func (f Filter) RankingContext(c *domain.Coordinate) domain.RankingContext {
	f = f.Normalize()
	return domain.RankingContext{
		Coordinate:       c,
		SelectedCategory: f.Category,
		SelectedLocality: f.Locality,
	}
}

// PoolKey identifies one cached raw pool. It carries every input that changes
// what the source returns.
type PoolKey struct {
	Cell       string
	Category   string
	Locality   string
	SearchText string
	Page       int
	PageSize   int
	Offset     int
}

// NewPoolKey rounds c to its location cell and combines it with the filter and page.
func NewPoolKey(c *domain.Coordinate, f Filter, p Page) PoolKey {
	f = f.Normalize()
	return PoolKey{
		Cell:       cellOf(c),
		Category:   f.Category,
		Locality:   strings.ToLower(f.Locality),
		SearchText: strings.ToLower(f.SearchText),
		Page:       p.Number,
		PageSize:   p.Size,
		Offset:     p.Offset,
	}
}

// CacheKey implements cache.Key.
func (k PoolKey) CacheKey() string {
	return fmt.Sprintf("pool|%s|%q|%q|%q|%d|%d|%d",
		k.Cell, k.Category, k.Locality, k.SearchText, k.Page, k.PageSize, k.Offset)
}

// Query returns the source query for this key. The coordinate is the centre
// of the cell so that a cached pool depends on nothing outside the key.
func (k PoolKey) Query(f Filter) domain.ShopQuery {
	f = f.Normalize()
	q := domain.ShopQuery{
		Category:   f.Category,
		Locality:   f.Locality,
		SearchText: f.SearchText,
		Page:       k.Page,
		PageSize:   k.PageSize,
		Offset:     k.Offset,
	}
	if k.Cell != "" {
		if area, err := olc.Decode(k.Cell); err == nil {
			lat, lng := area.Center()
			q.Coordinate = &domain.Coordinate{Lat: lat, Lng: lng}
		}
	}
	return q
}

func cellOf(c *domain.Coordinate) string {
	if c == nil || !c.Valid() {
		return ""
	}
	return olc.Encode(c.Lat, c.Lng, cellCodeLength)
}
