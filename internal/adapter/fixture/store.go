// Package fixture serves shops from a JSON file. It backs local development,
// demos and the browse command when no database or Places key is configured.
package fixture

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/shop-discovery/internal/domain"
)

// Store implements domain.ShopProvider over an in-memory list of shops.
// It is read-only after construction.
type Store struct {
	shops []domain.ShopRecord
}

// Load reads a JSON array of shop records from path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	shops, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewStore(shops), nil
}

// Decode parses fixture JSON.
func Decode(data []byte) ([]domain.ShopRecord, error) {
	var shops []domain.ShopRecord
	if err := json.Unmarshal(data, &shops); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return shops, nil
}

func NewStore(shops []domain.ShopRecord) *Store {
	return &Store{shops: slices.Clone(shops)}
}

// Len returns the number of records in the fixture.
func (s *Store) Len() int { return len(s.shops) }

// FetchShops filters, orders nearest first when a coordinate is given, and
// returns the window at q.Offset. Distances in the file are ignored; they are
// recomputed for the caller.
func (s *Store) FetchShops(ctx context.Context, q domain.ShopQuery) (domain.ShopPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ShopPage{}, err
	}

	type candidate struct {
		shop domain.ShopRecord
		km   float64
		ok   bool
	}
	var matched []candidate
	for _, shop := range s.shops {
		if !matches(shop, q) {
			continue
		}
		shop.PrecomputedDistanceKm = nil
		c := candidate{shop: shop}
		if q.Coordinate != nil {
			c.km, c.ok = domain.ResolveDistance(shop, q.Coordinate)
			if c.ok {
				c.shop.PrecomputedDistanceKm = domain.Float64(c.km)
			}
		}
		matched = append(matched, c)
	}

	if q.Coordinate != nil {
		slices.SortStableFunc(matched, func(a, b candidate) int {
			switch {
			case a.ok && !b.ok:
				return -1
			case !a.ok && b.ok:
				return 1
			case a.ok && b.ok:
				return cmp.Compare(a.km, b.km)
			}
			return 0
		})
	}

	total := len(matched)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.PageSize > 0 {
		end = min(start+q.PageSize, total)
	}
	page := domain.ShopPage{TotalAvailable: &total}
	for _, c := range matched[start:end] {
		page.Shops = append(page.Shops, c.shop)
	}
	return page, nil
}

func matches(shop domain.ShopRecord, q domain.ShopQuery) bool {
	if q.Category != "" && q.Category != domain.AllCategories && shop.Category != q.Category {
		return false
	}
	if q.Locality != "" && !strings.EqualFold(shop.Locality, q.Locality) {
		return false
	}
	if q.SearchText != "" {
		needle := strings.ToLower(q.SearchText)
		if !strings.Contains(strings.ToLower(shop.DisplayName), needle) &&
			!strings.Contains(strings.ToLower(shop.Category), needle) {
			return false
		}
	}
	return true
}
