package domain

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

// DistanceBucket quantizes km into 0.5 km steps so that shops at practically
// the same distance are ordered by the finer keys instead.
func DistanceBucket(km float64) float64 {
	return math.Floor(km*2) / 2
}

// rankItem caches everything the comparator needs so each key is computed once.
type rankItem struct {
	entry         RankedEntry
	distanceKm    float64
	hasDistance   bool
	localityMatch bool
	categoryMatch bool
}

// Rank orders shops for display. The sort is stable, so shops equal on every
// key keep their input order. The input slice is not modified.
func Rank(shops []ShopRecord, ctx RankingContext) []RankedEntry {
	locality := strings.ToLower(strings.TrimSpace(ctx.SelectedLocality))
	category := ctx.categoryFilter()

	items := make([]rankItem, len(shops))
	for i := range shops {
		shop := shops[i]
		item := rankItem{entry: RankedEntry{Shop: shop, Key: ResolveKey(shop)}}

		if d, ok := ResolveDistance(shop, ctx.Coordinate); ok {
			item.distanceKm = d
			item.hasDistance = true
			item.entry.DistanceKm = Float64(d)
		}
		if locality != "" {
			item.localityMatch = strings.Contains(strings.ToLower(shop.Locality), locality)
		}
		if category != "" {
			item.categoryMatch = shop.Category == category
		}
		items[i] = item
	}

	slices.SortStableFunc(items, compareRankItems)

	out := make([]RankedEntry, len(items))
	for i := range items {
		out[i] = items[i].entry
	}
	return out
}

func compareRankItems(a, b rankItem) int {
	if c := preferTrue(a.hasDistance, b.hasDistance); c != 0 {
		return c
	}
	if a.hasDistance {
		if c := cmp.Compare(DistanceBucket(a.distanceKm), DistanceBucket(b.distanceKm)); c != 0 {
			return c
		}
	}
	if c := preferTrue(a.localityMatch, b.localityMatch); c != 0 {
		return c
	}
	if c := preferTrue(a.categoryMatch, b.categoryMatch); c != 0 {
		return c
	}
	if c := preferTrue(a.entry.Shop.IsPaid, b.entry.Shop.IsPaid); c != 0 {
		return c
	}
	if c := preferTrue(a.entry.Shop.IsFeatured, b.entry.Shop.IsFeatured); c != 0 {
		return c
	}
	if c := cmp.Compare(b.entry.Shop.Rating, a.entry.Shop.Rating); c != 0 {
		return c
	}
	if a.hasDistance {
		return cmp.Compare(a.distanceKm, b.distanceKm)
	}
	return 0
}

// preferTrue orders true before false.
func preferTrue(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}
