package domain

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(entries []RankedEntry) []string {
	out := make([]string, len(entries))
	for i := range entries {
		out[i] = entries[i].Key
	}
	return out
}

func TestRank_NoCoordinate_PaidFirst(t *testing.T) {
	nearby := Coordinate{Lat: 25.61, Lng: 85.14}
	shops := []ShopRecord{
		{PrimaryID: "a", Category: "Cafe", Coordinates: &nearby},
		{PrimaryID: "b", Category: "Cafe", IsPaid: true},
		{PrimaryID: "c", Category: "Cafe", Coordinates: &nearby},
		{PrimaryID: "d", Category: "Cafe", IsPaid: true, Coordinates: &nearby},
	}

	out := Rank(shops, RankingContext{})

	assert.Equal(t, []string{"id:b", "id:d", "id:a", "id:c"}, keys(out))
	for _, e := range out {
		assert.Nil(t, e.DistanceKm)
	}
}

func TestRank_KnownDistanceBeforeUnknown(t *testing.T) {
	shops := []ShopRecord{
		{PrimaryID: "unknown", IsPaid: true, IsFeatured: true, Rating: 5},
		{PrimaryID: "far", PrecomputedDistanceKm: Float64(40)},
	}

	out := Rank(shops, RankingContext{Coordinate: &patna})

	assert.Equal(t, []string{"id:far", "id:unknown"}, keys(out))
	require.NotNil(t, out[0].DistanceKm)
	assert.InDelta(t, 40, *out[0].DistanceKm, 1e-9)
}

func TestRank_BucketThenTieBreaks(t *testing.T) {
	shops := []ShopRecord{
		{PrimaryID: "b0-plain", PrecomputedDistanceKm: Float64(0.1)},
		{PrimaryID: "b0-paid", PrecomputedDistanceKm: Float64(0.45), IsPaid: true},
		{PrimaryID: "b05-featured", PrecomputedDistanceKm: Float64(0.5), IsFeatured: true, IsPaid: true},
		{PrimaryID: "b0-featured", PrecomputedDistanceKm: Float64(0.3), IsFeatured: true},
		{PrimaryID: "b0-rated", PrecomputedDistanceKm: Float64(0.35), Rating: 4.8},
	}

	out := Rank(shops, RankingContext{Coordinate: &patna})

	assert.Equal(t, []string{
		"id:b0-paid",
		"id:b0-featured",
		"id:b0-rated",
		"id:b0-plain",
		"id:b05-featured",
	}, keys(out))
}

func TestRank_LocalityMatchCaseInsensitive(t *testing.T) {
	shops := []ShopRecord{
		{PrimaryID: "gaya", Locality: "Gaya", IsPaid: true},
		{PrimaryID: "patna", Locality: "Patna City"},
	}

	out := Rank(shops, RankingContext{SelectedLocality: "patna"})
	assert.Equal(t, []string{"id:patna", "id:gaya"}, keys(out))

	out = Rank(shops, RankingContext{})
	assert.Equal(t, []string{"id:gaya", "id:patna"}, keys(out), "no locality selected")
}

func TestRank_CategoryMatchIsExact(t *testing.T) {
	shops := []ShopRecord{
		{PrimaryID: "lower", Category: "cafe", IsPaid: true},
		{PrimaryID: "exact", Category: "Cafe"},
	}

	out := Rank(shops, RankingContext{SelectedCategory: "Cafe"})
	assert.Equal(t, []string{"id:exact", "id:lower"}, keys(out))

	out = Rank(shops, RankingContext{SelectedCategory: AllCategories})
	assert.Equal(t, []string{"id:lower", "id:exact"}, keys(out), "all sentinel disables the key")
}

func TestRank_LocalityBeforeCategory(t *testing.T) {
	shops := []ShopRecord{
		{PrimaryID: "cat", Category: "Gym", Locality: "Gaya"},
		{PrimaryID: "loc", Category: "Cafe", Locality: "Patna"},
	}
	out := Rank(shops, RankingContext{SelectedCategory: "Gym", SelectedLocality: "Patna"})
	assert.Equal(t, []string{"id:loc", "id:cat"}, keys(out))
}

func TestRank_ExactDistanceLastTieBreak(t *testing.T) {
	shops := []ShopRecord{
		{PrimaryID: "far", PrecomputedDistanceKm: Float64(1.4), Rating: 4},
		{PrimaryID: "near", PrecomputedDistanceKm: Float64(1.1), Rating: 4},
	}
	out := Rank(shops, RankingContext{Coordinate: &patna})
	assert.Equal(t, []string{"id:near", "id:far"}, keys(out))
}

func TestRank_StableForEqualKeys(t *testing.T) {
	shops := make([]ShopRecord, 20)
	for i := range shops {
		shops[i] = ShopRecord{
			PrimaryID:             fmt.Sprintf("s%02d", i),
			Category:              "Cafe",
			Rating:                3,
			PrecomputedDistanceKm: Float64(2.2),
		}
	}

	out := Rank(shops, RankingContext{Coordinate: &patna, SelectedCategory: "Cafe"})

	for i := range out {
		assert.Equal(t, fmt.Sprintf("id:s%02d", i), out[i].Key)
	}
}

func TestRank_DoesNotModifyInput(t *testing.T) {
	shops := []ShopRecord{
		{PrimaryID: "a"},
		{PrimaryID: "b", IsPaid: true},
	}
	_ = Rank(shops, RankingContext{})
	assert.Equal(t, "a", shops[0].PrimaryID)
	assert.Equal(t, "b", shops[1].PrimaryID)
}

func TestRank_BucketsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	shops := make([]ShopRecord, 200)
	for i := range shops {
		c := Coordinate{
			Lat: patna.Lat + (rng.Float64()-0.5)*0.2,
			Lng: patna.Lng + (rng.Float64()-0.5)*0.2,
		}
		shops[i] = ShopRecord{
			PrimaryID:   fmt.Sprintf("s%d", i),
			Coordinates: &c,
			IsPaid:      rng.Intn(4) == 0,
			IsFeatured:  rng.Intn(5) == 0,
			Rating:      float64(rng.Intn(11)) / 2,
		}
	}

	out := Rank(shops, RankingContext{Coordinate: &patna})

	require.Len(t, out, len(shops))
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1].DistanceKm, out[i].DistanceKm
		require.NotNil(t, prev)
		require.NotNil(t, cur)
		assert.LessOrEqual(t, DistanceBucket(*prev), DistanceBucket(*cur))
	}
}

func TestDistanceBucket(t *testing.T) {
	assert.InDelta(t, 0.0, DistanceBucket(0.49), 1e-9)
	assert.InDelta(t, 0.5, DistanceBucket(0.5), 1e-9)
	assert.InDelta(t, 2.0, DistanceBucket(2.3), 1e-9)
	assert.InDelta(t, 2.5, DistanceBucket(2.99), 1e-9)
}
