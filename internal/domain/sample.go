package domain

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

// UncategorizedLabel names the group of shops whose category is blank. The
// group is keyed apart from a real category of the same name and is capped to
// one representative like any other category.
const UncategorizedLabel = "Uncategorized"

// CategorySample is the representative shop chosen for one category.
type CategorySample struct {
	Category string      `json:"category"`
	Entry    RankedEntry `json:"entry"`
}

// SampleByCategory picks the closest shop per category from an already
// deduplicated pool. A later shop replaces the representative only when it is
// strictly closer; unknown distance counts as infinitely far. The result is
// ordered by representative distance and holds at most maxCategories samples.
func SampleByCategory(entries []RankedEntry, maxCategories int) []CategorySample {
	if maxCategories <= 0 || len(entries) == 0 {
		return []CategorySample{}
	}

	type rep struct {
		sample   CategorySample
		distance float64
	}
	type bucket struct {
		category string
		blank    bool
	}
	var reps []rep
	index := make(map[bucket]int)

	for i := range entries {
		category := entries[i].Shop.Category
		key := bucket{category: category}
		if strings.TrimSpace(category) == "" {
			category = UncategorizedLabel
			key = bucket{blank: true}
		}
		distance := math.Inf(1)
		if d := entries[i].DistanceKm; d != nil {
			distance = *d
		}

		idx, ok := index[key]
		if !ok {
			index[key] = len(reps)
			reps = append(reps, rep{
				sample:   CategorySample{Category: category, Entry: entries[i]},
				distance: distance,
			})
			continue
		}
		if distance < reps[idx].distance {
			reps[idx].sample.Entry = entries[i]
			reps[idx].distance = distance
		}
	}

	slices.SortStableFunc(reps, func(a, b rep) int {
		return cmp.Compare(a.distance, b.distance)
	})

	n := min(maxCategories, len(reps))
	out := make([]CategorySample, n)
	for i := 0; i < n; i++ {
		out[i] = reps[i].sample
	}
	return out
}
