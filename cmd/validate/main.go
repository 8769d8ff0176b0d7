// Command validate checks a shop fixture end to end: that it matches its seed
// CSV, that its records are clean, and that the feed built on it pages,
// deduplicates and samples correctly.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/shops_patna.csv \
//	  -fixture data/shops_patna.json \
//	  [-lat 25.5941 -lng 85.1376]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/shop-discovery/internal/adapter/fixture"
	"github.com/couchcryptid/shop-discovery/internal/domain"
	"github.com/couchcryptid/shop-discovery/internal/feed"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "shop seed CSV")
	fixturePath := flag.String("fixture", "", "JSON fixture generated from the CSV")
	lat := flag.Float64("lat", 25.5941, "viewer latitude for feed checks")
	lng := flag.Float64("lng", 85.1376, "viewer longitude for feed checks")
	flag.Parse()

	if *csvPath == "" || *fixturePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *fixturePath, domain.Coordinate{Lat: *lat, Lng: *lng}); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, fixturePath string, viewer domain.Coordinate) int {
	fmt.Println("=== Shop Fixture Validation ===")
	fmt.Println()

	seed, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV: %v\n", err)
		return 1
	}

	data, err := os.ReadFile(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read fixture: %v\n", err)
		return 1
	}
	shops, err := fixture.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSourceParity(seed, shops),
		validateRecords(shops),
		validateFeedPaging(shops, viewer),
		validateCategorySample(shops, viewer),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d CSV, %d fixture\n", len(seed), len(shops))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadCSV(path string) ([]domain.ShopRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fixture.ParseCSV(f)
}

// ── Phase 1: Source Parity ──
// The fixture must be exactly what the CSV parses to.

func validateSourceParity(seed, shops []domain.ShopRecord) *phase {
	p := &phase{name: "Phase 1: Source Parity (CSV vs fixture)"}
	if len(seed) != len(shops) {
		p.errorf("count mismatch: CSV=%d fixture=%d", len(seed), len(shops))
	}
	for i := range min(len(seed), len(shops)) {
		if diff := cmp.Diff(seed[i], shops[i]); diff != "" {
			p.errorf("record %d (%s) differs (-csv +fixture):\n%s", i, seed[i].DisplayName, diff)
		}
	}
	return p
}

// ── Phase 2: Record Integrity ──

func validateRecords(shops []domain.ShopRecord) *phase {
	p := &phase{name: "Phase 2: Record Integrity"}
	for i := range shops {
		s := shops[i]
		if err := domain.ValidateShop(s); err != nil {
			p.errorf("record %d: %v", i, err)
		}
		if s.Coordinates != nil && !s.Coordinates.Valid() {
			p.errorf("record %d (%s): coordinate out of range: %+v", i, s.DisplayName, *s.Coordinates)
		}
		if s.PrecomputedDistanceKm != nil {
			p.errorf("record %d (%s): fixtures must not carry distance_km", i, s.DisplayName)
		}
	}
	return p
}

// ── Phase 3: Feed Paging ──
// Walk the whole feed and check sizes and cross-page uniqueness.

func validateFeedPaging(shops []domain.ShopRecord, viewer domain.Coordinate) *phase {
	p := &phase{name: "Phase 3: Feed Paging"}
	engine := newEngine(shops)
	ctx := context.Background()

	session := engine.NewSession(domain.StaticLocator{Coordinate: &viewer}, feed.Filter{})
	seen := map[string]int{}
	pageNum := 0
	for session.HasMore() {
		pageNum++
		entries, err := session.LoadMore(ctx)
		if err != nil {
			p.errorf("page %d: %v", pageNum, err)
			return p
		}
		if want := engine.Policy().SizeFor(pageNum); len(entries) > want {
			p.errorf("page %d has %d entries, page size is %d", pageNum, len(entries), want)
		}
		for _, e := range entries {
			if prev, dup := seen[e.Key]; dup {
				p.errorf("key %s on page %d already shown on page %d", e.Key, pageNum, prev)
			}
			seen[e.Key] = pageNum
		}
		if pageNum > len(shops)+1 {
			p.errorf("feed did not terminate after %d pages", pageNum)
			return p
		}
	}

	unique := len(domain.Dedupe(shops))
	if len(seen) != unique {
		p.errorf("feed showed %d shops, fixture has %d unique", len(seen), unique)
	}
	fmt.Printf("Feed: %d pages, %d shops\n", pageNum, len(seen))
	return p
}

// ── Phase 4: Category Sample ──

func validateCategorySample(shops []domain.ShopRecord, viewer domain.Coordinate) *phase {
	p := &phase{name: "Phase 4: Category Sample"}
	engine := newEngine(shops)

	out, err := engine.NearbyByCategory(context.Background(), feed.Request{
		Locator: domain.StaticLocator{Coordinate: &viewer},
	})
	if err != nil {
		p.errorf("sample: %v", err)
		return p
	}

	seen := map[string]bool{}
	last := -1.0
	for _, c := range out.Categories {
		if seen[c.Category] {
			p.errorf("category %q sampled twice", c.Category)
		}
		seen[c.Category] = true
		if d := c.Entry.DistanceKm; d != nil {
			if *d < last {
				p.errorf("category %q (%.2f km) listed after a farther one (%.2f km)", c.Category, *d, last)
			}
			last = *d
		}
	}
	fmt.Printf("Categories sampled: %d\n", len(out.Categories))
	return p
}

func newEngine(shops []domain.ShopRecord) *feed.Engine {
	return feed.NewEngine(feed.Options{
		Provider: fixture.NewStore(shops),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}
