// Command genmock reads a shop seed CSV and writes the JSON fixture served by
// the fixture source. With -db it also upserts the records into PostgreSQL.
// It uses the same parsing the service does, so the fixture matches what the
// feed would load.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/shops_patna.csv \
//	  -out data/shops_patna.json \
//	  [-db postgres://localhost/shops?sslmode=disable]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/shop-discovery/internal/adapter/fixture"
	"github.com/couchcryptid/shop-discovery/internal/adapter/postgres"
	"github.com/couchcryptid/shop-discovery/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "shop seed CSV")
	out := flag.String("out", "", "output path for the JSON fixture")
	dsn := flag.String("db", "", "optional PostgreSQL DSN to seed")
	flag.Parse()

	if *csvPath == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv, -out")
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	shops, err := fixture.ParseCSV(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", *csvPath, err)
	}
	log.Printf("parsed %d shops", len(shops))

	if err := writeJSON(*out, shops); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	if *dsn != "" {
		if err := seed(*dsn, shops); err != nil {
			return fmt.Errorf("seeding postgres: %w", err)
		}
	}

	printStats(shops)
	return nil
}

// seed upserts the rows that have a primary id; place-only rows belong to the
// external source.
func seed(dsn string, shops []domain.ShopRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	store := postgres.NewShopStore(db, slog.Default())
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	owned := make([]domain.ShopRecord, 0, len(shops))
	for i := range shops {
		if shops[i].PrimaryID != "" {
			owned = append(owned, shops[i])
		}
	}
	if err := store.InsertShops(ctx, owned); err != nil {
		return err
	}
	log.Printf("seeded %d shops into postgres", len(owned))
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type count struct {
	name string
	n    int
}

func sortedCounts(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, v := range m {
		out = append(out, count{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].name < out[j].name
	})
	return out
}

func printStats(shops []domain.ShopRecord) {
	categories := map[string]int{}
	localities := map[string]int{}
	var paid, featured, located, external int
	for i := range shops {
		s := &shops[i]
		cat := s.Category
		if cat == "" {
			cat = domain.UncategorizedLabel
		}
		categories[cat]++
		localities[s.Locality]++
		if s.IsPaid {
			paid++
		}
		if s.IsFeatured {
			featured++
		}
		if s.Coordinates != nil {
			located++
		}
		if s.PrimaryID == "" {
			external++
		}
	}
	unique := len(domain.Dedupe(shops))

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d (unique keys: %d)\n", len(shops), unique)
	fmt.Printf("Paid: %d, featured: %d\n", paid, featured)
	fmt.Printf("With coordinates: %d, place-only identity: %d\n", located, external)

	fmt.Printf("Categories (%d):", len(categories))
	for _, c := range sortedCounts(categories) {
		fmt.Printf(" %s=%d", c.name, c.n)
	}
	fmt.Println()

	fmt.Printf("Localities (%d):", len(localities))
	for _, c := range sortedCounts(localities) {
		fmt.Printf(" %s=%d", c.name, c.n)
	}
	fmt.Println()
}
