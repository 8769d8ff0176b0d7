// Command browse walks a discovery feed from the terminal the way a scrolling
// client would: it loads page after page through a feed session until the
// source runs dry or -pages is reached.
//
// Usage:
//
//	SHOPS_FIXTURE=data/shops_patna.json go run ./cmd/browse -lat 25.5941 -lng 85.1376 -category Sweets
//	go run ./cmd/browse -place "Boring Road, Patna" -categories
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/shop-discovery/internal/app"
	"github.com/couchcryptid/shop-discovery/internal/config"
	"github.com/couchcryptid/shop-discovery/internal/domain"
	"github.com/couchcryptid/shop-discovery/internal/feed"
	"github.com/couchcryptid/shop-discovery/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	lat := flag.Float64("lat", 0, "latitude of the viewer")
	lng := flag.Float64("lng", 0, "longitude of the viewer")
	place := flag.String("place", "", "typed place to geocode when no coordinate is given")
	denied := flag.Bool("denied", false, "simulate a viewer who refused location access")
	category := flag.String("category", "", "category filter")
	locality := flag.String("locality", "", "locality filter")
	search := flag.String("q", "", "search text")
	pages := flag.Int("pages", 3, "maximum pages to load")
	categories := flag.Bool("categories", false, "print the nearest shop per category instead of the feed")
	verbose := flag.Bool("v", false, "log to stderr")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, observability.NewMetricsForTesting())
	if err != nil {
		return err
	}
	defer a.Close()

	locator := buildLocator(*lat, *lng, *place, *denied, a.Geocoder)
	filter := feed.Filter{Category: *category, Locality: *locality, SearchText: *search}.Normalize()

	if *categories {
		out, err := a.Engine.NearbyByCategory(ctx, feed.Request{Locator: locator, Filter: filter})
		if err != nil {
			return err
		}
		printLocation(out.Location)
		for _, c := range out.Categories {
			fmt.Printf("%-16s %s\n", c.Category, describe(c.Entry))
		}
		return nil
	}

	session := a.Engine.NewSession(locator, filter)
	for n := 0; n < *pages && session.HasMore(); n++ {
		entries, err := session.LoadMore(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			if loc, ok := session.Location(); ok {
				printLocation(loc)
			}
		}
		fmt.Printf("--- page %d (%d shops) ---\n", n+1, len(entries))
		for _, e := range entries {
			fmt.Println(describe(e))
		}
	}
	if !session.HasMore() {
		fmt.Println("--- end of feed ---")
	}
	return nil
}

func buildLocator(lat, lng float64, place string, denied bool, geocoder domain.Geocoder) domain.Locator {
	if denied {
		return domain.StaticLocator{Denied: true}
	}
	var chain domain.FirstLocator
	if lat != 0 || lng != 0 {
		chain = append(chain, domain.StaticLocator{Coordinate: &domain.Coordinate{Lat: lat, Lng: lng}})
	}
	if place != "" && geocoder != nil {
		chain = append(chain, domain.GeocodeLocator{Geocoder: geocoder, Query: place})
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

func printLocation(loc domain.LocationResult) {
	if loc.Coordinate != nil {
		fmt.Printf("location: %s (%.5f, %.5f)\n", loc.Status, loc.Coordinate.Lat, loc.Coordinate.Lng)
		return
	}
	fmt.Printf("location: %s\n", loc.Status)
}

func describe(e feed.Entry) string {
	badge := ""
	switch {
	case e.Shop.IsPaid:
		badge = " [sponsored]"
	case e.Shop.IsFeatured:
		badge = " [featured]"
	}
	where := e.Shop.Locality
	if e.DistanceText != "" {
		where = fmt.Sprintf("%s, %s away, %s", e.Shop.Locality, e.DistanceText, e.ETAText)
	}
	return fmt.Sprintf("  %-32s %-14s %s%s", e.Shop.DisplayName, e.Shop.Category, where, badge)
}
