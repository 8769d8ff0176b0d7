package fixture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/couchcryptid/shop-discovery/internal/domain"
)

// CSVHeader is the column layout ParseCSV expects. Columns may appear in any
// order; only name is required.
var CSVHeader = []string{
	"id", "place_id", "name", "category", "city", "lat", "lng",
	"rating", "review_count", "is_paid", "is_featured",
}

// Namespace for IDs minted from shop names.
var idNamespace = uuid.MustParse("9a4f3c2e-5b1d-4e8a-9c7f-2d6b8e1a0f35")

// ParseCSV reads shop records from CSV with a header row. Rows with neither
// id nor place_id get a deterministic id from MintID.
func ParseCSV(r io.Reader) ([]domain.ShopRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["name"]; !ok {
		return nil, errors.New("csv header has no name column")
	}

	var shops []domain.ShopRecord
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		shop, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		shops = append(shops, shop)
	}
	return shops, nil
}

// MintID derives a stable id from a shop's name and locality.
func MintID(shop domain.ShopRecord) string {
	seed := strings.ToLower(strings.TrimSpace(shop.DisplayName)) + "|" + strings.ToLower(strings.TrimSpace(shop.Locality))
	return uuid.NewSHA1(idNamespace, []byte(seed)).String()
}

func parseRow(row []string, idx map[string]int) (domain.ShopRecord, error) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	shop := domain.ShopRecord{
		PrimaryID:   get("id"),
		ExternalID:  get("place_id"),
		DisplayName: get("name"),
		Category:    get("category"),
		Locality:    get("city"),
	}

	latS, lngS := get("lat"), get("lng")
	if latS != "" || lngS != "" {
		lat, err := strconv.ParseFloat(latS, 64)
		if err != nil {
			return shop, fmt.Errorf("lat %q: %w", latS, err)
		}
		lng, err := strconv.ParseFloat(lngS, 64)
		if err != nil {
			return shop, fmt.Errorf("lng %q: %w", lngS, err)
		}
		shop.Coordinates = &domain.Coordinate{Lat: lat, Lng: lng}
	}

	var err error
	if v := get("rating"); v != "" {
		if shop.Rating, err = strconv.ParseFloat(v, 64); err != nil {
			return shop, fmt.Errorf("rating %q: %w", v, err)
		}
	}
	if v := get("review_count"); v != "" {
		if shop.ReviewCount, err = strconv.Atoi(v); err != nil {
			return shop, fmt.Errorf("review_count %q: %w", v, err)
		}
	}
	if shop.IsPaid, err = parseFlag(get("is_paid")); err != nil {
		return shop, fmt.Errorf("is_paid: %w", err)
	}
	if shop.IsFeatured, err = parseFlag(get("is_featured")); err != nil {
		return shop, fmt.Errorf("is_featured: %w", err)
	}

	if shop.PrimaryID == "" && shop.ExternalID == "" {
		shop.PrimaryID = MintID(shop)
	}
	return shop, nil
}

func parseFlag(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
