// Package places is an external shop source over the Google Places web API.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/shop-discovery/internal/domain"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// Types that say nothing about what a place sells.
var genericTypes = map[string]bool{
	"point_of_interest": true,
	"establishment":     true,
	"store":             true,
}

// Client implements domain.ShopProvider using Places nearby and text search.
// One upstream call returns at most one Places page (20 results); the
// requested feed page is sliced out of it locally.
type Client struct {
	apiKey       string
	radiusMeters int
	httpClient   *http.Client
	baseURL      string
	logger       *slog.Logger
}

func NewClient(apiKey string, radiusMeters int, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:       apiKey,
		radiusMeters: radiusMeters,
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      defaultBaseURL,
		logger:       logger,
	}
}

// FetchShops searches near the query coordinate, or by text when only a
// locality or search term is known. With neither it returns an empty page.
func (c *Client) FetchShops(ctx context.Context, q domain.ShopQuery) (domain.ShopPage, error) {
	params := url.Values{"key": {c.apiKey}}
	var endpoint string
	switch {
	case q.Coordinate != nil:
		endpoint = "/nearbysearch/json"
		params.Set("location", fmt.Sprintf("%.6f,%.6f", q.Coordinate.Lat, q.Coordinate.Lng))
		params.Set("radius", strconv.Itoa(c.radiusMeters))
		if kw := keyword(q); kw != "" {
			params.Set("keyword", kw)
		}
	case q.Locality != "" || q.SearchText != "":
		endpoint = "/textsearch/json"
		params.Set("query", textQuery(q))
	default:
		return domain.ShopPage{}, nil
	}

	results, err := c.search(ctx, c.baseURL+endpoint+"?"+params.Encode())
	if err != nil {
		return domain.ShopPage{}, err
	}

	shops := make([]domain.ShopRecord, 0, len(results))
	for i := range results {
		shop := toShop(&results[i])
		if !matches(shop, q) {
			continue
		}
		shops = append(shops, shop)
	}
	total := len(shops)
	c.logger.Debug("places search", "endpoint", endpoint, "matched", total)
	return domain.ShopPage{Shops: window(shops, q.Offset, q.PageSize), TotalAvailable: &total}, nil
}

func (c *Client) search(ctx context.Context, fullURL string) ([]place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("places API error: status %d: %s", resp.StatusCode, body)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch out.Status {
	case "OK":
		return out.Results, nil
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("places API status %s: %s", out.Status, out.ErrorMessage)
	}
}

func keyword(q domain.ShopQuery) string {
	parts := make([]string, 0, 2)
	if q.Category != "" && q.Category != domain.AllCategories {
		parts = append(parts, q.Category)
	}
	if q.SearchText != "" {
		parts = append(parts, q.SearchText)
	}
	return strings.Join(parts, " ")
}

func textQuery(q domain.ShopQuery) string {
	what := keyword(q)
	if what == "" {
		what = "shops"
	}
	if q.Locality != "" {
		return what + " in " + q.Locality
	}
	return what
}

func toShop(p *place) domain.ShopRecord {
	shop := domain.ShopRecord{
		ExternalID:  p.PlaceID,
		DisplayName: p.Name,
		Category:    categoryOf(p.Types),
		Locality:    localityOf(p),
		Rating:      p.Rating,
		ReviewCount: p.UserRatingsTotal,
	}
	if loc := p.Geometry.Location; loc.Lat != 0 || loc.Lng != 0 {
		shop.Coordinates = &domain.Coordinate{Lat: loc.Lat, Lng: loc.Lng}
	}
	return shop
}

// categoryOf turns the first specific Places type into a display label,
// e.g. "clothing_store" becomes "Clothing Store".
func categoryOf(types []string) string {
	for _, t := range types {
		if genericTypes[t] {
			continue
		}
		words := strings.Split(t, "_")
		for i, w := range words {
			if w != "" {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
		return strings.Join(words, " ")
	}
	return ""
}

// localityOf takes the last comma-separated part of the vicinity, which for
// nearby search is the town.
func localityOf(p *place) string {
	addr := p.Vicinity
	if addr == "" {
		addr = p.FormattedAddress
	}
	parts := strings.Split(addr, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

// matches applies the filters Places cannot express exactly.
func matches(shop domain.ShopRecord, q domain.ShopQuery) bool {
	if q.Category != "" && q.Category != domain.AllCategories && shop.Category != q.Category {
		return false
	}
	if q.Locality != "" && !strings.EqualFold(shop.Locality, q.Locality) {
		return false
	}
	return true
}

func window(shops []domain.ShopRecord, offset, size int) []domain.ShopRecord {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(shops) {
		return nil
	}
	end := len(shops)
	if size > 0 && offset+size < end {
		end = offset + size
	}
	return shops[offset:end]
}

// Places API response types.

type searchResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Results      []place `json:"results"`
}

type place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Types            []string `json:"types"`
	Vicinity         string   `json:"vicinity"`
	FormattedAddress string   `json:"formatted_address"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}
