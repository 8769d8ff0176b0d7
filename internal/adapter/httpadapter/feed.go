package httpadapter

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/shop-discovery/internal/domain"
	"github.com/couchcryptid/shop-discovery/internal/feed"
)

type locationJSON struct {
	Status string   `json:"status"`
	Lat    *float64 `json:"lat,omitempty"`
	Lng    *float64 `json:"lng,omitempty"`
}

type shopsResponse struct {
	Location locationJSON `json:"location"`
	feed.FeedPage
}

type categoriesResponse struct {
	Location locationJSON `json:"location"`
	feed.CategoryFeed
}

// handleShops serves GET /v1/shops?lat=&lng=&denied=&place=&category=&locality=&q=&page=
func (s *Server) handleShops(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.feeds.Discover(r.Context(), req)
	if err != nil {
		s.writeFeedError(w, r, err)
		return
	}
	if page.Entries == nil {
		page.Entries = []feed.Entry{}
	}
	writeJSON(w, http.StatusOK, shopsResponse{Location: toLocationJSON(page.Location), FeedPage: page})
}

// handleCategories serves GET /v1/shops/categories with the same location
// parameters; page is ignored.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.feeds.NearbyByCategory(r.Context(), req)
	if err != nil {
		s.writeFeedError(w, r, err)
		return
	}
	if out.Categories == nil {
		out.Categories = []feed.CategoryEntry{}
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Location: toLocationJSON(out.Location), CategoryFeed: out})
}

func (s *Server) writeFeedError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("feed request failed", "path", r.URL.Path, "error", err)
	if errors.Is(err, feed.ErrFetchFailed) {
		writeError(w, http.StatusBadGateway, feed.ErrFetchFailed.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) parseRequest(q url.Values) (feed.Request, error) {
	req := feed.Request{
		Filter: feed.Filter{
			Category:   q.Get("category"),
			Locality:   q.Get("locality"),
			SearchText: q.Get("q"),
		}.Normalize(),
		Page: 1,
	}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return feed.Request{}, fmt.Errorf("invalid page %q: must be a positive integer", v)
		}
		req.Page = n
	}

	loc, err := s.parseLocator(q)
	if err != nil {
		return feed.Request{}, err
	}
	req.Locator = loc
	return req, nil
}

// parseLocator builds the location chain: device coordinate first, then the
// typed place. A denial short-circuits both.
func (s *Server) parseLocator(q url.Values) (domain.Locator, error) {
	if denied, _ := strconv.ParseBool(q.Get("denied")); denied {
		return domain.StaticLocator{Denied: true}, nil
	}

	var chain domain.FirstLocator
	latS, lngS := q.Get("lat"), q.Get("lng")
	switch {
	case latS != "" && lngS != "":
		lat, errLat := strconv.ParseFloat(latS, 64)
		lng, errLng := strconv.ParseFloat(lngS, 64)
		c := domain.Coordinate{Lat: lat, Lng: lng}
		if errLat != nil || errLng != nil || !c.Valid() {
			return nil, fmt.Errorf("invalid coordinate %q,%q", latS, lngS)
		}
		chain = append(chain, domain.StaticLocator{Coordinate: &c})
	case latS != "" || lngS != "":
		return nil, errors.New("lat and lng must be given together")
	}

	if place := strings.TrimSpace(q.Get("place")); place != "" && s.geocoder != nil {
		chain = append(chain, domain.GeocodeLocator{Geocoder: s.geocoder, Query: place})
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}

func toLocationJSON(res domain.LocationResult) locationJSON {
	out := locationJSON{Status: string(res.Status)}
	if res.Coordinate != nil {
		out.Lat = &res.Coordinate.Lat
		out.Lng = &res.Coordinate.Lng
	}
	return out
}
