package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrLocationDenied is returned by locators when the user refused to share a location.
	ErrLocationDenied = errors.New("location access denied")
	// ErrLocationUnavailable is returned when no location source could answer.
	ErrLocationUnavailable = errors.New("location unavailable")
)

// LocationStatus is the outcome of a location lookup.
type LocationStatus string

const (
	LocationFound       LocationStatus = "found"
	LocationDenied      LocationStatus = "denied"
	LocationTimeout     LocationStatus = "timeout"
	LocationUnavailable LocationStatus = "unavailable"
)

// LocationResult carries a coordinate only when Status is LocationFound.
type LocationResult struct {
	Status     LocationStatus
	Coordinate *Coordinate
}

// Locator resolves the caller's position.
type Locator interface {
	Locate(ctx context.Context) (Coordinate, error)
}

// Locate runs loc with a hard deadline. It never returns an error: every
// failure degrades to a result without a coordinate.
func Locate(ctx context.Context, loc Locator, timeout time.Duration, logger *slog.Logger) LocationResult {
	if loc == nil {
		return LocationResult{Status: LocationUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		coord Coordinate
		err   error
	}
	ch := make(chan answer, 1)
	go func() {
		c, err := loc.Locate(ctx)
		ch <- answer{coord: c, err: err}
	}()

	select {
	case <-ctx.Done():
		logger.Warn("location lookup timed out", "timeout", timeout)
		return LocationResult{Status: LocationTimeout}
	case a := <-ch:
		switch {
		case errors.Is(a.err, ErrLocationDenied):
			return LocationResult{Status: LocationDenied}
		case errors.Is(a.err, context.DeadlineExceeded):
			logger.Warn("location lookup timed out", "timeout", timeout)
			return LocationResult{Status: LocationTimeout}
		case a.err != nil:
			logger.Warn("location lookup failed", "error", a.err)
			return LocationResult{Status: LocationUnavailable}
		case !a.coord.Valid():
			logger.Warn("location lookup returned invalid coordinate", "lat", a.coord.Lat, "lng", a.coord.Lng)
			return LocationResult{Status: LocationUnavailable}
		}
		c := a.coord
		return LocationResult{Status: LocationFound, Coordinate: &c}
	}
}

// StaticLocator returns a coordinate supplied by the client device, if any.
type StaticLocator struct {
	Coordinate *Coordinate
	Denied     bool
}

func (s StaticLocator) Locate(_ context.Context) (Coordinate, error) {
	if s.Denied {
		return Coordinate{}, ErrLocationDenied
	}
	if s.Coordinate == nil {
		return Coordinate{}, ErrLocationUnavailable
	}
	return *s.Coordinate, nil
}

// GeocodeLocator resolves a typed place name through a Geocoder.
type GeocodeLocator struct {
	Geocoder Geocoder
	Query    string
}

func (g GeocodeLocator) Locate(ctx context.Context) (Coordinate, error) {
	query := strings.TrimSpace(g.Query)
	if g.Geocoder == nil || query == "" {
		return Coordinate{}, ErrLocationUnavailable
	}
	result, err := g.Geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		return Coordinate{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	if !result.Found() {
		return Coordinate{}, ErrLocationUnavailable
	}
	return Coordinate{Lat: result.Lat, Lng: result.Lng}, nil
}

// FirstLocator tries each locator in order and returns the first coordinate.
// A denial stops the chain.
type FirstLocator []Locator

func (f FirstLocator) Locate(ctx context.Context) (Coordinate, error) {
	for _, loc := range f {
		if loc == nil {
			continue
		}
		c, err := loc.Locate(ctx)
		if err == nil {
			return c, nil
		}
		if errors.Is(err, ErrLocationDenied) || ctx.Err() != nil {
			return Coordinate{}, err
		}
	}
	return Coordinate{}, ErrLocationUnavailable
}
