package domain

import (
	"errors"
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// ErrNoDistance means at least one endpoint is missing or not a finite coordinate.
var ErrNoDistance = errors.New("no distance available")

// TravelEstimate is the distance between two points plus a rough drive time.
type TravelEstimate struct {
	DistanceKm float64
	Minutes    int
	ETAText    string
}

// Estimate returns the great-circle distance and travel estimate from a to b.
func Estimate(a, b Coordinate) (TravelEstimate, error) {
	if !a.Valid() || !b.Valid() {
		return TravelEstimate{}, ErrNoDistance
	}
	d := haversineKm(a, b)
	mins := TravelMinutes(d)
	return TravelEstimate{
		DistanceKm: d,
		Minutes:    mins,
		ETAText:    FormatETA(mins),
	}, nil
}

// EstimateFrom is Estimate for optional endpoints.
func EstimateFrom(a, b *Coordinate) (TravelEstimate, error) {
	if a == nil || b == nil {
		return TravelEstimate{}, ErrNoDistance
	}
	return Estimate(*a, *b)
}

func haversineKm(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Clamp guards against h drifting just above 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// TravelMinutes converts a distance to whole minutes at a city-traffic speed.
func TravelMinutes(distanceKm float64) int {
	if distanceKm <= 0 || math.IsNaN(distanceKm) {
		return 0
	}
	speed := 50.0
	switch {
	case distanceKm < 5:
		speed = 20
	case distanceKm < 20:
		speed = 35
	}
	return int(math.Round(distanceKm / speed * 60))
}

// FormatETA renders minutes as "< 1 min", "12 min" or "1h 5m".
func FormatETA(minutes int) string {
	switch {
	case minutes <= 0:
		return "< 1 min"
	case minutes < 60:
		return fmt.Sprintf("%d min", minutes)
	default:
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
}

// FormatDistance renders km as "850 m", "2.4 km" or "12 km".
func FormatDistance(km float64) string {
	switch {
	case km < 0 || math.IsNaN(km) || math.IsInf(km, 0):
		return ""
	case km < 1:
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	case km < 10:
		return fmt.Sprintf("%.1f km", km)
	default:
		return fmt.Sprintf("%d km", int(math.Round(km)))
	}
}

// ResolveDistance returns the shop's distance from the caller. The
// precomputed distance wins; otherwise it is computed from coordinates.
func ResolveDistance(shop ShopRecord, from *Coordinate) (float64, bool) {
	if d := shop.PrecomputedDistanceKm; d != nil && !math.IsNaN(*d) && !math.IsInf(*d, 0) && *d >= 0 {
		return *d, true
	}
	est, err := EstimateFrom(from, shop.Coordinates)
	if err != nil {
		return 0, false
	}
	return est.DistanceKm, true
}
