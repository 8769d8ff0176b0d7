package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var patna = Coordinate{Lat: 25.5941, Lng: 85.1376}

func TestEstimate_SamePoint(t *testing.T) {
	est, err := Estimate(patna, patna)
	require.NoError(t, err)
	assert.InDelta(t, 0, est.DistanceKm, 1e-9)
	assert.Equal(t, 0, est.Minutes)
	assert.Equal(t, "< 1 min", est.ETAText)
}

func TestEstimate_OneDegreeAtEquator(t *testing.T) {
	est, err := Estimate(Coordinate{Lat: 0, Lng: 0}, Coordinate{Lat: 0, Lng: 1})
	require.NoError(t, err)
	assert.InDelta(t, 6371*math.Pi/180, est.DistanceKm, 1e-6)
	assert.Equal(t, 133, est.Minutes)
	assert.Equal(t, "2h 13m", est.ETAText)
}

func TestEstimate_Symmetric(t *testing.T) {
	points := []Coordinate{
		patna,
		{Lat: 25.6113, Lng: 85.1442},
		{Lat: 28.6139, Lng: 77.2090},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 51.5074, Lng: -0.1278},
		{Lat: 89.9, Lng: 179.9},
	}
	for _, a := range points {
		for _, b := range points {
			ab, err := Estimate(a, b)
			require.NoError(t, err)
			ba, err := Estimate(b, a)
			require.NoError(t, err)
			assert.InDelta(t, ab.DistanceKm, ba.DistanceKm, 1e-6, "%v <-> %v", a, b)
		}
	}
}

func TestEstimate_InvalidCoordinates(t *testing.T) {
	cases := map[string]Coordinate{
		"nan lat":      {Lat: math.NaN(), Lng: 85},
		"inf lng":      {Lat: 25, Lng: math.Inf(1)},
		"lat too high": {Lat: 91, Lng: 0},
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Estimate(patna, bad)
			require.ErrorIs(t, err, ErrNoDistance)
			_, err = Estimate(bad, patna)
			require.ErrorIs(t, err, ErrNoDistance)
		})
	}
}

func TestEstimateFrom_MissingEndpoint(t *testing.T) {
	_, err := EstimateFrom(nil, &patna)
	require.ErrorIs(t, err, ErrNoDistance)
	_, err = EstimateFrom(&patna, nil)
	require.ErrorIs(t, err, ErrNoDistance)
}

func TestTravelMinutes(t *testing.T) {
	tests := []struct {
		km   float64
		want int
	}{
		{0, 0},
		{-1, 0},
		{2, 6},
		{4.99, 15},
		{5, 9},
		{10, 17},
		{19.9, 34},
		{20, 24},
		{100, 120},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TravelMinutes(tt.km), "km=%v", tt.km)
	}
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "< 1 min", FormatETA(0))
	assert.Equal(t, "1 min", FormatETA(1))
	assert.Equal(t, "59 min", FormatETA(59))
	assert.Equal(t, "1h 0m", FormatETA(60))
	assert.Equal(t, "2h 5m", FormatETA(125))
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "0 m", FormatDistance(0))
	assert.Equal(t, "350 m", FormatDistance(0.35))
	assert.Equal(t, "1.0 km", FormatDistance(1))
	assert.Equal(t, "2.4 km", FormatDistance(2.44))
	assert.Equal(t, "10 km", FormatDistance(10))
	assert.Equal(t, "13 km", FormatDistance(12.6))
	assert.Empty(t, FormatDistance(-1))
	assert.Empty(t, FormatDistance(math.NaN()))
}

func TestResolveDistance(t *testing.T) {
	nearby := Coordinate{Lat: 25.6113, Lng: 85.1442}

	t.Run("precomputed wins over coordinates", func(t *testing.T) {
		shop := ShopRecord{Coordinates: &nearby, PrecomputedDistanceKm: Float64(7.5)}
		d, ok := ResolveDistance(shop, &patna)
		require.True(t, ok)
		assert.InDelta(t, 7.5, d, 1e-9)
	})

	t.Run("computed from coordinates", func(t *testing.T) {
		shop := ShopRecord{Coordinates: &nearby}
		d, ok := ResolveDistance(shop, &patna)
		require.True(t, ok)
		assert.InDelta(t, 2.02, d, 0.02)
	})

	t.Run("no caller coordinate", func(t *testing.T) {
		_, ok := ResolveDistance(ShopRecord{Coordinates: &nearby}, nil)
		assert.False(t, ok)
	})

	t.Run("negative precomputed ignored", func(t *testing.T) {
		_, ok := ResolveDistance(ShopRecord{PrecomputedDistanceKm: Float64(-2)}, nil)
		assert.False(t, ok)
	})
}
