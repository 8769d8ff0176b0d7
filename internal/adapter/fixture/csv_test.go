package fixture

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shop-discovery/internal/domain"
)

func TestParseCSV(t *testing.T) {
	in := `id,place_id,name,category,city,lat,lng,rating,review_count,is_paid,is_featured
ptn-001,,Sharma Sweets,Sweets,Patna,25.6102,85.1221,4.5,120,true,false
,ChIJ-77,Fashion Hub,Clothing,Patna,25.6111,85.1402,3.9,18,,true
,,Gupta Kirana,Grocery,Patna,,,,,,
`
	shops, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, shops, 3)

	want := domain.ShopRecord{
		PrimaryID:   "ptn-001",
		DisplayName: "Sharma Sweets",
		Category:    "Sweets",
		Locality:    "Patna",
		Coordinates: &domain.Coordinate{Lat: 25.6102, Lng: 85.1221},
		Rating:      4.5,
		ReviewCount: 120,
		IsPaid:      true,
	}
	if diff := cmp.Diff(want, shops[0]); diff != "" {
		t.Errorf("first row mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, shops[1].PrimaryID, "place-only rows keep their external identity")
	assert.Equal(t, "ChIJ-77", shops[1].ExternalID)
	assert.True(t, shops[1].IsFeatured)

	assert.Nil(t, shops[2].Coordinates)
	assert.Equal(t, MintID(shops[2]), shops[2].PrimaryID)
}

func TestParseCSV_ColumnOrderAndMissingColumns(t *testing.T) {
	in := "city,name\nGaya,Bodh Books\n"
	shops, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, "Bodh Books", shops[0].DisplayName)
	assert.Equal(t, "Gaya", shops[0].Locality)
	assert.NotEmpty(t, shops[0].PrimaryID)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "read header"},
		{"no name column", "id,city\n1,Patna\n", "no name column"},
		{"bad lat", "name,lat,lng\nShop,north,85.1\n", "line 2: lat"},
		{"half coordinate", "name,lat,lng\nShop,25.6,\n", "line 2: lng"},
		{"bad flag", "name,is_paid\nShop,maybe\n", "is_paid"},
		{"bad rating", "name,rating\nShop,five\n", "rating"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMintID_Deterministic(t *testing.T) {
	a := MintID(domain.ShopRecord{DisplayName: "Gupta Kirana", Locality: "Patna"})
	b := MintID(domain.ShopRecord{DisplayName: " gupta kirana ", Locality: "PATNA"})
	c := MintID(domain.ShopRecord{DisplayName: "Gupta Kirana", Locality: "Gaya"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}
