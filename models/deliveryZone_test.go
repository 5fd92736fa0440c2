package models

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sukhbaatarSquare = utils.LatLng{Lat: 47.9186, Lng: 106.9176}
	// roughly 2.2km west of the square
	westDistrict = utils.LatLng{Lat: 47.9186, Lng: 106.8880}
	// roughly 15km east
	farEast = utils.LatLng{Lat: 47.9186, Lng: 107.1185}
)

func TestPickZone(t *testing.T) {
	zones := []*DeliveryZone{
		{ID: 1, Name: "Хот", Priority: 5, MaxDistanceKm: 0},
		{ID: 2, Name: "Төв", Priority: 1, MaxDistanceKm: 3, Areas: "СБД, ЧД"},
		{ID: 3, Name: "Дунд", Priority: 1, MaxDistanceKm: 10},
		{ID: 4, Name: "Хан-Уул", Priority: 9, MaxDistanceKm: 1, Areas: "ХУД"},
	}
	id := func(v int) *int { return &v }

	tests := []struct {
		name  string
		query ZoneQuery
		want  int
	}{
		{"explicit zone wins", ZoneQuery{ZoneId: id(4), Origin: sukhbaatarSquare, Destination: &farEast}, 4},
		{"area match is folded", ZoneQuery{Area: " худ ", Origin: sukhbaatarSquare, Destination: &farEast}, 4},
		{"tightest covering zone among equal priority", ZoneQuery{Origin: sukhbaatarSquare, Destination: &westDistrict}, 2},
		{"falls back to unlimited zone", ZoneQuery{Origin: sukhbaatarSquare, Destination: &farEast}, 1},
		{"no coordinates uses unlimited zone", ZoneQuery{Origin: sukhbaatarSquare}, 1},
		{"unknown area then coordinates", ZoneQuery{Area: "Налайх", Origin: sukhbaatarSquare, Destination: &westDistrict}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickZone(zones, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}

	_, err := pickZone(zones, ZoneQuery{ZoneId: id(99)})
	assert.True(t, utils.IsValidationError(err))

	limited := zones[1:3]
	_, err = pickZone(limited, ZoneQuery{Origin: sukhbaatarSquare, Destination: &farEast})
	assert.True(t, errors.Is(err, ErrOutOfDeliveryRange))
	_, err = pickZone(limited, ZoneQuery{Origin: sukhbaatarSquare})
	assert.True(t, errors.Is(err, ErrOutOfDeliveryRange))
}

func TestDeliveryZone_ServesArea(t *testing.T) {
	z := DeliveryZone{Areas: "СБД, Сүхбаатар ,,ЧД"}
	assert.Equal(t, []string{"СБД", "Сүхбаатар", "ЧД"}, z.AreaList())
	assert.True(t, z.ServesArea("сүхбаатар"))
	assert.True(t, z.ServesArea(" чд"))
	assert.False(t, z.ServesArea(""))
	assert.False(t, z.ServesArea("БЗД"))
}

func TestQuoteDeliveryFee_DistanceZone(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&DeliveryZone{}).Where("id = ?", f.zone.ID).UpdateColumn("is_active", false).Error)
	minFree := decimal.NewFromInt(100000)
	zone, err := CreateDeliveryZone(f.ctx, &NewDeliveryZone{
		Name:             "Зай",
		FeeType:          utils.FeeTypeDistance,
		BaseFee:          decimal.NewFromInt(3000),
		PerKmFee:         decimal.NewFromInt(1000),
		IncludedKm:       1,
		MaxDistanceKm:    5,
		MinOrderForFree:  &minFree,
		ExpressFee:       decimal.NewFromInt(2000),
		RoundingUnit:     decimal.NewFromInt(500),
		EstimatedMinutes: 20,
	})
	require.NoError(t, err)

	lat, lng := westDistrict.Lat, westDistrict.Lng
	quote, err := QuoteDeliveryFee(f.ctx, QuoteInput{Latitude: &lat, Longitude: &lng, Subtotal: decimal.NewFromInt(20000)})
	require.NoError(t, err)
	assert.Equal(t, zone.ID, quote.ZoneId)
	assert.Equal(t, 2, quote.ChargedKm)
	assert.True(t, decimal.NewFromInt(5000).Equal(quote.Total), quote.Total.String())
	assert.Equal(t, "5,000₮", quote.TotalText)

	quote, err = QuoteDeliveryFee(f.ctx, QuoteInput{Latitude: &lat, Longitude: &lng, Subtotal: decimal.NewFromInt(150000), Express: true})
	require.NoError(t, err)
	assert.True(t, quote.FreeDeliveryApplied)
	assert.True(t, decimal.NewFromInt(2000).Equal(quote.Total), quote.Total.String())

	far := farEast.Lng
	_, err = QuoteDeliveryFee(f.ctx, QuoteInput{Latitude: &lat, Longitude: &far})
	assert.ErrorIs(t, err, ErrOutOfDeliveryRange)

	_, err = QuoteDeliveryFee(f.ctx, QuoteInput{Latitude: &lat})
	assert.True(t, utils.IsValidationError(err))
}

func TestDeliveryZoneCrud_ValidatesRule(t *testing.T) {
	f := newFixture(t)
	_, err := CreateDeliveryZone(f.ctx, &NewDeliveryZone{Name: "Bad", FeeType: "weird"})
	assert.True(t, utils.IsValidationError(err))

	zone, err := ToggleActiveDeliveryZone(f.ctx, f.zone.ID, false)
	require.NoError(t, err)
	assert.False(t, *zone.IsActive)
	active, err := ListActiveZones(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
