package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeLocation = LatLng{Lat: 47.9185, Lng: 106.9176}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestHaversineKm(t *testing.T) {
	assert.Equal(t, 0.0, HaversineKm(storeLocation, storeLocation))
	assert.Equal(t, 3.0, HaversineKm(storeLocation, LatLng{Lat: 47.9455, Lng: 106.9176}))
	assert.Equal(t, 5.96, HaversineKm(storeLocation, LatLng{Lat: 47.9185, Lng: 106.9976}))
}

func TestCalculateDeliveryFee_Flat(t *testing.T) {
	dest := LatLng{Lat: 47.9185, Lng: 106.9976}
	out, err := CalculateDeliveryFee(FeeRule{
		FeeType:          FeeTypeFlat,
		BaseFee:          dec("3000"),
		EstimatedMinutes: 30,
	}, FeeInput{Origin: storeLocation, Destination: &dest, Subtotal: dec("10000")})
	require.NoError(t, err)
	assert.True(t, out.Total.Equal(dec("3000")))
	assert.Equal(t, 5.96, out.DistanceKm)
	// 30 + ceil(5.96 * 3)
	assert.Equal(t, 48, out.EtaMinutes)
	assert.False(t, out.FreeDeliveryApplied)
}

func TestCalculateDeliveryFee_DistanceChargesStartedKm(t *testing.T) {
	dest := LatLng{Lat: 47.9185, Lng: 106.9976}
	rule := FeeRule{
		FeeType:    FeeTypeDistance,
		BaseFee:    dec("2000"),
		PerKmFee:   dec("500"),
		IncludedKm: 3,
	}
	out, err := CalculateDeliveryFee(rule, FeeInput{Origin: storeLocation, Destination: &dest})
	require.NoError(t, err)
	assert.Equal(t, 3, out.ChargedKm)
	assert.True(t, out.DistanceFee.Equal(dec("1500")))
	assert.True(t, out.Total.Equal(dec("3500")))

	rule.RoundingUnit = dec("1000")
	out, err = CalculateDeliveryFee(rule, FeeInput{Origin: storeLocation, Destination: &dest})
	require.NoError(t, err)
	assert.True(t, out.Total.Equal(dec("4000")), "got %s", out.Total)
}

func TestCalculateDeliveryFee_WithinIncludedKm(t *testing.T) {
	dest := LatLng{Lat: 47.9455, Lng: 106.9176}
	out, err := CalculateDeliveryFee(FeeRule{
		FeeType:    FeeTypeDistance,
		BaseFee:    dec("2000"),
		PerKmFee:   dec("500"),
		IncludedKm: 3,
	}, FeeInput{Origin: storeLocation, Destination: &dest})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ChargedKm)
	assert.True(t, out.Total.Equal(dec("2000")))
}

func TestCalculateDeliveryFee_FreeAboveThresholdKeepsExpress(t *testing.T) {
	threshold := dec("50000")
	rule := FeeRule{
		FeeType:         FeeTypeFlat,
		BaseFee:         dec("3000"),
		MinOrderForFree: &threshold,
		ExpressFee:      dec("2000"),
	}
	out, err := CalculateDeliveryFee(rule, FeeInput{Origin: storeLocation, Subtotal: dec("60000")})
	require.NoError(t, err)
	assert.True(t, out.FreeDeliveryApplied)
	assert.True(t, out.Total.IsZero())

	out, err = CalculateDeliveryFee(rule, FeeInput{Origin: storeLocation, Subtotal: dec("50000"), Express: true})
	require.NoError(t, err)
	assert.True(t, out.FreeDeliveryApplied)
	assert.True(t, out.Total.Equal(dec("2000")))

	out, err = CalculateDeliveryFee(rule, FeeInput{Origin: storeLocation, Subtotal: dec("49999")})
	require.NoError(t, err)
	assert.False(t, out.FreeDeliveryApplied)
	assert.True(t, out.Total.Equal(dec("3000")))
}

func TestCalculateDeliveryFee_FreeType(t *testing.T) {
	out, err := CalculateDeliveryFee(FeeRule{FeeType: FeeTypeFree, BaseFee: dec("5000")}, FeeInput{Origin: storeLocation})
	require.NoError(t, err)
	assert.True(t, out.Total.IsZero())
	assert.True(t, out.FreeDeliveryApplied)
}

func TestCalculateDeliveryFee_OutOfRange(t *testing.T) {
	dest := LatLng{Lat: 48.2, Lng: 106.9176}
	_, err := CalculateDeliveryFee(FeeRule{FeeType: FeeTypeFlat, BaseFee: dec("3000"), MaxDistanceKm: 10}, FeeInput{Origin: storeLocation, Destination: &dest})
	assert.ErrorIs(t, err, ErrOutOfDeliveryRange)
}

func TestCalculateDeliveryFee_NoDestinationChargesBase(t *testing.T) {
	out, err := CalculateDeliveryFee(FeeRule{
		FeeType:          FeeTypeDistance,
		BaseFee:          dec("2500"),
		PerKmFee:         dec("400"),
		MaxDistanceKm:    5,
		EstimatedMinutes: 40,
	}, FeeInput{Origin: storeLocation})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.DistanceKm)
	assert.True(t, out.Total.Equal(dec("2500")))
	assert.Equal(t, 40, out.EtaMinutes)
}

func TestCalculateDeliveryFee_RejectsBadRule(t *testing.T) {
	_, err := CalculateDeliveryFee(FeeRule{FeeType: "zone"}, FeeInput{})
	assert.True(t, IsValidationError(err))

	_, err = CalculateDeliveryFee(FeeRule{FeeType: FeeTypeFlat, BaseFee: dec("-1")}, FeeInput{})
	assert.True(t, IsValidationError(err))
}
