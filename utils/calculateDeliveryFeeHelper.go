package utils

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

const (
	FeeTypeFlat     = "flat"
	FeeTypeDistance = "distance"
	FeeTypeFree     = "free"

	defaultMinutesPerKm = 3.0
)

var ErrOutOfDeliveryRange = errors.New("destination is outside the delivery range")

// FeeRule is the pricing part of a delivery zone.
type FeeRule struct {
	FeeType          string
	BaseFee          decimal.Decimal
	PerKmFee         decimal.Decimal
	IncludedKm       float64
	MaxDistanceKm    float64
	MinOrderForFree  *decimal.Decimal
	ExpressFee       decimal.Decimal
	RoundingUnit     decimal.Decimal
	EstimatedMinutes int
	MinutesPerKm     float64
}

type FeeInput struct {
	Origin      LatLng
	Destination *LatLng
	Subtotal    decimal.Decimal
	Express     bool
}

type FeeBreakdown struct {
	DistanceKm          float64         `json:"distanceKm"`
	ChargedKm           int             `json:"chargedKm"`
	BaseFee             decimal.Decimal `json:"baseFee"`
	DistanceFee         decimal.Decimal `json:"distanceFee"`
	ExpressFee          decimal.Decimal `json:"expressFee"`
	Total               decimal.Decimal `json:"total"`
	FreeDeliveryApplied bool            `json:"freeDeliveryApplied"`
	EtaMinutes          int             `json:"etaMinutes"`
}

// Validate rejects unknown fee types and negative amounts.
func (r FeeRule) Validate() error {
	switch r.FeeType {
	case FeeTypeFlat, FeeTypeDistance, FeeTypeFree:
	default:
		return NewValidationError("invalid fee type")
	}
	if r.BaseFee.IsNegative() || r.PerKmFee.IsNegative() || r.ExpressFee.IsNegative() || r.RoundingUnit.IsNegative() {
		return NewValidationError("fees cannot be negative")
	}
	if r.IncludedKm < 0 || r.MaxDistanceKm < 0 || r.MinutesPerKm < 0 || r.EstimatedMinutes < 0 {
		return NewValidationError("distances and minutes cannot be negative")
	}
	return nil
}

// Covers reports whether the destination is within MaxDistanceKm (0 means unlimited).
func (r FeeRule) Covers(distanceKm float64) bool {
	return r.MaxDistanceKm <= 0 || distanceKm <= r.MaxDistanceKm
}

// CalculateDeliveryFee prices a single delivery. Distance is charged per started km
// beyond IncludedKm, and the total is rounded up to RoundingUnit.
func CalculateDeliveryFee(rule FeeRule, in FeeInput) (FeeBreakdown, error) {
	var out FeeBreakdown
	if err := rule.Validate(); err != nil {
		return out, err
	}

	if in.Destination != nil {
		out.DistanceKm = HaversineKm(in.Origin, *in.Destination)
	}
	if !rule.Covers(out.DistanceKm) {
		return out, ErrOutOfDeliveryRange
	}

	switch rule.FeeType {
	case FeeTypeFlat:
		out.BaseFee = rule.BaseFee
	case FeeTypeDistance:
		out.BaseFee = rule.BaseFee
		extra := out.DistanceKm - rule.IncludedKm
		if extra > 0 {
			out.ChargedKm = int(math.Ceil(extra - 1e-9))
			out.DistanceFee = rule.PerKmFee.Mul(decimal.NewFromInt(int64(out.ChargedKm)))
		}
	case FeeTypeFree:
		out.FreeDeliveryApplied = true
	}

	fee := out.BaseFee.Add(out.DistanceFee)
	if rule.MinOrderForFree != nil && in.Subtotal.GreaterThanOrEqual(*rule.MinOrderForFree) {
		fee = decimal.Zero
		out.FreeDeliveryApplied = true
	}
	if in.Express {
		out.ExpressFee = rule.ExpressFee
		fee = fee.Add(rule.ExpressFee)
	}
	out.Total = roundUpTo(fee, rule.RoundingUnit)
	if out.Total.IsNegative() {
		out.Total = decimal.Zero
	}

	perKm := rule.MinutesPerKm
	if perKm == 0 {
		perKm = defaultMinutesPerKm
	}
	out.EtaMinutes = rule.EstimatedMinutes + int(math.Ceil(out.DistanceKm*perKm))
	return out, nil
}

func roundUpTo(v decimal.Decimal, unit decimal.Decimal) decimal.Decimal {
	if !unit.IsPositive() || v.IsZero() {
		return v
	}
	return v.Div(unit).Ceil().Mul(unit)
}
