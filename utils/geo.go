package utils

import "math"

const earthRadiusKm = 6371.0

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 && !(p.Lat == 0 && p.Lng == 0)
}

// HaversineKm is the great-circle distance between two points, rounded to 2 decimals.
func HaversineKm(a, b LatLng) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	d := 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return math.Round(d*100) / 100
}
