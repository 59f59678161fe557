package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

const earthRadiusMeters = 6371008.8

// HaversineMeters returns the great-circle distance between two XY points
// whose X is longitude and Y is latitude.
func HaversineMeters(a, b *geom.Point) float64 {
	lat1 := a.Y() * math.Pi / 180
	lat2 := b.Y() * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.X() - a.X()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// NewPoint builds an XY point from latitude and longitude.
func NewPoint(lat, lng float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(4326)
}

// BoundsAreaKm2 approximates the area of the bounding box of pts in square
// kilometers. It returns 0 for fewer than two distinct points.
func BoundsAreaKm2(pts []*geom.Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	b := geom.NewBounds(geom.XY)
	for _, p := range pts {
		b.Extend(p)
	}
	sw := NewPoint(b.Min(1), b.Min(0))
	se := NewPoint(b.Min(1), b.Max(0))
	nw := NewPoint(b.Max(1), b.Min(0))
	return HaversineMeters(sw, se) / 1000 * HaversineMeters(sw, nw) / 1000
}
