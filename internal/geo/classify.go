// Package geo resolves a location and finds nearby businesses of a type,
// then summarizes the competitive landscape by distance from the center.
package geo

// Distance band names.
const (
	BandCore  = "core"
	BandInner = "inner"
	BandOuter = "outer"
)

// Distance thresholds for band classification (meters).
const (
	coreThreshold  = 1000.0
	innerThreshold = 2500.0
)

// Bands lists band names from nearest to farthest.
var Bands = []string{BandCore, BandInner, BandOuter}

// Classify returns the distance band for a place distanceMeters from the center.
// Rules:
//   - core: distance <= 1km
//   - inner: 1km < distance <= 2.5km
//   - outer: beyond 2.5km
func Classify(distanceMeters float64) string {
	switch {
	case distanceMeters <= coreThreshold:
		return BandCore
	case distanceMeters <= innerThreshold:
		return BandInner
	default:
		return BandOuter
	}
}
