package geo

import (
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/locus/pkg/google"
)

// Status is a normalized operating status.
type Status string

const (
	StatusOperating         Status = "operating"
	StatusClosedTemporarily Status = "closed_temporarily"
	StatusClosedPermanently Status = "closed_permanently"
	StatusUnknown           Status = "unknown"
)

// Coordinate is a JSON-friendly latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the coordinate as an XY point.
func (c Coordinate) Point() *geom.Point {
	return NewPoint(c.Lat, c.Lng)
}

// Place is one business found by a nearby search.
type Place struct {
	Name           string     `json:"name"`
	Address        string     `json:"address"`
	Rating         float64    `json:"rating"`
	Reviews        int        `json:"reviews"`
	Status         Status     `json:"status"`
	Tags           []string   `json:"tags"`
	Location       Coordinate `json:"location"`
	DistanceMeters float64    `json:"distance_meters"`
	Band           string     `json:"band"`
}

func normalizeStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "OPERATIONAL":
		return StatusOperating
	case "CLOSED_TEMPORARILY":
		return StatusClosedTemporarily
	case "CLOSED_PERMANENTLY":
		return StatusClosedPermanently
	default:
		return StatusUnknown
	}
}

// fromGoogle maps a provider place, defaulting absent rating and review
// count to zero and clamping both into range.
func fromGoogle(p google.Place, center *geom.Point) Place {
	var rating float64
	if p.Rating != nil {
		rating = min(max(*p.Rating, 0), 5)
	}
	var reviews int
	if p.UserRatingsTotal != nil {
		reviews = max(*p.UserRatingsTotal, 0)
	}
	tags := p.Types
	if tags == nil {
		tags = []string{}
	}

	loc := Coordinate{Lat: p.Geometry.Location.Lat, Lng: p.Geometry.Location.Lng}
	dist := HaversineMeters(center, loc.Point())
	return Place{
		Name:           p.Name,
		Address:        p.Vicinity,
		Rating:         rating,
		Reviews:        reviews,
		Status:         normalizeStatus(p.BusinessStatus),
		Tags:           tags,
		Location:       loc,
		DistanceMeters: dist,
		Band:           Classify(dist),
	}
}
