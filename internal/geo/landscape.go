package geo

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// HighPerformerRating is the rating at or above which a competitor counts
// as a market leader.
const HighPerformerRating = 4.5

// Landscape is the stored output of competitor mapping: the raw search
// plus the analyst narrative.
type Landscape struct {
	Search  *SearchResult `json:"search"`
	Summary string        `json:"summary"`
}

// String renders the landscape for inclusion in a prompt.
func (l *Landscape) String() string {
	var b strings.Builder
	if l.Search != nil {
		b.WriteString(l.Search.String())
	}
	if l.Summary != "" {
		b.WriteString("\n")
		b.WriteString(l.Summary)
	}
	return b.String()
}

// String renders the search center and places one per line.
func (r *SearchResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Center: %s (%.5f, %.5f), radius %dm\n", r.CenterAddress, r.Center.Lat, r.Center.Lng, r.RadiusMeters)
	fmt.Fprintf(&b, "Competitors found: %d\n", len(r.Places))
	for _, p := range r.Places {
		fmt.Fprintf(&b, "- %s | %s | rating %.1f | %d reviews | %s | %.0fm (%s)\n",
			p.Name, p.Address, p.Rating, p.Reviews, p.Status, p.DistanceMeters, p.Band)
	}
	return b.String()
}

// GeoJSON encodes the center and places as a FeatureCollection.
func (l *Landscape) GeoJSON() ([]byte, error) {
	fc := &geojson.FeatureCollection{}
	if l.Search == nil {
		return json.Marshal(fc)
	}
	s := l.Search
	fc.Features = append(fc.Features, &geojson.Feature{
		ID:       "center",
		Geometry: s.CenterPoint(),
		Properties: map[string]any{
			"role":    "center",
			"address": s.CenterAddress,
			"radius":  s.RadiusMeters,
		},
	})
	pts := make([]*geom.Point, 0, len(s.Places))
	for i, p := range s.Places {
		pt := p.Location.Point()
		pts = append(pts, pt)
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       fmt.Sprintf("place-%d", i),
			Geometry: pt,
			Properties: map[string]any{
				"role":    "competitor",
				"name":    p.Name,
				"rating":  p.Rating,
				"reviews": p.Reviews,
				"status":  string(p.Status),
				"band":    p.Band,
			},
		})
	}
	if len(pts) > 0 {
		b := geom.NewBounds(geom.XY)
		for _, pt := range pts {
			b.Extend(pt)
		}
		fc.BBox = b
	}
	return json.Marshal(fc)
}

// ZoneMetrics summarizes competitors within one distance band.
type ZoneMetrics struct {
	Band                 string  `json:"band"`
	Competitors          int     `json:"competitors"`
	AvgRating            float64 `json:"avg_rating"`
	TotalReviews         int     `json:"total_reviews"`
	HighPerformers       int     `json:"high_performers"`
	OperatingShare       float64 `json:"operating_share"`
	CompetitionIntensity float64 `json:"competition_intensity"`
}

// GapMetrics is the quantitative input to gap analysis.
type GapMetrics struct {
	TotalCompetitors int           `json:"total_competitors"`
	AvgRating        float64       `json:"avg_rating"`
	DensityPerKm2    float64       `json:"density_per_km2"`
	Zones            []ZoneMetrics `json:"zones"`
	LeastSaturated   string        `json:"least_saturated_band"`
}

// Metrics computes per-band zone metrics for the search result. Bands with
// no competitors are included with zero counts. Competition intensity is
// count * avgRating / ln(totalReviews + 2).
func Metrics(s *SearchResult) *GapMetrics {
	out := &GapMetrics{}
	if s == nil {
		return out
	}

	byBand := make(map[string][]Place, len(Bands))
	pts := make([]*geom.Point, 0, len(s.Places))
	var ratingSum float64
	for _, p := range s.Places {
		byBand[p.Band] = append(byBand[p.Band], p)
		pts = append(pts, p.Location.Point())
		ratingSum += p.Rating
	}
	out.TotalCompetitors = len(s.Places)
	if n := len(s.Places); n > 0 {
		out.AvgRating = round2(ratingSum / float64(n))
		// Use the competitor bounding box when it is tighter than the search disc.
		area := math.Pi * math.Pow(float64(s.RadiusMeters)/1000, 2)
		if bbox := BoundsAreaKm2(pts); bbox > 0 && bbox < area {
			area = bbox
		}
		if area > 0 {
			out.DensityPerKm2 = round2(float64(n) / area)
		}
	}

	for _, band := range Bands {
		out.Zones = append(out.Zones, zoneMetrics(band, byBand[band]))
	}

	least := make([]ZoneMetrics, len(out.Zones))
	copy(least, out.Zones)
	sort.SliceStable(least, func(i, j int) bool {
		return least[i].CompetitionIntensity < least[j].CompetitionIntensity
	})
	if len(least) > 0 {
		out.LeastSaturated = least[0].Band
	}
	return out
}

func zoneMetrics(band string, places []Place) ZoneMetrics {
	z := ZoneMetrics{Band: band, Competitors: len(places)}
	if len(places) == 0 {
		return z
	}
	var ratingSum float64
	var operating int
	for _, p := range places {
		ratingSum += p.Rating
		z.TotalReviews += p.Reviews
		if p.Rating >= HighPerformerRating {
			z.HighPerformers++
		}
		if p.Status == StatusOperating {
			operating++
		}
	}
	avg := ratingSum / float64(len(places))
	z.AvgRating = round2(avg)
	z.OperatingShare = round2(float64(operating) / float64(len(places)))
	z.CompetitionIntensity = round2(float64(len(places)) * avg / math.Log(float64(z.TotalReviews)+2))
	return z
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
