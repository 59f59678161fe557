package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/geo"
	"github.com/sells-group/locus/internal/report"
	"github.com/sells-group/locus/internal/research"
	"github.com/sells-group/locus/internal/state"
)

// Tool names, also usable as template placeholders.
const (
	ToolWebResearch  = "web_research"
	ToolNearbyPlaces = "nearby_places"
	ToolZoneMetrics  = "zone_metrics"
)

// PlaceSearcher finds nearby businesses around a location.
type PlaceSearcher interface {
	Search(ctx context.Context, req geo.SearchRequest) (*geo.SearchResult, error)
}

// ResearchTool gathers web findings for the run's location and business.
func ResearchTool(r research.Researcher) Tool {
	return ToolFunc{
		ToolName: ToolWebResearch,
		Fn: func(ctx context.Context, st state.Reader) (any, error) {
			return r.Research(ctx, research.Query{
				Location:     st.String(state.KeyTargetLocation),
				BusinessType: st.String(state.KeyBusinessType),
				Date:         st.String(state.KeyCurrentDate),
			})
		},
	}
}

// NearbyPlacesTool geocodes the target and lists competitors within radius
// meters. The run's maps_api_key, when present, overrides the configured key.
func NearbyPlacesTool(s PlaceSearcher, radius int) Tool {
	return ToolFunc{
		ToolName: ToolNearbyPlaces,
		Fn: func(ctx context.Context, st state.Reader) (any, error) {
			return s.Search(ctx, geo.SearchRequest{
				Location:     st.String(state.KeyTargetLocation),
				BusinessType: st.String(state.KeyBusinessType),
				RadiusMeters: radius,
				APIKey:       st.String(state.KeyMapsAPIKey),
			})
		},
	}
}

// ZoneMetricsTool computes distance-band metrics from the stored landscape.
func ZoneMetricsTool() Tool {
	return ToolFunc{
		ToolName: ToolZoneMetrics,
		Fn: func(_ context.Context, st state.Reader) (any, error) {
			l, ok := state.Lookup[*geo.Landscape](st, state.KeyCompetitors)
			if !ok {
				return nil, fault.MissingDependency("tool "+ToolZoneMetrics, state.KeyCompetitors)
			}
			return geo.Metrics(l.Search), nil
		},
	}
}

// GapAnalysis is the stored output of the gap analysis stage.
type GapAnalysis struct {
	Metrics   *geo.GapMetrics `json:"metrics"`
	Narrative string          `json:"narrative"`
}

// String renders the metrics table followed by the narrative.
func (g *GapAnalysis) String() string {
	var b strings.Builder
	if m := g.Metrics; m != nil {
		fmt.Fprintf(&b, "Competitors: %d, average rating %.2f, density %.2f per km2, least saturated band: %s\n",
			m.TotalCompetitors, m.AvgRating, m.DensityPerKm2, m.LeastSaturated)
		b.WriteString("| band | competitors | avg rating | reviews | high performers | operating | intensity |\n")
		for _, z := range m.Zones {
			fmt.Fprintf(&b, "| %s | %d | %.2f | %d | %d | %.0f%% | %.2f |\n",
				z.Band, z.Competitors, z.AvgRating, z.TotalReviews, z.HighPerformers, z.OperatingShare*100, z.CompetitionIntensity)
		}
		b.WriteString("\n")
	}
	b.WriteString(g.Narrative)
	return b.String()
}

func composeLandscape(in ComposeInput) (any, error) {
	s, ok := in.Tools[ToolNearbyPlaces].(*geo.SearchResult)
	if !ok {
		return nil, eris.New("pipeline: nearby places result missing")
	}
	return &geo.Landscape{Search: s, Summary: in.Response.Text}, nil
}

func composeGapAnalysis(in ComposeInput) (any, error) {
	m, _ := in.Tools[ToolZoneMetrics].(*geo.GapMetrics)
	return &GapAnalysis{Metrics: m, Narrative: in.Response.Text}, nil
}

func composeStrategy(in ComposeInput) (any, error) {
	r, err := report.Decode(in.Response.Value)
	if err != nil {
		return nil, fault.SchemaViolation("stage "+StageStrategyAdvisor, err)
	}
	return r, nil
}
