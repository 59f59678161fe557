// Package report defines the structured location intelligence report
// produced by the strategy stage.
package report

import (
	"github.com/sells-group/locus/internal/schema"
)

// Strength is a supporting factor with evidence.
type Strength struct {
	Factor      string `json:"factor"`
	Description string `json:"description"`
	Evidence    string `json:"evidence_from_analysis"`
}

// Concern is a risk paired with a mitigation.
type Concern struct {
	Risk        string `json:"risk"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation_strategy"`
}

// CompetitionProfile summarizes the competitive landscape at a location.
type CompetitionProfile struct {
	TotalCompetitors    int     `json:"total_competitors"`
	DensityPerKm2       float64 `json:"density_per_km2"`
	ChainDominancePct   float64 `json:"chain_dominance_pct"`
	AvgCompetitorRating float64 `json:"avg_competitor_rating"`
	HighPerformersCount int     `json:"high_performers_count"`
}

// MarketCharacteristics describes demand-side conditions.
type MarketCharacteristics struct {
	PopulationDensity    string `json:"population_density"`
	IncomeLevel          string `json:"income_level"`
	InfrastructureAccess string `json:"infrastructure_access"`
	FootTrafficPattern   string `json:"foot_traffic_pattern"`
	RentalCostTier       string `json:"rental_cost_tier"`
}

// Recommendation is the top-ranked location.
type Recommendation struct {
	LocationName         string                `json:"location_name"`
	Area                 string                `json:"area"`
	OpportunityType      string                `json:"opportunity_type"`
	OverallScore         int                   `json:"overall_score"`
	Strengths            []Strength            `json:"strengths"`
	Concerns             []Concern             `json:"concerns"`
	Competition          CompetitionProfile    `json:"competition"`
	Market               MarketCharacteristics `json:"market"`
	BestCustomerSegment  string                `json:"best_customer_segment"`
	EstimatedFootTraffic string                `json:"estimated_foot_traffic"`
	NextSteps            []string              `json:"next_steps"`
}

// Alternative is an abbreviated runner-up location.
type Alternative struct {
	LocationName    string `json:"location_name"`
	Area            string `json:"area"`
	OverallScore    int    `json:"overall_score"`
	OpportunityType string `json:"opportunity_type"`
	KeyStrength     string `json:"key_strength"`
	KeyConcern      string `json:"key_concern"`
	WhyNotTop       string `json:"why_not_top"`
}

// LocationIntelligenceReport is the final structured output of a run.
type LocationIntelligenceReport struct {
	TargetLocation        string         `json:"target_location"`
	BusinessType          string         `json:"business_type"`
	AnalysisDate          string         `json:"analysis_date"`
	MarketValidation      string         `json:"market_validation"`
	TotalCompetitorsFound int            `json:"total_competitors_found"`
	ZonesAnalyzed         int            `json:"zones_analyzed"`
	TopRecommendation     Recommendation `json:"top_recommendation"`
	Alternatives          []Alternative  `json:"alternative_locations"`
	KeyInsights           []string       `json:"key_insights"`
	Methodology           string         `json:"methodology_summary"`
}

// Expected list sizes. They are reported by the quality check rather than
// enforced during validation.
const (
	MinAlternatives = 2
	MaxAlternatives = 3
	MinInsights     = 4
	MaxInsights     = 6
)

func score(name, desc string) schema.Field {
	return schema.Integer(name, desc).Range(0, 100)
}

// Schema is the descriptor the strategy stage output is validated against.
var Schema = &schema.Descriptor{
	Name:        "LocationIntelligenceReport",
	Description: "Strategic location recommendation for a business type in a target area",
	Fields: []schema.Field{
		schema.String("target_location", "Location that was analyzed"),
		schema.String("business_type", "Business type that was analyzed"),
		schema.String("analysis_date", "Date of the analysis"),
		schema.String("market_validation", "Overall verdict on market viability"),
		schema.Integer("total_competitors_found", "Number of competitors identified").Range(0, 1e6),
		schema.Integer("zones_analyzed", "Number of zones evaluated").Range(0, 1e4),
		schema.Object("top_recommendation", "Best location",
			schema.String("location_name", "Specific location name"),
			schema.String("area", "Neighborhood or area"),
			schema.String("opportunity_type", "Category such as 'Metro First-Mover'"),
			score("overall_score", "Weighted composite score 0-100"),
			schema.Array("strengths", "Top 3-4 strengths", schema.Object("strength", "",
				schema.String("factor", ""),
				schema.String("description", ""),
				schema.String("evidence_from_analysis", ""),
			)),
			schema.Array("concerns", "Top 2-3 risks", schema.Object("concern", "",
				schema.String("risk", ""),
				schema.String("description", ""),
				schema.String("mitigation_strategy", ""),
			)),
			schema.Object("competition", "Competition profile",
				schema.Integer("total_competitors", "").Range(0, 1e6),
				schema.Number("density_per_km2", "").Range(0, 1e6),
				schema.Number("chain_dominance_pct", "").Range(0, 100),
				schema.Number("avg_competitor_rating", "").Range(0, 5),
				schema.Integer("high_performers_count", "").Range(0, 1e6),
			),
			schema.Object("market", "Market characteristics",
				schema.String("population_density", ""),
				schema.String("income_level", ""),
				schema.String("infrastructure_access", ""),
				schema.String("foot_traffic_pattern", ""),
				schema.String("rental_cost_tier", ""),
			),
			schema.String("best_customer_segment", "Primary target demographic"),
			schema.String("estimated_foot_traffic", "Expected foot traffic"),
			schema.Array("next_steps", "3-5 actionable recommendations", schema.String("step", "")),
		),
		schema.Array("alternative_locations", "2-3 alternative locations", schema.Object("alternative", "",
			schema.String("location_name", ""),
			schema.String("area", ""),
			score("overall_score", "Score 0-100"),
			schema.String("opportunity_type", ""),
			schema.String("key_strength", ""),
			schema.String("key_concern", ""),
			schema.String("why_not_top", ""),
		)),
		schema.Array("key_insights", "4-6 strategic insights", schema.String("insight", "")),
		schema.String("methodology_summary", "How the analysis was performed"),
	},
}

// Decode binds a validated strategy output into a report.
func Decode(v any) (*LocationIntelligenceReport, error) {
	var r LocationIntelligenceReport
	if err := schema.Bind(v, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// QualityWarnings returns list-size issues that do not fail validation.
func (r *LocationIntelligenceReport) QualityWarnings() []string {
	var out []string
	if n := len(r.Alternatives); n < MinAlternatives || n > MaxAlternatives {
		out = append(out, "alternative_locations count outside 2-3")
	}
	if n := len(r.KeyInsights); n < MinInsights || n > MaxInsights {
		out = append(out, "key_insights count outside 4-6")
	}
	return out
}
