package state

// Keys written by intake.
const (
	KeyTargetLocation = "target_location"
	KeyBusinessType   = "business_type"
	KeyMapsAPIKey     = "maps_api_key"
	KeyCurrentDate    = "current_date"
)

// Keys written by the analysis stages, in execution order.
const (
	KeyMarketResearch  = "market_research_findings"
	KeyCompetitors     = "competitor_analysis"
	KeyGapAnalysis     = "gap_analysis"
	KeyStrategicReport = "strategic_report"
	KeyExecutiveReport = "executive_report"
)

// StageOutputKeys lists the stage output keys in the order they are written.
var StageOutputKeys = []string{
	KeyMarketResearch,
	KeyCompetitors,
	KeyGapAnalysis,
	KeyStrategicReport,
	KeyExecutiveReport,
}
