package pipeline

import (
	"time"

	"github.com/sells-group/locus/internal/reasoner"
	"github.com/sells-group/locus/internal/report"
	"github.com/sells-group/locus/internal/research"
	"github.com/sells-group/locus/internal/resilience"
	"github.com/sells-group/locus/internal/state"
)

// Stage names in execution order.
const (
	StageMarketResearch    = "market_research"
	StageCompetitorMapping = "competitor_mapping"
	StageGapAnalysis       = "gap_analysis"
	StageStrategyAdvisor   = "strategy_advisor"
	StageReportGenerator   = "report_generator"
)

// Deps are the external collaborators of the default stages.
type Deps struct {
	// Researcher is optional; without it market research relies on the
	// reasoner's own grounding.
	Researcher research.Researcher
	Places     PlaceSearcher
	// Artifacts is optional.
	Artifacts ArtifactWriter
}

// StageConfig holds the settings shared by the default stages.
type StageConfig struct {
	Retry        resilience.RetryConfig
	Timeout      time.Duration
	RadiusMeters int
}

// DefaultStages builds the five analysis stages.
func DefaultStages(deps Deps, cfg StageConfig) []Stage {
	base := func(name, key string, tmpl string, tier reasoner.Tier) Stage {
		return Stage{
			Name:      name,
			OutputKey: key,
			System:    analystSystem,
			Template:  NewTemplate(tmpl),
			Tier:      tier,
			Retry:     cfg.Retry,
			Timeout:   cfg.Timeout,
		}
	}

	market := base(StageMarketResearch, state.KeyMarketResearch, marketResearchPrompt, reasoner.TierFast)
	market.Grounded = true
	if deps.Researcher != nil {
		market.Tools = []Tool{ResearchTool(deps.Researcher)}
	}

	competitors := base(StageCompetitorMapping, state.KeyCompetitors, competitorMappingPrompt, reasoner.TierPro)
	competitors.Tools = []Tool{NearbyPlacesTool(deps.Places, cfg.RadiusMeters)}
	competitors.Compose = composeLandscape

	gap := base(StageGapAnalysis, state.KeyGapAnalysis, gapAnalysisPrompt, reasoner.TierPro)
	gap.Before = []BeforeHook{RequireKeys(state.KeyMarketResearch, state.KeyCompetitors)}
	gap.Tools = []Tool{ZoneMetricsTool()}
	gap.Compose = composeGapAnalysis

	strategy := base(StageStrategyAdvisor, state.KeyStrategicReport, strategyAdvisorPrompt, reasoner.TierPro)
	strategy.Before = []BeforeHook{RequireKeys(state.KeyMarketResearch, state.KeyCompetitors, state.KeyGapAnalysis)}
	strategy.Schema = report.Schema
	strategy.Compose = composeStrategy
	strategy.After = []AfterHook{ReportQuality()}

	exec := base(StageReportGenerator, state.KeyExecutiveReport, reportGeneratorPrompt, reasoner.TierFast)
	exec.Before = []BeforeHook{RequireKeys(state.KeyStrategicReport)}
	exec.Compose = composeExecutive

	stages := []Stage{market, competitors, gap, strategy, exec}
	if deps.Artifacts != nil {
		for i := range stages {
			stages[i].After = append(stages[i].After, WriteArtifacts(deps.Artifacts))
		}
	}
	return stages
}
