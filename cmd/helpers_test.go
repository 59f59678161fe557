package main

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/locus/internal/model"
	"github.com/sells-group/locus/internal/pipeline"
	"github.com/sells-group/locus/internal/report"
)

type fakeParser struct {
	err error
}

func (f *fakeParser) Parse(_ context.Context, in pipeline.Input) (*pipeline.Params, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Params{
		TargetLocation: in.TargetLocation,
		BusinessType:   in.BusinessType,
		MapsAPIKey:     in.MapsAPIKey,
		CurrentDate:    "2026-10-16",
	}, nil
}

type fakeRunner struct {
	mu     sync.Mutex
	err    error
	params []pipeline.Params
	// partial makes a failed run still return its result.
	partial bool
}

func (f *fakeRunner) Run(_ context.Context, p pipeline.Params) (*pipeline.RunResult, error) {
	f.mu.Lock()
	f.params = append(f.params, p)
	f.mu.Unlock()

	res := &pipeline.RunResult{Run: model.Run{
		ID:             "run-1",
		TargetLocation: p.TargetLocation,
		BusinessType:   p.BusinessType,
		Status:         model.RunStatusCompleted,
		StartedAt:      time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
		FinishedAt:     time.Date(2026, 10, 16, 9, 3, 0, 0, time.UTC),
	}}

	if f.err != nil {
		if !f.partial {
			return nil, f.err
		}
		res.Status = model.RunStatusFailed
		res.Error = f.err.Error()
		return res, f.err
	}

	res.Report = &report.LocationIntelligenceReport{
		TargetLocation: p.TargetLocation,
		BusinessType:   p.BusinessType,
		TopRecommendation: report.Recommendation{
			LocationName: "100 Feet Road",
			OverallScore: 82,
		},
	}
	res.Output = &pipeline.ExecutiveReport{Summary: "Open on 100 Feet Road.", HTML: "<html></html>"}
	return res, nil
}

func (f *fakeRunner) Stages() []pipeline.StageInfo {
	return []pipeline.StageInfo{
		{Name: pipeline.StageMarketResearch, Ordinal: 1, OutputKey: "market_research_findings"},
		{Name: pipeline.StageCompetitorMapping, Ordinal: 2, OutputKey: "competitor_analysis"},
	}
}

func (f *fakeRunner) calls() []pipeline.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Params(nil), f.params...)
}
