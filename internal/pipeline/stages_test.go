package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/geo"
	"github.com/sells-group/locus/internal/reasoner"
	"github.com/sells-group/locus/internal/report"
	"github.com/sells-group/locus/internal/research"
	"github.com/sells-group/locus/internal/state"
)

func TestDefaultStages(t *testing.T) {
	t.Parallel()

	stages := DefaultStages(Deps{Places: &fakeSearcher{}}, StageConfig{Timeout: time.Minute})
	require.Len(t, stages, 5)

	tiers := []reasoner.Tier{reasoner.TierFast, reasoner.TierPro, reasoner.TierPro, reasoner.TierPro, reasoner.TierFast}
	for i, st := range stages {
		assert.Equal(t, state.StageOutputKeys[i], st.OutputKey, st.Name)
		assert.Equal(t, tiers[i], st.Tier, st.Name)
		assert.Equal(t, time.Minute, st.Timeout, st.Name)
		assert.NotEmpty(t, st.System, st.Name)
	}

	assert.True(t, stages[0].Grounded)
	assert.Empty(t, stages[0].Tools, "no researcher configured")
	assert.Equal(t, ToolNearbyPlaces, stages[1].Tools[0].Name())
	assert.Equal(t, ToolZoneMetrics, stages[2].Tools[0].Name())
	assert.Same(t, report.Schema, stages[3].Schema)
	assert.Len(t, stages[3].After, 1)
	assert.Nil(t, stages[4].Schema)
}

func TestDefaultStages_OptionalDeps(t *testing.T) {
	t.Parallel()

	stages := DefaultStages(Deps{
		Researcher: fakeResearcher{},
		Places:     &fakeSearcher{},
		Artifacts:  &memArtifacts{},
	}, StageConfig{})

	require.Len(t, stages[0].Tools, 1)
	assert.Equal(t, ToolWebResearch, stages[0].Tools[0].Name())
	for _, st := range stages {
		assert.NotEmpty(t, st.After, st.Name)
	}
	assert.Len(t, stages[3].After, 2)
}

func TestStageTemplates_OnlyUseKnownKeys(t *testing.T) {
	t.Parallel()

	known := map[string]bool{
		state.KeyTargetLocation: true,
		state.KeyBusinessType:   true,
		state.KeyCurrentDate:    true,
	}
	for _, st := range DefaultStages(Deps{Researcher: fakeResearcher{}, Places: &fakeSearcher{}}, StageConfig{}) {
		for _, tool := range st.Tools {
			known[tool.Name()] = true
		}
		for _, key := range st.Template.Required() {
			assert.True(t, known[key], "stage %s uses %s before it is produced", st.Name, key)
		}
		known[st.OutputKey] = true
	}
}

func TestNearbyPlacesTool(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{result: indiranagarSearch()}
	sess := state.New()
	sess.Set(state.KeyTargetLocation, "Indiranagar, Bangalore")
	sess.Set(state.KeyBusinessType, "coffee shop")

	out, err := NearbyPlacesTool(s, 1500).Call(context.Background(), sess)
	require.NoError(t, err)
	assert.Same(t, s.result, out)
	assert.Equal(t, geo.SearchRequest{
		Location:     "Indiranagar, Bangalore",
		BusinessType: "coffee shop",
		RadiusMeters: 1500,
	}, s.requests()[0])
}

func TestResearchTool(t *testing.T) {
	t.Parallel()

	f := &research.Findings{Provider: "jina", Summary: "notes"}
	sess := state.New()
	out, err := ResearchTool(fakeResearcher{findings: f}).Call(context.Background(), sess)
	require.NoError(t, err)
	assert.Same(t, f, out)
}

func TestZoneMetricsTool(t *testing.T) {
	t.Parallel()

	sess := state.New()
	_, err := ZoneMetricsTool().Call(context.Background(), sess)
	assert.True(t, fault.Is(err, fault.KindMissingDependency))

	sess.Set(state.KeyCompetitors, &geo.Landscape{Search: indiranagarSearch()})
	out, err := ZoneMetricsTool().Call(context.Background(), sess)
	require.NoError(t, err)
	m := out.(*geo.GapMetrics)
	assert.Equal(t, 3, m.TotalCompetitors)
	require.Len(t, m.Zones, 3)
	assert.Equal(t, 2, m.Zones[0].Competitors)
}

func TestComposeLandscape(t *testing.T) {
	t.Parallel()

	_, err := composeLandscape(ComposeInput{Response: &reasoner.Response{Text: "x"}, Tools: map[string]any{}})
	assert.Error(t, err)

	s := indiranagarSearch()
	v, err := composeLandscape(ComposeInput{
		Response: &reasoner.Response{Text: "Chains dominate."},
		Tools:    map[string]any{ToolNearbyPlaces: s},
	})
	require.NoError(t, err)
	l := v.(*geo.Landscape)
	assert.Same(t, s, l.Search)
	assert.Contains(t, l.String(), "Competitors found: 3")
	assert.Contains(t, l.String(), "Chains dominate.")
}

func TestGapAnalysis_String(t *testing.T) {
	t.Parallel()

	g := &GapAnalysis{Metrics: geo.Metrics(indiranagarSearch()), Narrative: "Inner band is open."}
	out := g.String()
	assert.Contains(t, out, "Competitors: 3")
	assert.Contains(t, out, "| inner | 1 |")
	assert.Contains(t, out, "| outer | 0 |")
	assert.Contains(t, out, "Inner band is open.")

	assert.Equal(t, "only text", (&GapAnalysis{Narrative: "only text"}).String())
}

func TestComposeStrategy(t *testing.T) {
	t.Parallel()

	v, err := composeStrategy(ComposeInput{Response: &reasoner.Response{Value: reportFixture(t)}})
	require.NoError(t, err)
	assert.Equal(t, "12th Main Road", v.(*report.LocationIntelligenceReport).TopRecommendation.LocationName)

	_, err = composeStrategy(ComposeInput{Response: &reasoner.Response{Value: map[string]any{"zones_analyzed": "three"}}})
	assert.True(t, fault.Is(err, fault.KindSchemaViolation))
}
