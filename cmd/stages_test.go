package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locus/internal/config"
	"github.com/sells-group/locus/internal/pipeline"
)

func testConfig() *config.Config {
	return &config.Config{
		Retry:    config.RetryConfig{MaxAttempts: 5, InitialDelaySec: 5, MaxDelaySec: 60},
		Pipeline: config.PipelineConfig{StageTimeoutSecs: 600},
		Maps:     config.MapsConfig{RadiusMeters: 5000},
	}
}

func TestBuildStages(t *testing.T) {
	stages, err := buildStages(testConfig(), pipeline.Deps{})
	require.NoError(t, err)
	require.Len(t, stages, 5)

	for _, st := range stages {
		assert.Equal(t, 5, st.Retry.MaxAttempts, st.Name)
		assert.Equal(t, "10m0s", st.Timeout.String(), st.Name)
	}
}

func TestBuildStages_Profile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`profile:
  stages:
    market_research:
      tier: pro
      timeout_secs: 60
`), 0o644))

	c := testConfig()
	c.Pipeline.ProfilePath = path
	stages, err := buildStages(c, pipeline.Deps{})
	require.NoError(t, err)
	assert.Equal(t, "pro", string(stages[0].Tier))
	assert.Equal(t, "1m0s", stages[0].Timeout.String())
	assert.Equal(t, "pro", string(stages[1].Tier))

	c.Pipeline.ProfilePath = path + ".missing"
	_, err = buildStages(c, pipeline.Deps{})
	require.Error(t, err)
}

func TestPrintStages(t *testing.T) {
	stages, err := buildStages(testConfig(), pipeline.Deps{})
	require.NoError(t, err)

	var buf bytes.Buffer
	printStages(&buf, stages)
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[0], "STAGE")
	assert.Contains(t, lines[2], "market_research")
	assert.Contains(t, lines[3], "competitor_mapping")
	assert.Contains(t, lines[3], "nearby_places")
	assert.Contains(t, lines[6], "report_generator")
	assert.Contains(t, lines[6], "strategic_report")
}
