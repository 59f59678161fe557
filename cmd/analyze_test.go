package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/model"
	"github.com/sells-group/locus/internal/pipeline"
)

func TestAnalyze(t *testing.T) {
	runner := &fakeRunner{}
	out, err := analyze(context.Background(), &fakeParser{}, runner, pipeline.Input{
		TargetLocation: "Indiranagar, Bangalore",
		BusinessType:   "coffee shop",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, out.Run.Status)
	assert.Equal(t, "<html></html>", out.ExecutiveHTML)
	assert.Equal(t, "2026-10-16", runner.calls()[0].CurrentDate)
}

func TestAnalyze_Clarification(t *testing.T) {
	runner := &fakeRunner{}
	out, err := analyze(context.Background(), &fakeParser{err: fault.NeedsClarification("target_location")}, runner, pipeline.Input{})
	assert.Nil(t, out)
	var ce *fault.ClarificationError
	require.ErrorAs(t, err, &ce)
	assert.Empty(t, runner.calls())
}

func TestAnalyze_PartialResult(t *testing.T) {
	fail := &pipeline.RunFailure{Stage: pipeline.StageGapAnalysis, Kind: fault.KindProvider, Err: assert.AnError}
	out, err := analyze(context.Background(), &fakeParser{}, &fakeRunner{err: fail, partial: true}, pipeline.Input{
		TargetLocation: "Indiranagar", BusinessType: "gym",
	})
	require.ErrorIs(t, err, fail)
	require.NotNil(t, out)
	assert.Equal(t, model.RunStatusFailed, out.Run.Status)
	assert.Nil(t, out.Report)
}

func TestWriteOutput(t *testing.T) {
	v := map[string]string{"status": "ok"}

	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, "", v))
	assert.JSONEq(t, `{"status":"ok"}`, buf.String())

	path := filepath.Join(t.TempDir(), "result.json")
	buf.Reset()
	require.NoError(t, writeOutput(&buf, path, v))
	assert.Empty(t, buf.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, v, got)

	require.Error(t, writeOutput(&buf, filepath.Join(t.TempDir(), "no", "such", "dir.json"), v))
}
