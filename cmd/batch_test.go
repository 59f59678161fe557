package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/pipeline"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requests.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseBatchCSV(t *testing.T) {
	path := writeCSV(t, `Target_Location,business_type,message,maps_api_key
"Indiranagar, Bangalore",coffee shop,,key-1
Koramangala, gym ,I want a gym,
`)

	rows, err := parseBatchCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Line)
	assert.Equal(t, "Indiranagar, Bangalore", rows[0].Input.TargetLocation)
	assert.Equal(t, "coffee shop", rows[0].Input.BusinessType)
	assert.Equal(t, "key-1", rows[0].Input.MapsAPIKey)

	assert.Equal(t, 2, rows[1].Line)
	assert.Equal(t, "gym", rows[1].Input.BusinessType)
	assert.Equal(t, "I want a gym", rows[1].Input.Message)
}

func TestParseBatchCSV_OptionalColumnsAbsent(t *testing.T) {
	path := writeCSV(t, "target_location,business_type\nHSR Layout,bakery\n")

	rows, err := parseBatchCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Input.Message)
	assert.Empty(t, rows[0].Input.MapsAPIKey)
}

func TestParseBatchCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing column", "target_location,message\nHSR Layout,hi\n", `missing required column "business_type"`},
		{"header only", "target_location,business_type\n", "no data rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBatchCSV(writeCSV(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := parseBatchCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func readResult(t *testing.T, dir string, row int) batchResult {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("row-%04d.json", row)))
	require.NoError(t, err)
	var res batchResult
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}

func TestProcessBatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	rows := []batchRow{
		{Line: 1, Input: pipeline.Input{TargetLocation: "Indiranagar", BusinessType: "coffee shop", MapsAPIKey: "secret"}},
		{Line: 2, Input: pipeline.Input{TargetLocation: "Koramangala"}},
		{Line: 3, Input: pipeline.Input{TargetLocation: "HSR Layout", BusinessType: "bakery"}},
	}

	parser := &fakeParser{}
	runner := &fakeRunner{}
	fn := func(ctx context.Context, in pipeline.Input) (*runOutput, error) {
		if in.BusinessType == "" {
			return nil, fault.NeedsClarification("business_type")
		}
		return analyze(ctx, parser, runner, in)
	}

	require.NoError(t, processBatch(context.Background(), rows, 2, dir, fn))

	first := readResult(t, dir, 1)
	assert.Empty(t, first.Error)
	require.NotNil(t, first.Result)
	assert.Equal(t, "run-1", first.Result.Run.ID)
	assert.Empty(t, first.Input.MapsAPIKey)

	second := readResult(t, dir, 2)
	assert.Nil(t, second.Result)
	assert.Equal(t, []string{"business_type"}, second.Missing)
	assert.True(t, strings.Contains(second.Error, "business_type"))

	third := readResult(t, dir, 3)
	require.NotNil(t, third.Result)
	assert.Equal(t, "bakery", third.Result.Run.BusinessType)

	assert.Len(t, runner.calls(), 2)
}

func TestProcessBatch_Empty(t *testing.T) {
	called := false
	err := processBatch(context.Background(), nil, 2, t.TempDir(), func(context.Context, pipeline.Input) (*runOutput, error) {
		called = true
		return nil, nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestProcessBatch_WriteFailureAborts(t *testing.T) {
	// A regular file where the output directory should be.
	blocker := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := processBatch(context.Background(), []batchRow{{Line: 1}}, 1, blocker,
		func(context.Context, pipeline.Input) (*runOutput, error) { return nil, nil })
	require.Error(t, err)
}
