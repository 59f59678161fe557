// Package model holds the serializable records of a pipeline run.
package model

import "time"

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the summary of one pipeline run.
type Run struct {
	ID             string        `json:"id"`
	TargetLocation string        `json:"target_location"`
	BusinessType   string        `json:"business_type"`
	Status         RunStatus     `json:"status"`
	Stages         []StageResult `json:"stages"`
	TokenUsage     TokenUsage    `json:"token_usage"`
	Error          string        `json:"error,omitempty"`
	ErrorKind      string        `json:"error_kind,omitempty"`
	FailedStage    string        `json:"failed_stage,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// Duration is the wall-clock time of the run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StageStatus is the lifecycle state of a stage within a run.
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusBeforeHook StageStatus = "before_hook"
	StageStatusExecuting  StageStatus = "executing"
	StageStatusAfterHook  StageStatus = "after_hook"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusFailed     StageStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s StageStatus) Terminal() bool {
	return s == StageStatusCompleted || s == StageStatusFailed
}

// StageResult holds the outcome of one stage.
type StageResult struct {
	Name       string         `json:"name"`
	Ordinal    int            `json:"ordinal"`
	OutputKey  string         `json:"output_key"`
	Status     StageStatus    `json:"status"`
	Duration   int64          `json:"duration_ms"`
	Attempts   int            `json:"attempts"`
	TokenUsage TokenUsage     `json:"token_usage"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Annotate records a metadata entry on the stage result.
func (s *StageResult) Annotate(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
}
