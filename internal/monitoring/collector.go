package monitoring

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sells-group/locus/internal/model"
)

// Snapshot is a point-in-time view of the analysis runs finished within a
// lookback window.
type Snapshot struct {
	Runs           int            `json:"runs"`
	Completed      int            `json:"completed"`
	Failed         int            `json:"failed"`
	FailureRate    float64        `json:"failure_rate"`
	CostUSD        float64        `json:"cost_usd"`
	AvgCostUSD     float64        `json:"avg_cost_usd"`
	AvgTokens      int64          `json:"avg_tokens"`
	FailuresByKind map[string]int `json:"failures_by_kind,omitempty"`
	// StageFailures is ordered by count, highest first.
	StageFailures []StageFailure `json:"stage_failures,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// StageFailure counts runs that stopped at one stage with one error kind.
// Share is relative to every run in the window.
type StageFailure struct {
	Stage string  `json:"stage"`
	Kind  string  `json:"kind"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// defaultMaxRuns bounds the run history kept for snapshots.
const defaultMaxRuns = 1000

type runSample struct {
	finished time.Time
	status   model.RunStatus
	stage    string
	kind     string
	tokens   int64
	cost     float64
}

// Collector observes pipeline runs. It feeds the Prometheus instruments and
// keeps a bounded in-memory history for alert evaluation.
type Collector struct {
	metrics *Metrics
	now     func() time.Time
	max     int

	mu   sync.Mutex
	runs []runSample
}

// NewCollector creates a collector. metrics may be nil to keep only the
// in-memory history.
func NewCollector(metrics *Metrics) *Collector {
	return &Collector{metrics: metrics, now: time.Now, max: defaultMaxRuns}
}

// StageFinished records a finished stage.
func (c *Collector) StageFinished(_ context.Context, _ string, r model.StageResult) {
	if c.metrics == nil {
		return
	}
	c.metrics.StageDuration.WithLabelValues(r.Name, string(r.Status)).Observe(float64(r.Duration) / 1000)
	c.metrics.StageAttempts.WithLabelValues(r.Name).Add(float64(r.Attempts))
	c.metrics.TokensTotal.WithLabelValues("input").Add(float64(r.TokenUsage.InputTokens))
	c.metrics.TokensTotal.WithLabelValues("output").Add(float64(r.TokenUsage.OutputTokens))
}

// RunFinished records a finished run.
func (c *Collector) RunFinished(_ context.Context, r *model.Run) {
	if c.metrics != nil {
		c.metrics.RunsTotal.WithLabelValues(string(r.Status)).Inc()
		c.metrics.RunDuration.Observe(r.Duration().Seconds())
		if r.Status == model.RunStatusFailed {
			c.metrics.FailuresTotal.WithLabelValues(r.FailedStage, r.ErrorKind).Inc()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, runSample{
		finished: c.now(),
		status:   r.Status,
		stage:    r.FailedStage,
		kind:     r.ErrorKind,
		tokens:   r.TokenUsage.Total(),
		cost:     r.TokenUsage.Cost,
	})
	if len(c.runs) > c.max {
		c.runs = c.runs[len(c.runs)-c.max:]
	}
}

// Collect summarizes runs finished within the lookback window.
func (c *Collector) Collect(_ context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	type stageKind struct{ stage, kind string }
	byStage := make(map[stageKind]int)
	var tokens int64

	c.mu.Lock()
	for _, r := range c.runs {
		if r.finished.Before(cutoff) {
			continue
		}
		snap.Runs++
		snap.CostUSD += r.cost
		tokens += r.tokens
		switch r.status {
		case model.RunStatusCompleted:
			snap.Completed++
		case model.RunStatusFailed:
			snap.Failed++
			if snap.FailuresByKind == nil {
				snap.FailuresByKind = make(map[string]int)
			}
			snap.FailuresByKind[r.kind]++
			byStage[stageKind{r.stage, r.kind}]++
		}
	}
	c.mu.Unlock()

	if snap.Runs == 0 {
		return snap, nil
	}
	n := float64(snap.Runs)
	snap.FailureRate = float64(snap.Failed) / n
	snap.AvgCostUSD = snap.CostUSD / n
	snap.AvgTokens = tokens / int64(snap.Runs)

	for k, count := range byStage {
		snap.StageFailures = append(snap.StageFailures, StageFailure{
			Stage: k.stage,
			Kind:  k.kind,
			Count: count,
			Share: float64(count) / n,
		})
	}
	slices.SortFunc(snap.StageFailures, func(a, b StageFailure) int {
		if d := cmp.Compare(b.Count, a.Count); d != 0 {
			return d
		}
		if d := cmp.Compare(a.Stage, b.Stage); d != 0 {
			return d
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
	return snap, nil
}
