package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locus/internal/config"
	"github.com/sells-group/locus/internal/fault"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate AlertType = "run_failure_rate"
	AlertStageFailures  AlertType = "stage_failures"
	AlertCostPerRun     AlertType = "cost_per_run"
)

// Severity levels, most urgent first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Alert is one breached threshold. Stage and Kind are set for stage
// failure alerts.
type Alert struct {
	Type     AlertType `json:"type"`
	Severity string    `json:"severity"`
	Stage    string    `json:"stage,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	Message  string    `json:"message"`
	// Action suggests where an operator should look first.
	Action    string    `json:"action,omitempty"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Key identifies an alert for de-duplication across checks.
func (a Alert) Key() string {
	return string(a.Type) + "/" + a.Stage + "/" + a.Kind
}

// kindResponse maps a failure kind to how urgent a cluster of it is and
// what usually causes it.
var kindResponse = map[fault.Kind]struct {
	severity string
	action   string
}{
	fault.KindConfiguration:     {SeverityCritical, "check provider credentials and the maps key; every run will fail the same way"},
	fault.KindMissingDependency: {SeverityCritical, "a stage ran without an earlier output; check stage profiles and hooks"},
	fault.KindHook:              {SeverityCritical, "a stage check is rejecting output; see the hook error in the run log"},
	fault.KindInternal:          {SeverityCritical, "unclassified error; see the run log"},
	fault.KindSchemaViolation:   {SeverityHigh, "the model is returning malformed reports; review the strategy prompt or enable reformulate_on_schema_violation"},
	fault.KindProvider:          {SeverityHigh, "a provider is rejecting requests; check quotas, model names and API status"},
	fault.KindTransientNetwork:  {SeverityMedium, "retries are exhausting; check provider latency or raise retry limits"},
	fault.KindCanceled:          {SeverityMedium, "runs are hitting the run timeout or callers are disconnecting"},
	fault.KindLocationNotFound:  {SeverityLow, "requests name places the geocoder cannot resolve; check intake parsing"},
}

func responseFor(kind string) (severity, action string) {
	if r, ok := kindResponse[fault.Kind(kind)]; ok {
		return r.severity, r.action
	}
	return SeverityHigh, ""
}

// Alerter evaluates snapshots against configured thresholds and posts
// breaches to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates an Alerter.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Evaluate returns the alerts a snapshot triggers. Nothing is evaluated
// until MinRuns runs have finished in the window.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	if snap.Runs == 0 || snap.Runs < a.cfg.MinRuns {
		return nil
	}
	now := a.now().UTC()
	var alerts []Alert

	if t := a.cfg.FailureRateThreshold; t > 0 && snap.FailureRate > t {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("%d of %d analyses failed in the last %dh (%.0f%%, threshold %.0f%%)",
				snap.Failed, snap.Runs, snap.LookbackHours, snap.FailureRate*100, t*100),
			Value:     snap.FailureRate,
			Threshold: t,
			Timestamp: now,
		})
	}

	if t := a.cfg.StageFailureThreshold; t > 0 {
		for _, sf := range snap.StageFailures {
			if sf.Share < t {
				continue
			}
			severity, action := responseFor(sf.Kind)
			alerts = append(alerts, Alert{
				Type:     AlertStageFailures,
				Severity: severity,
				Stage:    sf.Stage,
				Kind:     sf.Kind,
				Message: fmt.Sprintf("%s: %d of %d analyses stopped here (%s)",
					sf.Stage, sf.Count, snap.Runs, fault.Kind(sf.Kind).Description()),
				Action:    action,
				Value:     sf.Share,
				Threshold: t,
				Timestamp: now,
			})
		}
	}

	if t := a.cfg.CostPerRunUSD; t > 0 && snap.AvgCostUSD > t {
		alerts = append(alerts, Alert{
			Type:     AlertCostPerRun,
			Severity: SeverityMedium,
			Message: fmt.Sprintf("average model cost $%.3f per analysis exceeds $%.3f (%d runs, $%.2f in the last %dh)",
				snap.AvgCostUSD, t, snap.Runs, snap.CostUSD, snap.LookbackHours),
			Action:    "check which stages use the pro tier in the stage profile",
			Value:     snap.AvgCostUSD,
			Threshold: t,
			Timestamp: now,
		})
	}

	return alerts
}

// webhookPayload is the body posted for one check.
type webhookPayload struct {
	Source string  `json:"source"`
	Alerts []Alert `json:"alerts"`
}

// Send posts alerts to the webhook in a single request. It is a no-op
// without a webhook URL or alerts.
func (a *Alerter) Send(ctx context.Context, alerts []Alert) error {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(webhookPayload{Source: "locus", Alerts: alerts})
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alerts")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
