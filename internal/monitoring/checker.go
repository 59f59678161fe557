package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/locus/internal/config"
)

// Snapshotter produces run snapshots over a lookback window.
type Snapshotter interface {
	Collect(ctx context.Context, lookbackHours int) (*Snapshot, error)
}

// Checker runs periodic alert checks in the background. An alert that
// was sent is held back until its cooldown passes, so a stage that keeps
// failing pages once per cooldown rather than once per tick.
type Checker struct {
	collector Snapshotter
	alerter   *Alerter
	cfg       config.MonitoringConfig
	now       func() time.Time

	lastSent map[string]time.Time
}

// NewChecker creates a background alert checker.
func NewChecker(collector Snapshotter, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		now:       time.Now,
		lastSent:  make(map[string]time.Time),
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
		zap.Int("cooldown_mins", c.cfg.CooldownMins),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

// check evaluates one snapshot and returns the number of alerts sent.
func (c *Checker) check(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect run snapshot", zap.Error(err))
		return 0
	}

	triggered := c.alerter.Evaluate(snap)
	if len(triggered) == 0 {
		log.Debug("monitoring: no alerts triggered", zap.Int("runs", snap.Runs))
		return 0
	}

	now := c.now()
	cooldown := time.Duration(c.cfg.CooldownMins) * time.Minute
	var due []Alert
	for _, a := range triggered {
		if last, ok := c.lastSent[a.Key()]; ok && now.Sub(last) < cooldown {
			continue
		}
		due = append(due, a)
	}
	if len(due) == 0 {
		log.Debug("monitoring: alerts suppressed by cooldown", zap.Int("alerts_triggered", len(triggered)))
		return 0
	}

	for _, a := range due {
		log.Warn("monitoring: alert",
			zap.String("type", string(a.Type)),
			zap.String("severity", a.Severity),
			zap.String("stage", a.Stage),
			zap.String("kind", a.Kind),
			zap.String("message", a.Message),
		)
	}

	if err := c.alerter.Send(ctx, due); err != nil {
		log.Error("monitoring: failed to send alerts", zap.Error(err), zap.Int("alerts", len(due)))
		return 0
	}
	for _, a := range due {
		c.lastSent[a.Key()] = now
	}

	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(triggered)),
		zap.Int("alerts_sent", len(due)),
	)
	return len(due)
}
