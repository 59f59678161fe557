// Package pipeline runs the location strategy analysis: intake, then a
// fixed sequence of stages sharing one session state per run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/model"
	"github.com/sells-group/locus/internal/reasoner"
	"github.com/sells-group/locus/internal/report"
	"github.com/sells-group/locus/internal/resilience"
	"github.com/sells-group/locus/internal/state"
)

// Params are the validated inputs of one run.
type Params struct {
	TargetLocation string
	BusinessType   string
	MapsAPIKey     string
	CurrentDate    string
}

// RunFailure is the error a failed run ends with. Its message names the
// stage and a user-facing category; the provider detail is reachable
// through Unwrap.
type RunFailure struct {
	RunID string
	Stage string
	Kind  fault.Kind
	Err   error
}

func (f *RunFailure) Error() string {
	return fmt.Sprintf("stage %s failed: %s", f.Stage, f.Kind.Description())
}

func (f *RunFailure) Unwrap() error {
	return f.Err
}

// RunResult is the outcome of one run. State is the run's session; it is
// not shared with any other run.
type RunResult struct {
	model.Run
	Output any
	Report *report.LocationIntelligenceReport
	State  *state.Session
}

// Observer is notified as stages and runs finish, whether they succeed or
// fail.
type Observer interface {
	StageFinished(ctx context.Context, runID string, r model.StageResult)
	RunFinished(ctx context.Context, r *model.Run)
}

// Option configures an Executor.
type Option func(*Executor)

// WithBeforeHooks adds hooks run before every stage, ahead of the stage's own.
func WithBeforeHooks(h ...BeforeHook) Option {
	return func(e *Executor) { e.before = append(e.before, h...) }
}

// WithAfterHooks adds hooks run after every stage, following the stage's own.
func WithAfterHooks(h ...AfterHook) Option {
	return func(e *Executor) { e.after = append(e.after, h...) }
}

// WithObservers registers run observers.
func WithObservers(o ...Observer) Option {
	return func(e *Executor) { e.observers = append(e.observers, o...) }
}

// WithClock overrides the wall clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Executor) { e.newID = fn }
}

// WithRunTimeout bounds a whole run.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Executor) { e.runTimeout = d }
}

// WithReformulate enables one corrective reasoner call when a stage's
// output fails schema validation.
func WithReformulate(enabled bool) Option {
	return func(e *Executor) { e.reformulate = enabled }
}

// Executor runs stages in order. It holds no per-run state, so one
// Executor may serve concurrent runs.
type Executor struct {
	reasoner    reasoner.Client
	stages      []Stage
	before      []BeforeHook
	after       []AfterHook
	observers   []Observer
	now         func() time.Time
	newID       func() string
	runTimeout  time.Duration
	reformulate bool
}

// NewExecutor validates the stage list and returns an executor.
func NewExecutor(r reasoner.Client, stages []Stage, opts ...Option) (*Executor, error) {
	if r == nil {
		return nil, eris.New("pipeline: reasoner is required")
	}
	if len(stages) == 0 {
		return nil, eris.New("pipeline: no stages")
	}
	names := make(map[string]bool, len(stages))
	keys := make(map[string]bool, len(stages))
	for _, st := range stages {
		switch {
		case st.Name == "":
			return nil, eris.New("pipeline: stage without name")
		case names[st.Name]:
			return nil, eris.Errorf("pipeline: duplicate stage %q", st.Name)
		case st.OutputKey == "":
			return nil, eris.Errorf("pipeline: stage %q has no output key", st.Name)
		case keys[st.OutputKey]:
			return nil, eris.Errorf("pipeline: output key %q written by two stages", st.OutputKey)
		case st.Template == nil:
			return nil, eris.Errorf("pipeline: stage %q has no template", st.Name)
		}
		names[st.Name] = true
		keys[st.OutputKey] = true
	}

	e := &Executor{
		reasoner: r,
		stages:   append([]Stage(nil), stages...),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Stages describes the configured stages in execution order.
func (e *Executor) Stages() []StageInfo {
	out := make([]StageInfo, len(e.stages))
	for i, st := range e.stages {
		out[i] = StageInfo{Name: st.Name, Ordinal: i + 1, OutputKey: st.OutputKey}
	}
	return out
}

// Run executes every stage against a fresh session. On failure it returns
// the partial result together with a *RunFailure; later stages are left
// pending.
func (e *Executor) Run(ctx context.Context, p Params) (*RunResult, error) {
	if e.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.runTimeout)
		defer cancel()
	}

	sess := state.New()
	seed(sess, p)

	res := &RunResult{
		Run: model.Run{
			ID:             e.newID(),
			TargetLocation: p.TargetLocation,
			BusinessType:   p.BusinessType,
			StartedAt:      e.now(),
			Stages:         make([]model.StageResult, len(e.stages)),
		},
		State: sess,
	}
	for i, st := range e.stages {
		res.Stages[i] = model.StageResult{
			Name:      st.Name,
			Ordinal:   i + 1,
			OutputKey: st.OutputKey,
			Status:    model.StageStatusPending,
		}
	}

	log := zap.L().With(
		zap.String("run_id", res.ID),
		zap.String("target_location", p.TargetLocation),
		zap.String("business_type", p.BusinessType),
	)
	log.Info("pipeline: starting run")

	for i := range e.stages {
		st := &e.stages[i]
		sr := &res.Stages[i]

		start := time.Now()
		err := e.runStage(ctx, res.ID, st, sr, sess)
		sr.Duration = time.Since(start).Milliseconds()
		res.TokenUsage.Add(sr.TokenUsage)

		if err != nil {
			sr.Status = model.StageStatusFailed
			fail := e.failure(ctx, res.ID, st.Name, err)
			sr.Error = fail.Error()
			e.stageFinished(ctx, res.ID, *sr)

			res.Status = model.RunStatusFailed
			res.Error = fail.Error()
			res.ErrorKind = string(fail.Kind)
			res.FailedStage = st.Name
			res.FinishedAt = e.now()
			e.runFinished(ctx, &res.Run)

			if fail.Kind == fault.KindMissingDependency {
				log.Error("pipeline: stage ran without its inputs",
					zap.String("stage", st.Name),
					zap.Error(err),
				)
			} else {
				log.Error("pipeline: stage failed",
					zap.String("stage", st.Name),
					zap.String("kind", string(fail.Kind)),
					zap.Int64("duration_ms", sr.Duration),
					zap.Error(err),
				)
			}
			return res, fail
		}

		e.stageFinished(ctx, res.ID, *sr)
		log.Info("pipeline: stage complete",
			zap.String("stage", st.Name),
			zap.Int("attempts", sr.Attempts),
			zap.Int64("duration_ms", sr.Duration),
		)
	}

	last := e.stages[len(e.stages)-1].OutputKey
	res.Output, _ = sess.Get(last)
	res.Report, _ = state.Lookup[*report.LocationIntelligenceReport](sess, state.KeyStrategicReport)
	res.Status = model.RunStatusCompleted
	res.FinishedAt = e.now()
	e.runFinished(ctx, &res.Run)

	log.Info("pipeline: run complete",
		zap.Int64("duration_ms", res.Duration().Milliseconds()),
		zap.Int64("tokens", res.TokenUsage.Total()),
	)
	return res, nil
}

func seed(sess *state.Session, p Params) {
	sess.Set(state.KeyTargetLocation, p.TargetLocation)
	sess.Set(state.KeyBusinessType, p.BusinessType)
	if p.CurrentDate != "" {
		sess.Set(state.KeyCurrentDate, p.CurrentDate)
	}
	if p.MapsAPIKey != "" {
		sess.Set(state.KeyMapsAPIKey, p.MapsAPIKey)
	}
}

func (e *Executor) runStage(ctx context.Context, runID string, st *Stage, sr *model.StageResult, sess *state.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	hc := &HookContext{
		RunID:  runID,
		Stage:  StageInfo{Name: st.Name, Ordinal: sr.Ordinal, OutputKey: st.OutputKey},
		State:  sess,
		result: sr,
	}

	sr.Status = model.StageStatusBeforeHook
	for _, h := range append(append([]BeforeHook(nil), e.before...), st.Before...) {
		if err := h(ctx, hc); err != nil {
			return hookError("before hook "+st.Name, err)
		}
	}

	sr.Status = model.StageStatusExecuting
	value, err := e.execute(ctx, st, sr, sess)
	if err != nil {
		return err
	}

	sr.Status = model.StageStatusAfterHook
	for _, h := range append(append([]AfterHook(nil), st.After...), e.after...) {
		if err := h(ctx, hc, value); err != nil {
			return hookError("after hook "+st.Name, err)
		}
	}

	sess.Set(st.OutputKey, value)
	sr.Status = model.StageStatusCompleted
	return nil
}

func (e *Executor) execute(ctx context.Context, st *Stage, sr *model.StageResult, sess *state.Session) (any, error) {
	op := "stage " + st.Name

	// Inputs the tools will not supply must already be in state before any
	// external call is made.
	supplied := make(map[string]bool, len(st.Tools))
	for _, t := range st.Tools {
		supplied[t.Name()] = true
	}
	if missing := st.Template.Missing(func(key string) bool {
		return supplied[key] || sess.Has(key)
	}); len(missing) > 0 {
		return nil, fault.MissingDependency(op, missing...)
	}

	outputs := make(map[string]any, len(st.Tools))
	for _, t := range st.Tools {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := resilience.DoVal(ctx, retryFor(st, t.Name()), func(ctx context.Context) (any, error) {
			sr.Attempts++
			return t.Call(ctx, sess)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: %s tool %s", st.Name, t.Name())
		}
		outputs[t.Name()] = out
	}

	prompt, err := st.Template.Render(op, func(key string) (any, bool) {
		if v, ok := outputs[key]; ok {
			return v, true
		}
		return sess.Get(key)
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := reasoner.Request{
		Stage:    st.Name,
		Tier:     st.Tier,
		System:   st.System,
		Prompt:   prompt,
		Schema:   st.Schema,
		Grounded: st.Grounded,
	}
	resp, err := e.generate(ctx, st, sr, req)
	if err != nil && e.reformulate && fault.Is(err, fault.KindSchemaViolation) {
		resp, err = e.reformulateOnce(ctx, st, sr, req, err)
	}
	if err != nil {
		return nil, err
	}

	sr.TokenUsage.Add(resp.Usage)
	sr.Annotate("model", resp.Model)
	if len(resp.Sources) > 0 {
		sr.Annotate("sources", resp.Sources)
	}

	switch {
	case st.Compose != nil:
		v, err := st.Compose(ComposeInput{State: sess, Response: resp, Tools: outputs})
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: compose %s", st.Name)
		}
		return v, nil
	case st.Schema != nil:
		return resp.Value, nil
	default:
		return resp.Text, nil
	}
}

// generate calls the reasoner under the stage retry policy. Each attempt
// gets its own deadline; an attempt that runs out of time is transient.
func (e *Executor) generate(ctx context.Context, st *Stage, sr *model.StageResult, req reasoner.Request) (*reasoner.Response, error) {
	return resilience.DoVal(ctx, retryFor(st, "reasoner"), func(ctx context.Context) (*reasoner.Response, error) {
		sr.Attempts++
		if st.Timeout <= 0 {
			return e.reasoner.Generate(ctx, req)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, st.Timeout)
		defer cancel()
		resp, err := e.reasoner.Generate(attemptCtx, req)
		if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, resilience.NewTransientError(
				eris.Wrapf(err, "pipeline: %s attempt timed out after %s", st.Name, st.Timeout), 0)
		}
		return resp, err
	})
}

func retryFor(st *Stage, call string) resilience.RetryConfig {
	cfg := st.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("pipeline", st.Name+"/"+call)
	}
	return cfg
}

// failure classifies a stage error. Anything that ends after the run
// context is done counts as canceled.
func (e *Executor) failure(ctx context.Context, runID, stage string, err error) *RunFailure {
	kind := fault.KindOf(err)
	if ctx.Err() != nil {
		kind = fault.KindCanceled
	}
	return &RunFailure{RunID: runID, Stage: stage, Kind: kind, Err: err}
}

// hookError keeps a classification the hook chose and marks anything else
// as a hook failure.
func hookError(op string, err error) error {
	if fault.KindOf(err) != fault.KindInternal {
		return err
	}
	return fault.Wrap(fault.KindHook, op, err)
}

func (e *Executor) stageFinished(ctx context.Context, runID string, r model.StageResult) {
	for _, o := range e.observers {
		o.StageFinished(ctx, runID, r)
	}
}

func (e *Executor) runFinished(ctx context.Context, r *model.Run) {
	for _, o := range e.observers {
		o.RunFinished(ctx, r)
	}
}
