package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/locus/internal/model"
	"github.com/sells-group/locus/internal/reasoner"
	"github.com/sells-group/locus/internal/resilience"
	"github.com/sells-group/locus/internal/schema"
	"github.com/sells-group/locus/internal/state"
)

// Tool gathers input for a stage before the reasoner call. Its output is
// available to the template under the tool's name.
type Tool interface {
	Name() string
	Call(ctx context.Context, st state.Reader) (any, error)
}

// ToolFunc adapts a function into a Tool.
type ToolFunc struct {
	ToolName string
	Fn       func(ctx context.Context, st state.Reader) (any, error)
}

// Name implements Tool.
func (f ToolFunc) Name() string { return f.ToolName }

// Call implements Tool.
func (f ToolFunc) Call(ctx context.Context, st state.Reader) (any, error) { return f.Fn(ctx, st) }

// ComposeInput is what a stage's Compose step works from.
type ComposeInput struct {
	State    state.Reader
	Response *reasoner.Response
	Tools    map[string]any
}

// ComposeFunc shapes the stored stage value from the reasoner response and
// tool outputs. It makes no external calls.
type ComposeFunc func(in ComposeInput) (any, error)

// Stage is one analysis step. Stages are immutable once handed to an
// Executor.
type Stage struct {
	Name      string
	OutputKey string
	System    string
	Template  *Template
	Schema    *schema.Descriptor
	Tools     []Tool
	Tier      reasoner.Tier
	Grounded  bool
	Retry     resilience.RetryConfig
	// Timeout bounds each reasoner attempt. Zero means no per-attempt limit.
	Timeout time.Duration
	Before  []BeforeHook
	After   []AfterHook
	// Compose is optional. Without it the stored value is the validated
	// object when Schema is set, else the response text.
	Compose ComposeFunc
}

// StageInfo is the read-only description of a stage passed to hooks.
type StageInfo struct {
	Name      string `json:"name"`
	Ordinal   int    `json:"ordinal"`
	OutputKey string `json:"output_key"`
}

// HookContext is handed to every hook invocation.
type HookContext struct {
	RunID string
	Stage StageInfo
	State state.Reader

	result *model.StageResult
}

// Annotate attaches metadata to the stage result.
func (h *HookContext) Annotate(key string, value any) {
	if h.result != nil {
		h.result.Annotate(key, value)
	}
}

// Result returns a copy of the stage result as recorded so far.
func (h *HookContext) Result() model.StageResult {
	if h.result == nil {
		return model.StageResult{}
	}
	return *h.result
}

// BeforeHook runs before a stage executes. An error fails the run.
type BeforeHook func(ctx context.Context, hc *HookContext) error

// AfterHook observes the value a stage produced before it is stored. It may
// annotate the stage result but cannot replace the value. An error fails
// the run.
type AfterHook func(ctx context.Context, hc *HookContext, value any) error
