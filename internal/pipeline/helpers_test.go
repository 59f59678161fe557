package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/locus/internal/geo"
	"github.com/sells-group/locus/internal/model"
	"github.com/sells-group/locus/internal/reasoner"
	"github.com/sells-group/locus/internal/research"
	"github.com/sells-group/locus/internal/resilience"
)

func TestMain(m *testing.M) {
	// genai links in opencensus, whose stats worker starts at init and never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type reply struct {
	resp *reasoner.Response
	err  error
}

func text(s string) reply {
	return reply{resp: &reasoner.Response{
		Text:  s,
		Model: "fake-model",
		Usage: model.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}}
}

func value(v map[string]any) reply {
	return reply{resp: &reasoner.Response{
		Value: v,
		Model: "fake-model",
		Usage: model.TokenUsage{InputTokens: 200, OutputTokens: 400},
	}}
}

func failWith(err error) reply { return reply{err: err} }

// fakeReasoner answers by stage name. Replies are consumed in order and
// the last one repeats.
type fakeReasoner struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   []reasoner.Request
	block   map[string]bool
}

func newFakeReasoner() *fakeReasoner {
	return &fakeReasoner{replies: make(map[string][]reply), block: make(map[string]bool)}
}

func (f *fakeReasoner) on(stage string, r ...reply) *fakeReasoner {
	f.replies[stage] = append(f.replies[stage], r...)
	return f
}

// blockOn makes calls for stage wait until their context is done.
func (f *fakeReasoner) blockOn(stage string) *fakeReasoner {
	f.block[stage] = true
	return f
}

func (f *fakeReasoner) Generate(ctx context.Context, req reasoner.Request) (*reasoner.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	blocked := f.block[req.Stage]
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.replies[req.Stage]
	if len(q) == 0 {
		return nil, eris.Errorf("fake: no reply for %s", req.Stage)
	}
	r := q[0]
	if len(q) > 1 {
		f.replies[req.Stage] = q[1:]
	}
	return r.resp, r.err
}

func (f *fakeReasoner) requests() []reasoner.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reasoner.Request(nil), f.calls...)
}

func (f *fakeReasoner) callsFor(stage string) []reasoner.Request {
	var out []reasoner.Request
	for _, r := range f.requests() {
		if r.Stage == stage {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeReasoner) stageOrder() []string {
	var out []string
	for _, r := range f.requests() {
		if len(out) == 0 || out[len(out)-1] != r.Stage {
			out = append(out, r.Stage)
		}
	}
	return out
}

type fakeSearcher struct {
	mu     sync.Mutex
	result *geo.SearchResult
	errs   []error
	calls  []geo.SearchRequest
}

func (f *fakeSearcher) Search(_ context.Context, req geo.SearchRequest) (*geo.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.result, nil
}

func (f *fakeSearcher) requests() []geo.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]geo.SearchRequest(nil), f.calls...)
}

type fakeResearcher struct {
	findings *research.Findings
	err      error
}

func (f fakeResearcher) Research(context.Context, research.Query) (*research.Findings, error) {
	return f.findings, f.err
}

func indiranagarSearch() *geo.SearchResult {
	return &geo.SearchResult{
		Location:      "Indiranagar, Bangalore",
		BusinessType:  "coffee shop",
		Center:        geo.Coordinate{Lat: 12.9719, Lng: 77.6412},
		CenterAddress: "Indiranagar, Bengaluru, Karnataka, India",
		RadiusMeters:  2000,
		Places: []geo.Place{
			{Name: "Third Wave Coffee", Rating: 4.6, Reviews: 2100, Status: geo.StatusOperating,
				Location: geo.Coordinate{Lat: 12.9730, Lng: 77.6400}, DistanceMeters: 180, Band: geo.BandCore},
			{Name: "Blue Tokai", Rating: 4.4, Reviews: 950, Status: geo.StatusOperating,
				Location: geo.Coordinate{Lat: 12.9650, Lng: 77.6380}, DistanceMeters: 840, Band: geo.BandCore},
			{Name: "Starbucks", Rating: 4.1, Reviews: 3000, Status: geo.StatusOperating,
				Location: geo.Coordinate{Lat: 12.9600, Lng: 77.6550}, DistanceMeters: 1950, Band: geo.BandInner},
		},
	}
}

func reportFixture(t *testing.T) map[string]any {
	t.Helper()
	raw, err := os.ReadFile("../report/testdata/report.json")
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// happyReasoner answers every default stage successfully.
func happyReasoner(t *testing.T) *fakeReasoner {
	t.Helper()
	return newFakeReasoner().
		on(StageMarketResearch, text("Demand is strong among young professionals.")).
		on(StageCompetitorMapping, text("Specialty chains dominate the core.")).
		on(StageGapAnalysis, text("The inner band is underserved.")).
		on(StageStrategyAdvisor, value(reportFixture(t))).
		on(StageReportGenerator, text("Open on 12th Main Road.\n\nTarget remote workers."))
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// testStageConfig uses the production backoff shape with a recording sleep.
func testStageConfig(rec *sleepRecorder) StageConfig {
	retry := resilience.StageRetryConfig(3, 5*time.Second, 60*time.Second)
	retry.Sleep = rec.sleep
	return StageConfig{Retry: retry, RadiusMeters: 2000}
}

type recordingObserver struct {
	mu     sync.Mutex
	stages []model.StageResult
	runs   []model.Run
}

func (o *recordingObserver) StageFinished(_ context.Context, _ string, r model.StageResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, r)
}

func (o *recordingObserver) RunFinished(_ context.Context, r *model.Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, *r)
}

type memArtifacts struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (m *memArtifacts) Write(runID, name string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = data
	return runID + "/" + name, nil
}

func testParams() Params {
	return Params{
		TargetLocation: "Indiranagar, Bangalore",
		BusinessType:   "coffee shop",
		MapsAPIKey:     "maps-key",
		CurrentDate:    "2026-10-16",
	}
}
