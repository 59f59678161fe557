package reasoner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sells-group/locus/internal/cost"
	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/resilience"
	"github.com/sells-group/locus/internal/schema"
	"github.com/sells-group/locus/pkg/anthropic"
	anthropicmocks "github.com/sells-group/locus/pkg/anthropic/mocks"
	"github.com/sells-group/locus/pkg/gemini"
	geminimocks "github.com/sells-group/locus/pkg/gemini/mocks"
)

var verdict = &schema.Descriptor{
	Name: "Verdict",
	Fields: []schema.Field{
		schema.String("decision", "go or no-go"),
		schema.Integer("score", "").Range(0, 100),
	},
}

var models = Models{Fast: "fast-model", Pro: "pro-model"}

func TestGemini_Structured(t *testing.T) {
	t.Parallel()

	c := geminimocks.NewMockClient(t)
	c.On("Generate", mock.Anything, mock.MatchedBy(func(r gemini.GenerateRequest) bool {
		return r.Model == "pro-model" && r.ResponseSchema != nil && r.ThinkingBudget != nil && r.System == "sys"
	})).Return(&gemini.GenerateResponse{
		Text:  `{"decision":"go","score":77}`,
		Model: "pro-model",
		Usage: gemini.TokenUsage{PromptTokens: 100, CandidatesTokens: 20, ThoughtsTokens: 5},
	}, nil).Once()

	resp, err := NewGemini(c, models).Generate(context.Background(), Request{
		Stage: "strategy_advisor", Tier: TierPro, System: "sys", Prompt: "p", Schema: verdict,
	})
	require.NoError(t, err)
	assert.Equal(t, "go", resp.Value["decision"])
	assert.Equal(t, int64(25), resp.Usage.OutputTokens)
}

func TestGemini_Cost(t *testing.T) {
	t.Parallel()

	c := geminimocks.NewMockClient(t)
	c.On("Generate", mock.Anything, mock.Anything).Return(&gemini.GenerateResponse{
		Text:  "ok",
		Usage: gemini.TokenUsage{PromptTokens: 1_000_000, CandidatesTokens: 500_000, ThoughtsTokens: 500_000},
	}, nil).Once()

	rates := cost.Rates{Gemini: map[string]cost.ModelRate{"fast-model": {Input: 0.5, Output: 2}}}
	resp, err := NewGemini(c, models, WithGeminiRates(rates)).Generate(context.Background(), Request{Stage: "s", Prompt: "p"})
	require.NoError(t, err)
	assert.InDelta(t, 0.5+2.0, resp.Usage.Cost, 1e-9)
}

func TestGemini_SchemaViolation(t *testing.T) {
	t.Parallel()

	c := geminimocks.NewMockClient(t)
	c.On("Generate", mock.Anything, mock.Anything).
		Return(&gemini.GenerateResponse{Text: `{"decision":"go","score":150}`}, nil).Once()

	_, err := NewGemini(c, models).Generate(context.Background(), Request{Stage: "s", Schema: verdict})
	require.Error(t, err)
	assert.Equal(t, fault.KindSchemaViolation, fault.KindOf(err))
	assert.False(t, resilience.IsTransient(err))
}

func TestGemini_GroundedText(t *testing.T) {
	t.Parallel()

	c := geminimocks.NewMockClient(t)
	c.On("Generate", mock.Anything, mock.MatchedBy(func(r gemini.GenerateRequest) bool {
		return r.Model == "fast-model" && r.GoogleSearch && r.ResponseSchema == nil && r.ThinkingBudget == nil
	})).Return(&gemini.GenerateResponse{
		Text:    "  Demand is strong.  ",
		Sources: []gemini.Source{{URI: "https://example.com"}},
	}, nil).Once()

	resp, err := NewGemini(c, models).Generate(context.Background(), Request{Stage: "market_research", Tier: TierFast, Prompt: "p", Grounded: true})
	require.NoError(t, err)
	assert.Equal(t, "Demand is strong.", resp.Text)
	assert.Nil(t, resp.Value)
	assert.Equal(t, []string{"https://example.com"}, resp.Sources)
}

func TestGemini_EmptyText(t *testing.T) {
	t.Parallel()

	c := geminimocks.NewMockClient(t)
	c.On("Generate", mock.Anything, mock.Anything).Return(&gemini.GenerateResponse{Text: "\n"}, nil).Once()

	_, err := NewGemini(c, models).Generate(context.Background(), Request{Stage: "s"})
	assert.Equal(t, fault.KindProvider, fault.KindOf(err))
}

func TestGemini_ErrorClassification(t *testing.T) {
	t.Parallel()

	transient := resilience.NewTransientError(errors.New("503"), 503)
	rejected := &gemini.APIError{StatusCode: 400, Err: errors.New("bad request")}

	c := geminimocks.NewMockClient(t)
	c.On("Generate", mock.Anything, mock.MatchedBy(func(r gemini.GenerateRequest) bool { return r.Prompt == "t" })).Return(nil, transient).Once()
	c.On("Generate", mock.Anything, mock.MatchedBy(func(r gemini.GenerateRequest) bool { return r.Prompt == "r" })).Return(nil, rejected).Once()

	g := NewGemini(c, models)
	_, err := g.Generate(context.Background(), Request{Stage: "s", Prompt: "t"})
	assert.True(t, resilience.IsTransient(err))

	_, err = g.Generate(context.Background(), Request{Stage: "s", Prompt: "r"})
	assert.Equal(t, fault.KindProvider, fault.KindOf(err))
}

func TestAnthropic_SchemaInPrompt(t *testing.T) {
	t.Parallel()

	c := anthropicmocks.NewMockClient(t)
	c.On("CreateMessage", mock.Anything, mock.MatchedBy(func(r anthropic.MessageRequest) bool {
		return r.Model == "pro-model" &&
			r.MaxTokens == 8192 &&
			len(r.System) == 1 &&
			len(r.Messages) == 1 &&
			r.Messages[0].Role == "user" &&
			containsAll(r.Messages[0].Content, "Decide.", "Respond with only a JSON object", "- score (integer, 0-100)")
	})).Return(&anthropic.MessageResponse{
		Model:   "pro-model",
		Content: []anthropic.ContentBlock{{Type: "text", Text: "```json\n{\"decision\":\"no-go\",\"score\":12}\n```"}},
		Usage:   anthropic.TokenUsage{InputTokens: 50, OutputTokens: 10},
	}, nil).Once()

	resp, err := NewAnthropic(c, models, 0).Generate(context.Background(), Request{
		Stage: "s", Tier: TierPro, System: "sys", Prompt: "Decide.", Schema: verdict,
	})
	require.NoError(t, err)
	assert.Equal(t, "no-go", resp.Value["decision"])
	assert.Equal(t, int64(50), resp.Usage.InputTokens)
}

func TestAnthropic_ProviderError(t *testing.T) {
	t.Parallel()

	c := anthropicmocks.NewMockClient(t)
	c.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, &anthropic.APIError{StatusCode: 401, Err: errors.New("invalid x-api-key")}).Once()

	_, err := NewAnthropic(c, models, 1024).Generate(context.Background(), Request{Stage: "s", Prompt: "p"})
	assert.Equal(t, fault.KindProvider, fault.KindOf(err))
}

func TestToGenaiSchema(t *testing.T) {
	t.Parallel()

	d := &schema.Descriptor{Name: "R", Fields: []schema.Field{
		schema.String("name", "n"),
		schema.Array("tags", "", schema.String("tag", "")).Len(2, 3),
		schema.Object("nested", "", schema.Number("x", "").Range(0, 5), schema.Boolean("b", "").Opt()),
	}}
	s := ToGenaiSchema(d)

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"name", "tags", "nested"}, s.PropertyOrdering)
	assert.Equal(t, []string{"name", "nested", "tags"}, s.Required)
	assert.Equal(t, genai.TypeString, s.Properties["tags"].Items.Type)
	assert.Equal(t, int64(2), *s.Properties["tags"].MinItems)
	assert.InDelta(t, 5.0, *s.Properties["nested"].Properties["x"].Maximum, 0.0001)
	assert.Equal(t, []string{"x"}, s.Properties["nested"].Required)
}

func TestModels_ForTier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pro-model", models.forTier(TierPro))
	assert.Equal(t, "fast-model", models.forTier(TierFast))
	assert.Equal(t, "only-pro", Models{Pro: "only-pro"}.forTier(TierFast))
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
