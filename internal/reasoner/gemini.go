package reasoner

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sells-group/locus/internal/cost"
	"github.com/sells-group/locus/internal/model"
	"github.com/sells-group/locus/internal/schema"
	"github.com/sells-group/locus/pkg/gemini"
)

// Gemini is a Client backed by the Gemini API. Structured requests use the
// native response schema; grounded requests enable Google Search.
type Gemini struct {
	client  gemini.Client
	models  Models
	pricing *cost.Calculator
}

// GeminiOption configures a Gemini reasoner.
type GeminiOption func(*Gemini)

// WithGeminiRates overrides the default pricing used for cost estimates.
func WithGeminiRates(r cost.Rates) GeminiOption {
	return func(g *Gemini) { g.pricing = cost.NewCalculator(r) }
}

// NewGemini creates a Gemini-backed reasoner.
func NewGemini(c gemini.Client, models Models, opts ...GeminiOption) *Gemini {
	g := &Gemini{client: c, models: models, pricing: cost.NewCalculator(cost.DefaultRates())}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements Client.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	name := g.models.forTier(req.Tier)
	in := gemini.GenerateRequest{
		Model:        name,
		System:       req.System,
		Prompt:       req.Prompt,
		GoogleSearch: req.Grounded,
	}
	if req.Schema != nil {
		in.ResponseSchema = ToGenaiSchema(req.Schema)
	}
	if req.Tier == TierPro {
		in.ThinkingBudget = genai.Ptr[int32](-1)
	}

	out, err := g.client.Generate(ctx, in)
	if err != nil {
		return nil, classify("reasoner "+req.Stage, err, func(err error) bool {
			var apiErr *gemini.APIError
			return errors.As(err, &apiErr)
		})
	}

	billed := out.Model
	if billed == "" {
		billed = name
	}
	usage := model.TokenUsage{
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CandidatesTokens + out.Usage.ThoughtsTokens,
	}
	usage.Cost = g.pricing.Gemini(billed, usage.InputTokens, usage.OutputTokens)

	zap.L().Info("reasoner: gemini usage",
		zap.String("stage", req.Stage),
		zap.String("model", billed),
		zap.Int64("input_tokens", out.Usage.PromptTokens),
		zap.Int64("output_tokens", out.Usage.CandidatesTokens),
		zap.Int64("thought_tokens", out.Usage.ThoughtsTokens),
		zap.Float64("estimated_cost_usd", usage.Cost),
	)

	resp := &Response{
		Text:  out.Text,
		Model: out.Model,
		Usage: usage,
	}
	for _, s := range out.Sources {
		resp.Sources = append(resp.Sources, s.URI)
	}
	return finish(req, resp)
}

// ToGenaiSchema converts a descriptor into a Gemini response schema.
func ToGenaiSchema(d *schema.Descriptor) *genai.Schema {
	return fieldSchema(d.AsField())
}

func fieldSchema(f schema.Field) *genai.Schema {
	s := &genai.Schema{Description: f.Description, Minimum: f.Min, Maximum: f.Max}
	switch f.Type {
	case schema.TypeString:
		s.Type = genai.TypeString
	case schema.TypeNumber:
		s.Type = genai.TypeNumber
	case schema.TypeInteger:
		s.Type = genai.TypeInteger
	case schema.TypeBoolean:
		s.Type = genai.TypeBoolean
	case schema.TypeArray:
		s.Type = genai.TypeArray
		if f.Items != nil {
			s.Items = fieldSchema(*f.Items)
		}
		if f.MinItems > 0 {
			s.MinItems = genai.Ptr(int64(f.MinItems))
		}
		if f.MaxItems > 0 {
			s.MaxItems = genai.Ptr(int64(f.MaxItems))
		}
	case schema.TypeObject:
		s.Type = genai.TypeObject
		s.Properties = make(map[string]*genai.Schema, len(f.Fields))
		for _, child := range f.Fields {
			s.Properties[child.Name] = fieldSchema(child)
			s.PropertyOrdering = append(s.PropertyOrdering, child.Name)
		}
		s.Required = schema.Required(f.Fields)
	}
	return s
}
