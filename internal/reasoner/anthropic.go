package reasoner

import (
	"context"
	"errors"

	"github.com/sells-group/locus/internal/model"
	"github.com/sells-group/locus/pkg/anthropic"
)

const schemaInstruction = "\n\nRespond with only a JSON object, no prose or code fences, matching this schema:\n"

// Anthropic is a Client backed by the Anthropic Messages API. The schema is
// described in the prompt and validated on return. Grounding is not
// available; stages supply research through tools instead.
type Anthropic struct {
	client    anthropic.Client
	models    Models
	maxTokens int64
}

// NewAnthropic creates an Anthropic-backed reasoner.
func NewAnthropic(c anthropic.Client, models Models, maxTokens int64) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Anthropic{client: c, models: models, maxTokens: maxTokens}
}

// Generate implements Client.
func (a *Anthropic) Generate(ctx context.Context, req Request) (*Response, error) {
	name := a.models.forTier(req.Tier)
	prompt := req.Prompt
	if req.Schema != nil {
		prompt += schemaInstruction + req.Schema.Describe()
	}

	msg, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     name,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(req.System),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, classify("reasoner "+req.Stage, err, func(err error) bool {
			var apiErr *anthropic.APIError
			return errors.As(err, &apiErr)
		})
	}

	msg.Usage.LogCost(name, req.Stage)

	return finish(req, &Response{
		Text:  msg.Text(),
		Model: msg.Model,
		Usage: model.TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
			Cost:         msg.Usage.EstimateCost(name),
		},
	})
}
