// Package reasoner sends rendered stage prompts to a language model and
// validates structured responses.
package reasoner

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/model"
	"github.com/sells-group/locus/internal/resilience"
	"github.com/sells-group/locus/internal/schema"
)

// Tier selects the model class for a request.
type Tier string

const (
	TierFast Tier = "fast"
	TierPro  Tier = "pro"
)

// Models maps tiers to provider model names.
type Models struct {
	Fast string
	Pro  string
}

func (m Models) forTier(t Tier) string {
	if t == TierPro && m.Pro != "" {
		return m.Pro
	}
	if m.Fast != "" {
		return m.Fast
	}
	return m.Pro
}

// Request is one reasoner call.
type Request struct {
	Stage    string
	Tier     Tier
	System   string
	Prompt   string
	Schema   *schema.Descriptor
	Grounded bool
}

// Response is a validated reasoner result. Value is set when the request
// carried a schema.
type Response struct {
	Text    string
	Value   map[string]any
	Model   string
	Usage   model.TokenUsage
	Sources []string
}

// Client generates text or validated structured output.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// finish validates raw model text against the request. Without a schema
// the text must be non-empty.
func finish(req Request, resp *Response) (*Response, error) {
	op := "reasoner " + req.Stage
	if req.Schema == nil {
		resp.Text = strings.TrimSpace(resp.Text)
		if resp.Text == "" {
			return nil, fault.Provider(op, eris.New("empty response"))
		}
		return resp, nil
	}

	v, err := req.Schema.Decode(resp.Text)
	if err != nil {
		return nil, fault.SchemaViolation(op, err)
	}
	resp.Value = v
	return resp, nil
}

// classify leaves transient errors for the retry policy and maps provider
// rejections to provider errors.
func classify(op string, err error, isAPIError func(error) bool) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || resilience.IsTransient(err) {
		return err
	}
	if isAPIError(err) {
		return fault.Provider(op, err)
	}
	return err
}
