// Package gemini wraps the Gemini generateContent API.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/locus/internal/resilience"
)

// Client defines the Gemini operations used by the reasoner.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a single-turn generation request.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature *float32
	// ResponseSchema requests JSON output matching the schema.
	ResponseSchema *genai.Schema
	// GoogleSearch enables search grounding. It cannot be combined with
	// ResponseSchema.
	GoogleSearch bool
	// ThinkingBudget caps thinking tokens; -1 lets the model decide.
	ThinkingBudget *int32
}

// GenerateResponse is the text of the first candidate plus metadata.
type GenerateResponse struct {
	Text         string
	Model        string
	FinishReason string
	Sources      []Source
	Usage        TokenUsage
}

// Source is a web page the response was grounded on.
type Source struct {
	Title string
	URI   string
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int64
	CandidatesTokens int64
	ThoughtsTokens   int64
}

// APIError is a non-retryable error returned by the API.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Config selects the backend and credentials.
type Config struct {
	APIKey     string
	Vertex     bool
	Project    string
	Location   string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini client for the Gemini API or, when cfg.Vertex
// is set, Vertex AI.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.Vertex {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		cc.HTTPOptions.Timeout = &cfg.Timeout
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client}, nil
}

func (c *sdkClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	config := &genai.GenerateContentConfig{
		Temperature: req.Temperature,
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.ResponseSchema
	} else if req.GoogleSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.ThinkingBudget != nil {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: req.ThinkingBudget}
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, classifyError(err)
	}

	return fromSDKResponse(req.Model, resp), nil
}

// classifyError marks retryable API statuses transient and wraps the rest
// in APIError.
func classifyError(err error) error {
	wrapped := eris.Wrap(err, "gemini: generate content")

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return wrapped
	}
	if resilience.IsTransientHTTPStatus(apiErr.Code) {
		return resilience.NewTransientError(wrapped, apiErr.Code)
	}
	return &APIError{StatusCode: apiErr.Code, Err: wrapped}
}

func fromSDKResponse(model string, resp *genai.GenerateContentResponse) *GenerateResponse {
	out := &GenerateResponse{
		Text:  resp.Text(),
		Model: model,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = TokenUsage{
			PromptTokens:     int64(u.PromptTokenCount),
			CandidatesTokens: int64(u.CandidatesTokenCount),
			ThoughtsTokens:   int64(u.ThoughtsTokenCount),
		}
	}
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		out.FinishReason = string(cand.FinishReason)
		if gm := cand.GroundingMetadata; gm != nil {
			for _, chunk := range gm.GroundingChunks {
				if chunk != nil && chunk.Web != nil {
					out.Sources = append(out.Sources, Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
				}
			}
		}
	}
	return out
}
