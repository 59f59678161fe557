// Package research gathers web findings about a location and business type
// for the market research stage.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locus/pkg/jina"
	"github.com/sells-group/locus/pkg/perplexity"
)

// Query describes what to research.
type Query struct {
	Location     string
	BusinessType string
	Date         string
}

// Source is a cited web page.
type Source struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// Findings is the researched material handed to the reasoner.
type Findings struct {
	Provider string   `json:"provider"`
	Summary  string   `json:"summary"`
	Sources  []Source `json:"sources,omitempty"`
}

// String renders the findings for inclusion in a prompt.
func (f *Findings) String() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(f.Summary))
	if len(f.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, s := range f.Sources {
			if s.Title != "" {
				fmt.Fprintf(&b, "- %s (%s)\n", s.Title, s.URL)
			} else {
				fmt.Fprintf(&b, "- %s\n", s.URL)
			}
		}
	}
	return b.String()
}

// Researcher produces findings for a query.
type Researcher interface {
	Research(ctx context.Context, q Query) (*Findings, error)
}

const perplexityPrompt = `Research the market for a new %s in %s as of %s.
Cover population and demographics, income levels, foot traffic and commercial
activity, rental costs, current trends for this type of business, and any
regulatory or licensing considerations. Cite sources.`

// Perplexity researches through the Perplexity chat completions API.
type Perplexity struct {
	client perplexity.Client
}

// NewPerplexity wraps a Perplexity client.
func NewPerplexity(c perplexity.Client) *Perplexity {
	return &Perplexity{client: c}
}

// Research asks Perplexity for a cited market summary.
func (p *Perplexity) Research(ctx context.Context, q Query) (*Findings, error) {
	temp := 0.2
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "user", Content: fmt.Sprintf(perplexityPrompt, q.BusinessType, q.Location, q.Date)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "research: perplexity")
	}

	content := strings.TrimSpace(resp.Content())
	if content == "" {
		return nil, eris.New("research: empty perplexity response")
	}

	f := &Findings{Provider: "perplexity", Summary: content}
	for _, u := range resp.Citations {
		f.Sources = append(f.Sources, Source{URL: u})
	}
	return f, nil
}

// maxSearchResults caps how many search hits are folded into a summary.
const maxSearchResults = 8

// maxSnippet caps the characters kept from each hit.
const maxSnippet = 600

// Jina researches through Jina web search.
type Jina struct {
	client jina.Client
}

// NewJina wraps a Jina search client.
func NewJina(c jina.Client) *Jina {
	return &Jina{client: c}
}

// Research runs a web search and condenses the top hits into a summary.
func (j *Jina) Research(ctx context.Context, q Query) (*Findings, error) {
	query := fmt.Sprintf("%s market %s demographics foot traffic rent", q.BusinessType, q.Location)
	resp, err := j.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "research: jina search")
	}
	if len(resp.Data) == 0 {
		return nil, eris.Errorf("research: no search results for %q", query)
	}

	f := &Findings{Provider: "jina"}
	var b strings.Builder
	for i, r := range resp.Data {
		if i == maxSearchResults {
			break
		}
		text := r.Description
		if text == "" {
			text = r.Content
		}
		if len(text) > maxSnippet {
			text = text[:maxSnippet]
		}
		fmt.Fprintf(&b, "%s: %s\n", r.Title, strings.TrimSpace(text))
		f.Sources = append(f.Sources, Source{Title: r.Title, URL: r.URL})
	}
	f.Summary = b.String()
	return f, nil
}

// Fallback tries each researcher in order and returns the first success.
type Fallback []Researcher

// Research implements Researcher. When every researcher fails the errors
// are joined, so a transient failure anywhere keeps the result retryable.
func (fb Fallback) Research(ctx context.Context, q Query) (*Findings, error) {
	if len(fb) == 0 {
		return nil, eris.New("research: no researchers configured")
	}

	var errs []error
	for i, r := range fb {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := r.Research(ctx, q)
		if err == nil {
			return f, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if i < len(fb)-1 {
			zap.L().Warn("research: falling back", zap.Int("attempt", i+1), zap.Error(err))
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
