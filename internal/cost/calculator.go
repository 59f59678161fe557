// Package cost estimates the USD cost of model calls from token counts.
package cost

import "strings"

// Rates holds per-model pricing. Claude pricing lives with the Anthropic
// client, which also accounts for prompt caching.
type Rates struct {
	Gemini map[string]ModelRate `yaml:"gemini" mapstructure:"gemini"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
	// LongInput and LongOutput apply when the prompt exceeds LongContext
	// tokens. Zero means the base rate applies at any length.
	LongInput   float64 `yaml:"long_input" mapstructure:"long_input"`
	LongOutput  float64 `yaml:"long_output" mapstructure:"long_output"`
	LongContext int64   `yaml:"long_context" mapstructure:"long_context"`
}

// Calculator computes costs for model usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Gemini computes the cost of a Gemini call. Output includes thinking
// tokens, which are billed at the output rate.
func (c *Calculator) Gemini(model string, input, output int64) float64 {
	return tokens(lookup(c.rates.Gemini, model), input, output)
}

// lookup finds a rate by exact model name, then by the longest configured
// name the model starts with, so versioned names like
// "gemini-2.5-pro-preview-05-06" match "gemini-2.5-pro".
func lookup(rates map[string]ModelRate, model string) *ModelRate {
	if r, ok := rates[model]; ok {
		return &r
	}
	var best string
	for name := range rates {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return nil
	}
	r := rates[best]
	return &r
}

func tokens(rate *ModelRate, input, output int64) float64 {
	if rate == nil {
		return 0
	}
	in, out := rate.Input, rate.Output
	if rate.LongContext > 0 && input > rate.LongContext {
		if rate.LongInput > 0 {
			in = rate.LongInput
		}
		if rate.LongOutput > 0 {
			out = rate.LongOutput
		}
	}
	return (float64(input)/1e6)*in + (float64(output)/1e6)*out
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Gemini: map[string]ModelRate{
			"gemini-2.5-flash-lite": {Input: 0.10, Output: 0.40},
			"gemini-2.5-flash":      {Input: 0.30, Output: 2.50},
			"gemini-2.5-pro": {
				Input: 1.25, Output: 10.00,
				LongInput: 2.50, LongOutput: 15.00, LongContext: 200_000,
			},
		},
	}
}
