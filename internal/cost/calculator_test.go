package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Gemini: map[string]ModelRate{
			"flash": {Input: 0.10, Output: 0.40},
			"pro": {
				Input: 1.25, Output: 10.00,
				LongInput: 2.50, LongOutput: 15.00, LongContext: 200_000,
			},
		},
	}
}

func TestGemini(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name   string
		model  string
		input  int64
		output int64
		want   float64
	}{
		{"flash simple", "flash", 1_000_000, 1_000_000, 0.10 + 0.40},
		{"pro short prompt", "pro", 100_000, 10_000, 0.125 + 0.10},
		{"pro long prompt", "pro", 400_000, 10_000, 1.0 + 0.15},
		{"versioned name matches prefix", "pro-preview-05-06", 1_000_000, 0, 2.50},
		{"unknown model", "mystery", 1_000_000, 1_000_000, 0},
		{"zero tokens", "flash", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.Gemini(tt.model, tt.input, tt.output), 1e-9)
		})
	}
}

func TestLookup_PrefersLongestPrefix(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())

	lite := calc.Gemini("gemini-2.5-flash-lite-001", 1_000_000, 0)
	flash := calc.Gemini("gemini-2.5-flash-001", 1_000_000, 0)
	assert.InDelta(t, 0.10, lite, 1e-9)
	assert.InDelta(t, 0.30, flash, 1e-9)
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	for _, m := range []string{"gemini-2.5-flash-lite", "gemini-2.5-pro"} {
		r, ok := rates.Gemini[m]
		assert.True(t, ok, m)
		assert.Greater(t, r.Output, r.Input, m)
	}
}
