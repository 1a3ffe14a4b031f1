package openrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name             string
		model            string
		promptTokens     int
		completionTokens int
		expectedCost     float64
	}{
		// ($0.15 * 1000/1M) + ($0.60 * 500/1M)
		{"gpt-4o-mini", "openai/gpt-4o-mini", 1000, 500, 0.00045},
		// ($3.00 * 10000/1M) + ($15.00 * 5000/1M)
		{"claude sonnet", "anthropic/claude-3.5-sonnet", 10000, 5000, 0.105},
		{"zero tokens", "openai/gpt-4o-mini", 0, 0, 0},
		{"unknown model falls back", "acme/unknown", 123, 456, DefaultPricingFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expectedCost, CalculateCost(tt.model, tt.promptTokens, tt.completionTokens), 1e-9)
		})
	}
}

func TestGetPricing(t *testing.T) {
	p, ok := GetPricing("openai/gpt-4o")
	assert.True(t, ok)
	assert.Equal(t, 2.50, p.PromptPrice)

	_, ok = GetPricing("nope")
	assert.False(t, ok)
}
