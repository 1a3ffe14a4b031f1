package anthropic

// ModelPricing contains per-token pricing information for Anthropic models
// Prices are in USD per million tokens
type ModelPricing struct {
	InputPrice  float64 // USD per 1M input tokens
	OutputPrice float64 // USD per 1M output tokens
}

var modelPricing = map[string]ModelPricing{
	"claude-sonnet-4-20250514":   {InputPrice: 3.00, OutputPrice: 15.00},
	"claude-3-5-sonnet-latest":   {InputPrice: 3.00, OutputPrice: 15.00},
	"claude-3-5-haiku-20241022":  {InputPrice: 0.80, OutputPrice: 4.00},
	"claude-3-5-haiku-latest":    {InputPrice: 0.80, OutputPrice: 4.00},
	"claude-3-haiku-20240307":    {InputPrice: 0.25, OutputPrice: 1.25},
	"claude-3-opus-latest":       {InputPrice: 15.00, OutputPrice: 75.00},
	"claude-3-5-sonnet-20241022": {InputPrice: 3.00, OutputPrice: 15.00},
}

// fallbackPricing is charged for models missing from the table (sonnet rates)
var fallbackPricing = ModelPricing{InputPrice: 3.00, OutputPrice: 15.00}

// CalculateCost computes the cost of an API call in USD based on token usage
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, found := modelPricing[model]
	if !found {
		pricing = fallbackPricing
	}
	return (float64(inputTokens)/1_000_000.0)*pricing.InputPrice +
		(float64(outputTokens)/1_000_000.0)*pricing.OutputPrice
}
