package llm

import (
	"strings"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// Price is the USD cost per 1000 tokens.
type Price struct {
	Input  float64
	Output float64
}

// prices lists known models. Lookups fall back to the longest matching prefix
// so dated snapshots ("gpt-4o-mini-2024-07-18") price like their family.
var prices = map[string]Price{
	"gpt-4":             {Input: 0.03, Output: 0.06},
	"gpt-4-turbo":       {Input: 0.01, Output: 0.03},
	"gpt-4o":            {Input: 0.0025, Output: 0.01},
	"gpt-4o-mini":       {Input: 0.00015, Output: 0.0006},
	"gpt-3.5-turbo":     {Input: 0.001, Output: 0.002},
	"deepseek-chat":     {Input: 0.00014, Output: 0.00028},
	"deepseek-reasoner": {Input: 0.00055, Output: 0.0022},
	"gemini-pro":        {Input: 0.0005, Output: 0.0015},
	"gemini-1.5-flash":  {Input: 0.00015, Output: 0.0006},
	"gemini-1.5-pro":    {Input: 0.0035, Output: 0.0105},
	"claude-3-5-haiku":  {Input: 0.0008, Output: 0.004},
	"claude-3-5-sonnet": {Input: 0.003, Output: 0.015},
}

// PriceFor returns the price of a model and whether it is known.
func PriceFor(model string) (Price, bool) {
	if p, ok := prices[model]; ok {
		return p, true
	}
	best := ""
	for name := range prices {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return Price{}, false
	}
	return prices[best], true
}

// Cost estimates the USD cost of a call. Unknown models cost nothing.
func Cost(model string, usage domain.TokenUsage) float64 {
	p, ok := PriceFor(model)
	if !ok {
		return 0
	}
	return float64(usage.Prompt)/1000*p.Input + float64(usage.Completion)/1000*p.Output
}

// EstimateTokens approximates a token count from words, for backends that
// do not report usage.
func EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}
