// Package analytics records per-response usage events and persists them with
// a cost estimate.
package analytics

// Per-token USD pricing for the models the orchestrator runs. Unpriced models
// cost out at zero rather than failing the pipeline.
type pricing struct {
	promptTokenCost     float64
	completionTokenCost float64
}

var modelPricing = map[string]pricing{
	"gpt-4o-mini-2024-07-18": {
		promptTokenCost:     0.15 / 1_000_000,
		completionTokenCost: 0.6 / 1_000_000,
	},
}

// Cost returns the USD cost of a generation. For models without a pricing
// entry it returns zero.
func Cost(model string, promptTokens, completionTokens int) float64 {
	p, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)*p.promptTokenCost + float64(completionTokens)*p.completionTokenCost
}
