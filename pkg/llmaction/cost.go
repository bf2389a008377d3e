package llmaction

// defaultRatePerThousandTokens is the fallback cost rate used when a model
// has no entry in rateTable.
const defaultRatePerThousandTokens = 0.002

// rateTable holds known per-1000-token USD rates for a handful of common
// models; anything absent uses defaultRatePerThousandTokens.
var rateTable = map[string]float64{
	"gpt-4o":        0.005,
	"gpt-4o-mini":   0.0006,
	"claude-3-opus": 0.015,
	"claude-3-haiku": 0.00025,
}

// estimateCostUSD is tokens/1000 x rate[model].
func estimateCostUSD(model string, tokensIn, tokensOut int64) float64 {
	rate, ok := rateTable[model]
	if !ok {
		rate = defaultRatePerThousandTokens
	}
	total := float64(tokensIn + tokensOut)
	return (total / 1000) * rate
}
