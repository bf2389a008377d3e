package plan

import "github.com/lineagekit/discovery/pkg/models"

// bytesPerToken approximates tokens from size_bytes.
const bytesPerToken = 4

// strategyCostPerKToken is the estimator's per-1000-token USD rate by
// strategy; strategies that invoke no LLM at all cost nothing.
var strategyCostPerKToken = map[models.Strategy]float64{
	models.StrategyParserOnly:    0,
	models.StrategyParserPlusLLM: 0.004,
	models.StrategyLLMOnly:       0.003,
	models.StrategyVLMExtract:    0.008,
	models.StrategySkip:          0,
}

// strategyBaseSeconds is a flat per-file processing overhead by strategy,
// independent of token count (parsing, I/O, catalog sync).
var strategyBaseSeconds = map[models.Strategy]float64{
	models.StrategyParserOnly:    0.5,
	models.StrategyParserPlusLLM: 3.0,
	models.StrategyLLMOnly:      2.0,
	models.StrategyVLMExtract:   4.0,
	models.StrategySkip:         0.05,
}

// secondsPerThousandTokens models LLM latency scaling with payload size.
const secondsPerThousandTokens = 1.5

// Estimate is a pure function of (size, strategy) producing the
// (tokens, cost_usd, time_seconds) triple.
func Estimate(sizeBytes int64, strategy models.Strategy) models.Estimate {
	tokens := sizeBytes / bytesPerToken
	if tokens == 0 && sizeBytes > 0 {
		tokens = 1
	}

	costRate := strategyCostPerKToken[strategy]
	timeBase := strategyBaseSeconds[strategy]

	cost := (float64(tokens) / 1000) * costRate
	time := timeBase + (float64(tokens)/1000)*secondsPerThousandTokens
	if strategy == models.StrategySkip || strategy == models.StrategyParserOnly {
		time = timeBase
	}

	return models.Estimate{Tokens: tokens, CostUSD: cost, TimeSeconds: time}
}
