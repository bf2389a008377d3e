package llmaction

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding is used for every model: cost/size accounting needs a
// consistent estimate, not exact per-provider tokenizer parity.
const defaultEncoding = "cl100k_base"

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// estimateTokens counts text using tiktoken-go when the encoding loads
// successfully, falling back to the size/4 heuristic the Planner also uses
// when the tokenizer's vocabulary file can't be loaded (e.g. no network
// access to fetch it in a sandboxed environment).
func estimateTokens(text string) int64 {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			slog.Warn("tiktoken encoding unavailable, falling back to size/4 token estimate", "error", err)
			return
		}
		encoding = enc
	})
	if encoding == nil {
		return int64(len(text)) / 4
	}
	return int64(len(encoding.Encode(text, nil, nil)))
}
