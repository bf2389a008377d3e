package llmaction

import (
	"context"
	"fmt"
)

// DisabledClient is the zero-configuration Client: it reports every call as
// an llm_error. cmd/discoveryd wires it in by default so the binary starts
// and the deterministic extractors (SQL, SSIS, DataStage, dbt manifests)
// keep working even with no provider credentials configured; a real
// deployment replaces it with an adapter over its chosen provider SDK/HTTP
// API (see DESIGN.md).
type DisabledClient struct{}

// Call always fails with a descriptive error so the Runner's fallback chain
// and audit logging exercise the same failure path a real provider outage
// would take.
func (DisabledClient) Call(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int, provider string, jsonMode bool) (*CallResult, error) {
	return &CallResult{
		Success: false,
		Error:   fmt.Sprintf("no LLM client configured for provider %q (model %q)", provider, model),
	}, nil
}
