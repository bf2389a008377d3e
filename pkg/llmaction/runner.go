package llmaction

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lineagekit/discovery/pkg/extract"
	"github.com/lineagekit/discovery/pkg/models"
	"github.com/lineagekit/discovery/pkg/prompt"
	"github.com/lineagekit/discovery/pkg/promptconfig"
	"golang.org/x/time/rate"
)

// backoffSchedule is the fixed 429 retry schedule.
var backoffSchedule = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}

// Outcome is the Runner's per-file result, carrying everything
// pkg/orchestrator needs to populate a FileProcessingLog row.
type Outcome struct {
	Status          models.FileLogStatus
	ModelProvider   *string
	ModelUsed       *string
	FallbackUsed    bool
	FallbackChain   []string
	TokensIn        int64
	TokensOut       int64
	CostEstimateUSD float64
	LatencyMS       int64
	ErrorType       *models.ErrorKind
	ErrorMessage    *string
	RetryCount      int
	Result          *models.ExtractionResult
	DroppedEdges    int
}

// Runner executes a routed action profile end to end.
type Runner struct {
	routing  *promptconfig.RoutingRegistry
	composer *prompt.Composer
	client   Client
	limiter  *rate.Limiter
}

// NewRunner constructs a Runner. limiter may be nil to disable pacing
// (tests / a single-tenant deployment with headroom under the provider's
// own rate limits).
func NewRunner(routing *promptconfig.RoutingRegistry, composer *prompt.Composer, client Client, limiter *rate.Limiter) *Runner {
	return &Runner{routing: routing, composer: composer, client: client, limiter: limiter}
}

// Execute runs action for a single file, trying the primary model then each
// fallback in order. jobPrefix is the same per-job prefix
// the deterministic extractors use (pkg/extract.Run) to disambiguate
// fallback "unnamed_node_N" ids across jobs.
func (r *Runner) Execute(ctx context.Context, action, projectID, filePath, content string, vars map[string]string, vision *VisionInput, jobPrefix string) (*Outcome, error) {
	route, err := r.routing.Route(action)
	if err != nil {
		return nil, err
	}

	systemPrompt, err := r.composer.Compose(ctx, action, projectID, vars)
	if err != nil {
		return nil, err
	}

	candidates := make([]promptconfig.ModelConfig, 0, 1+len(route.Fallbacks))
	candidates = append(candidates, route.Primary)
	candidates = append(candidates, route.Fallbacks...)

	// extract.deep_dive and every non-extraction action (triage_fast,
	// summarize, reasoning.architect, action.analyze_iteration) carry no
	// enforced schema; only the extract.* family (besides deep_dive) is
	// shaped into nodes/edges.
	passThrough := action == "extract.deep_dive" || !strings.HasPrefix(action, "extract.")

	attempted := make([]string, 0, len(candidates))
	for i, mc := range candidates {
		attempted = append(attempted, mc.Model)

		messages, err := buildMessages(systemPrompt, filePath, content, vision)
		if err != nil {
			return nil, err
		}

		jsonMode := jsonModeForPromptFile(action, mc.PromptFile)
		result, latency, retries, callErr := r.callWithBackoff(ctx, mc, messages, jsonMode)
		if callErr != nil {
			slog.Warn("llm call failed, trying next model", "model", mc.Model, "error", callErr)
			continue
		}
		if !result.Success {
			slog.Warn("llm call unsuccessful, trying next model", "model", mc.Model, "error", result.Error)
			continue
		}

		parsed, parseErr := extractJSON(result.Content)
		if parseErr != nil {
			slog.Warn("response parse failed, trying next model", "model", mc.Model, "error", parseErr)
			continue
		}

		tokensIn, tokensOut := result.TokensIn, result.TokensOut
		if tokensIn == 0 {
			tokensIn = estimateTokens(systemPrompt + messages[len(messages)-1].Content)
		}
		if tokensOut == 0 {
			tokensOut = estimateTokens(result.Content)
		}

		outcome := &Outcome{
			ModelProvider:   strPtr(mc.Provider),
			ModelUsed:       strPtr(mc.Model),
			FallbackUsed:    i > 0,
			FallbackChain:   append([]string(nil), attempted...),
			TokensIn:        tokensIn,
			TokensOut:       tokensOut,
			CostEstimateUSD: estimateCostUSD(mc.Model, tokensIn, tokensOut),
			LatencyMS:       latency.Milliseconds(),
			RetryCount:      retries,
		}

		if passThrough {
			outcome.Status = models.LogSuccess
			outcome.Result = &models.ExtractionResult{Meta: map[string]any{"raw": parsed}}
			return outcome, nil
		}

		extraction, dropped, repairErr := repairExtraction(parsed)
		if repairErr != nil {
			slog.Warn("schema repair failed, trying next model", "model", mc.Model, "error", repairErr)
			continue
		}
		extract.Normalize(extraction, jobPrefix)
		if err := validateExtraction(extraction); err != nil {
			slog.Warn("schema validation failed, trying next model", "model", mc.Model, "error", err)
			continue
		}

		outcome.Status = models.LogSuccess
		outcome.Result = extraction
		outcome.DroppedEdges = dropped
		return outcome, nil
	}

	return &Outcome{
		Status:        models.LogFallbackExhausted,
		FallbackUsed:  true,
		FallbackChain: attempted,
		ErrorType:     errKindPtr(models.ErrFallbackExhausted),
		ErrorMessage:  strPtr("all configured models were exhausted without a usable response"),
	}, nil
}

// callWithBackoff calls the client once, retrying the SAME model up to
// len(backoffSchedule) times on ErrRateLimited (5s, 10s, 20s). A
// per-model timeout is applied to each attempt from mc.TimeoutMS.
func (r *Runner) callWithBackoff(ctx context.Context, mc promptconfig.ModelConfig, messages []Message, jsonMode bool) (*CallResult, time.Duration, int, error) {
	start := time.Now()
	retries := 0
	for {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, time.Since(start), retries, err
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if mc.TimeoutMS > 0 {
			callCtx, cancel = context.WithTimeout(ctx, time.Duration(mc.TimeoutMS)*time.Millisecond)
		}
		result, err := r.client.Call(callCtx, mc.Model, messages, mc.Temperature, mc.MaxTokens, mc.Provider, jsonMode)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, time.Since(start), retries, nil
		}
		if errors.Is(err, ErrRateLimited) && retries < len(backoffSchedule) {
			wait := backoffSchedule[retries]
			retries++
			select {
			case <-ctx.Done():
				return nil, time.Since(start), retries, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		return nil, time.Since(start), retries, err
	}
}

func strPtr(s string) *string                    { return &s }
func errKindPtr(k models.ErrorKind) *models.ErrorKind { return &k }
