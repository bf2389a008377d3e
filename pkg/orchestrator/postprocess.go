package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lineagekit/discovery/pkg/audit"
	"github.com/lineagekit/discovery/pkg/llmaction"
	"github.com/lineagekit/discovery/pkg/models"
)

// reasoningAction is the LLM action name used to synthesize the optional
// free-text summary at the end of a run (the "reasoning.architect"
// routing entry).
const reasoningAction = "reasoning.architect"

// postProcess computes and persists an audit snapshot, then best-effort
// synthesizes a reasoning summary. Neither failure here is fatal to the
// job; Execute always completes the job once items have run (only ingest
// and planning failures are fatal).
func (e *Executor) postProcess(ctx context.Context, job *models.Job, log *slog.Logger) error {
	if err := e.store.UpdateJobStage(ctx, job.ID, "post-processing", 95); err != nil {
		log.Warn("failed to update job stage to post-processing", "error", err)
	}

	snap, err := audit.ComputeSnapshot(ctx, e.store, job.ProjectID, job.ID)
	if err != nil {
		return fmt.Errorf("compute audit snapshot: %w", err)
	}
	if _, err := e.store.InsertAuditSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("persist audit snapshot: %w", err)
	}

	if err := e.synthesizeReasoning(ctx, job, snap, log); err != nil {
		log.Warn("reasoning synthesis skipped", "error", err)
	}

	if err := e.saveAuditReport(job, snap); err != nil {
		log.Warn("audit report file not written", "error", err)
	}

	if err := e.store.UpdateJobStage(ctx, job.ID, "done", 100); err != nil {
		log.Warn("failed to update job stage to done", "error", err)
	}
	return nil
}

// saveAuditReport writes the audit snapshot as a JSON report file under
// {ReportsRoot}/{solution_id}/reports/, the per-solution sandbox external
// report renderers read from. Skipped when no ReportsRoot is configured.
func (e *Executor) saveAuditReport(job *models.Job, snap *models.AuditSnapshot) error {
	if e.ReportsRoot == "" {
		return nil
	}
	dir := filepath.Join(e.ReportsRoot, job.ProjectID, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit report: %w", err)
	}
	path := filepath.Join(dir, "audit_"+job.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write audit report: %w", err)
	}
	return nil
}

// synthesizeReasoning calls the reasoning.architect LLM action with the
// audit snapshot as context and persists its free-text output. This step
// is entirely optional: any failure (missing routing entry, provider
// error, fallback exhaustion) is swallowed by the caller.
func (e *Executor) synthesizeReasoning(ctx context.Context, job *models.Job, snap *models.AuditSnapshot, log *slog.Logger) error {
	vars := map[string]string{
		"coverage_score":   fmt.Sprintf("%.2f", snap.Metrics.CoverageScore),
		"avg_confidence":   fmt.Sprintf("%.2f", snap.Metrics.AvgConfidence),
		"hypothesis_ratio": fmt.Sprintf("%.2f", snap.Metrics.HypothesisRatio),
		"gap_count":        fmt.Sprintf("%d", len(snap.Gaps)),
	}
	outcome, err := e.runner.Execute(ctx, reasoningAction, job.ProjectID, "", "", vars, nil, shortID(job.ID))
	if err != nil {
		return fmt.Errorf("run %s: %w", reasoningAction, err)
	}
	if outcome.Status != models.LogSuccess {
		return fmt.Errorf("%s returned %s", reasoningAction, outcome.Status)
	}

	summary := reasoningSummaryText(outcome)
	if summary == "" {
		return nil
	}
	if err := e.store.InsertReasoningLog(ctx, job.ID, summary); err != nil {
		log.Warn("failed to persist reasoning log", "error", err)
	}
	return nil
}

// reasoningSummaryText extracts a readable string from the pass-through
// reasoning action result, which (like extract.deep_dive) carries no
// enforced schema: accept either a bare string body or a {"summary": "..."}
// object.
func reasoningSummaryText(outcome *llmaction.Outcome) string {
	if outcome.Result == nil {
		return ""
	}
	raw, ok := outcome.Result.Meta["raw"]
	if !ok {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["summary"].(string); ok {
			return s
		}
	}
	return ""
}
