package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/lineagekit/discovery/pkg/audit"
	"github.com/lineagekit/discovery/pkg/extract"
	"github.com/lineagekit/discovery/pkg/llmaction"
	"github.com/lineagekit/discovery/pkg/models"
)

// runItems executes every enabled plan item, strictly in
// (area.order_index, item.order_index) order, one at a time: an item's
// deep-dive must complete before the next item starts, because the
// node_id map is per-file and must not leak across files.
func (e *Executor) runItems(ctx context.Context, job *models.Job, planDoc *models.Plan, rootDir string, log *slog.Logger) (cancelled bool, err error) {
	enabled := make([]*models.PlanItem, 0)
	for _, area := range planDoc.Areas {
		for _, item := range area.Items {
			if item.Enabled {
				enabled = append(enabled, item)
			}
		}
	}
	total := len(enabled)
	jobPrefix := shortID(job.ID)

	for i, item := range enabled {
		current, gerr := e.store.GetJob(ctx, job.ID)
		if gerr != nil {
			return false, fmt.Errorf("check job status: %w", gerr)
		}
		if current.Status == models.JobCancelled {
			log.Info("job cancelled, stopping before item", "item_path", item.Path, "index", i)
			return true, nil
		}

		pct := int(math.Floor(float64(i) / float64(total) * 100))
		if err := e.store.UpdateJobStage(ctx, job.ID, "processing: "+filepath.Base(item.Path), pct); err != nil {
			log.Warn("failed to update job stage", "error", err)
		}
		if err := e.store.UpdatePlanItemStatus(ctx, item.ID, models.ItemRunning); err != nil {
			log.Warn("failed to mark item running", "item_id", item.ID, "error", err)
		}

		if item.Strategy == models.StrategySkip {
			if err := e.store.UpdatePlanItemStatus(ctx, item.ID, models.ItemCompleted); err != nil {
				log.Warn("failed to mark skipped item completed", "item_id", item.ID, "error", err)
			}
			continue
		}

		if ierr := e.runOneItem(ctx, job, rootDir, item, jobPrefix, log); ierr != nil {
			log.Warn("item failed, continuing with next item", "item_path", item.Path, "error", ierr)
			if err := e.store.UpdatePlanItemStatus(ctx, item.ID, models.ItemFailed); err != nil {
				log.Warn("failed to mark item failed", "item_id", item.ID, "error", err)
			}
			continue
		}
		if err := e.store.UpdatePlanItemStatus(ctx, item.ID, models.ItemCompleted); err != nil {
			log.Warn("failed to mark item completed", "item_id", item.ID, "error", err)
		}
	}

	return false, nil
}

// runOneItem reads the file, dispatches it to a deterministic extractor or
// an LLM action, syncs the result into the catalog, and runs a deep-dive
// pass when the dispatch calls for one. Per-item failures are returned
// to the caller, which logs and isolates them rather than failing the job.
func (e *Executor) runOneItem(ctx context.Context, job *models.Job, rootDir string, item *models.PlanItem, jobPrefix string, log *slog.Logger) error {
	dispatch := extract.Classify(item.Path, item.Strategy)
	absPath := filepath.Join(rootDir, filepath.FromSlash(item.Path))

	var content string
	var vision *llmaction.VisionInput
	if item.Strategy == models.StrategyVLMExtract {
		raw, err := os.ReadFile(absPath)
		if err != nil {
			_ = e.audit.LogFileError(ctx, job.ID, item.Path, actionNameFor(dispatch), item.Strategy, models.ErrActionExecution, err.Error())
			return fmt.Errorf("read binary file: %w", err)
		}
		content = base64.StdEncoding.EncodeToString(raw)
		vision = &llmaction.VisionInput{MIME: mimeForExt(item.Path), Base64: content}
	} else {
		raw, err := os.ReadFile(absPath)
		if err != nil {
			_ = e.audit.LogFileError(ctx, job.ID, item.Path, actionNameFor(dispatch), item.Strategy, models.ErrActionExecution, err.Error())
			return fmt.Errorf("read file: %w", err)
		}
		content = strings.ToValidUTF8(string(raw), "�")
	}

	logID := e.audit.StartItem(job.ID, item.Path, actionNameFor(dispatch), item.Strategy)

	var nodeMap map[string]string
	if dispatch.Deterministic {
		res, err := extract.Run(jobPrefix, item.Path, content)
		if err != nil {
			e.failItemLog(ctx, logID, models.ErrModelExecution, err, log)
			return fmt.Errorf("deterministic extraction: %w", err)
		}
		nodeMap, err = e.syncer.Sync(ctx, job.ProjectID, res)
		if err != nil {
			e.failItemLog(ctx, logID, models.ErrModelExecution, err, log)
			return fmt.Errorf("catalog sync: %w", err)
		}
		if err := e.audit.Complete(ctx, logID, models.LogSuccess, completeOptsFromResult(res)); err != nil {
			log.Warn("failed to persist file processing log", "error", err)
		}
	} else {
		vars := map[string]string{"file_path": item.Path}
		llmCtx, endSpan := e.startLLMCall(ctx, dispatch.Action, item.Path)
		outcome, err := e.runner.Execute(llmCtx, dispatch.Action, job.ProjectID, item.Path, content, vars, vision, jobPrefix)
		endSpan()
		if err != nil {
			e.failItemLog(ctx, logID, models.ErrActionExecution, err, log)
			return fmt.Errorf("llm action %s: %w", dispatch.Action, err)
		}
		if outcome.Status != models.LogSuccess || outcome.Result == nil {
			if err := e.audit.Complete(ctx, logID, outcome.Status, completeOptsFromOutcome(outcome)); err != nil {
				log.Warn("failed to persist file processing log", "error", err)
			}
			return fmt.Errorf("llm action %s: %s", dispatch.Action, outcome.Status)
		}
		nodeMap, err = e.syncer.Sync(ctx, job.ProjectID, outcome.Result)
		if err != nil {
			e.failItemLog(ctx, logID, models.ErrModelExecution, err, log)
			return fmt.Errorf("catalog sync: %w", err)
		}
		if err := e.audit.Complete(ctx, logID, outcome.Status, completeOptsFromOutcome(outcome)); err != nil {
			log.Warn("failed to persist file processing log", "error", err)
		}
	}

	if err := e.syncer.RecordProcessedFile(ctx, job.ProjectID, item.Path, item.FileHash); err != nil {
		log.Warn("failed to record processed-file marker", "item_path", item.Path, "error", err)
	}

	if dispatch.DeepDive {
		if err := e.runDeepDive(ctx, job, item, content, dispatch, nodeMap, jobPrefix, log); err != nil {
			log.Warn("deep-dive pass failed, macro extraction result stands", "item_path", item.Path, "error", err)
		}
	}

	return nil
}

// runDeepDive runs the deterministic deep-dive parser when one exists, or
// falls back to the extract.deep_dive LLM action.
func (e *Executor) runDeepDive(ctx context.Context, job *models.Job, item *models.PlanItem, content string, dispatch extract.Dispatch, nodeMap map[string]string, jobPrefix string, log *slog.Logger) error {
	if !dispatch.DeepDiveLLM {
		dd, handled, err := extract.RunDeepDive(job.ProjectID, item.Path, content)
		if err != nil {
			return fmt.Errorf("deterministic deep-dive: %w", err)
		}
		if handled {
			return e.syncer.SyncDeepDive(ctx, job.ProjectID, dd, nodeMap)
		}
	}

	llmCtx, endSpan := e.startLLMCall(ctx, "extract.deep_dive", item.Path)
	outcome, err := e.runner.Execute(llmCtx, "extract.deep_dive", job.ProjectID, item.Path, content,
		map[string]string{"file_path": item.Path}, nil, jobPrefix)
	endSpan()
	if err != nil {
		return fmt.Errorf("llm deep-dive: %w", err)
	}
	if outcome.Status != models.LogSuccess || outcome.Result == nil {
		return fmt.Errorf("llm deep-dive: %s", outcome.Status)
	}

	raw, _ := outcome.Result.Meta["raw"]
	dd, err := decodeLLMDeepDive(job.ProjectID, item.Path, raw)
	if err != nil {
		return fmt.Errorf("decode llm deep-dive response: %w", err)
	}
	return e.syncer.SyncDeepDive(ctx, job.ProjectID, dd, nodeMap)
}

// failItemLog closes an in-flight audit row as failed with the error's
// kind and message.
func (e *Executor) failItemLog(ctx context.Context, logID string, kind models.ErrorKind, cause error, log *slog.Logger) {
	msg := cause.Error()
	opts := audit.CompleteOptions{ErrorType: &kind, ErrorMessage: &msg}
	if err := e.audit.Complete(ctx, logID, models.LogFailed, opts); err != nil {
		log.Warn("failed to persist failed file processing log", "error", err)
	}
}

// actionNameFor names the file_processing_log.action_name for a dispatch:
// the deterministic extractor's own name, or the LLM action name.
func actionNameFor(d extract.Dispatch) string {
	if d.Deterministic {
		return "extract.deterministic"
	}
	return d.Action
}

func completeOptsFromResult(res *models.ExtractionResult) audit.CompleteOptions {
	return audit.CompleteOptions{
		NodesExtracted:     len(res.Nodes),
		EdgesExtracted:     len(res.Edges),
		EvidencesExtracted: len(res.Evidences),
	}
}

func completeOptsFromOutcome(o *llmaction.Outcome) audit.CompleteOptions {
	shim := audit.CompleteOptions{
		ModelProvider:   o.ModelProvider,
		ModelUsed:       o.ModelUsed,
		FallbackUsed:    o.FallbackUsed,
		FallbackChain:   o.FallbackChain,
		TokensIn:        o.TokensIn,
		TokensOut:       o.TokensOut,
		CostEstimateUSD: o.CostEstimateUSD,
		LatencyMS:       o.LatencyMS,
		ErrorType:       o.ErrorType,
		ErrorMessage:    o.ErrorMessage,
		RetryCount:      o.RetryCount,
	}
	if o.Result != nil {
		shim.NodesExtracted = len(o.Result.Nodes)
		shim.EdgesExtracted = len(o.Result.Edges)
		shim.EvidencesExtracted = len(o.Result.Evidences)
	}
	return shim
}

func mimeForExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
