// Package orchestrator owns the job lifecycle state machine:
// ingest -> plan -> approval barrier -> execute -> post-process. It is the
// queue.JobExecutor the worker pool drives, and also exposes the
// submission/approval/cancel/inspection surface as exported Service
// methods.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lineagekit/discovery/pkg/audit"
	"github.com/lineagekit/discovery/pkg/catalog"
	"github.com/lineagekit/discovery/pkg/fetch"
	"github.com/lineagekit/discovery/pkg/llmaction"
	"github.com/lineagekit/discovery/pkg/models"
	"github.com/lineagekit/discovery/pkg/plan"
	"github.com/lineagekit/discovery/pkg/queue"
	"github.com/lineagekit/discovery/pkg/store"
	"github.com/lineagekit/discovery/pkg/tracing"
)

// Executor implements queue.JobExecutor: it drives one job from wherever it
// left off (ingest, a fresh plan, or an approved plan's items) through to a
// terminal status. Re-entering the same job_id after the planning_ready
// pause continues rather than restarts, since every step's state is
// persisted.
type Executor struct {
	store   *store.Store
	fetcher *fetch.Fetcher
	planner *plan.Planner
	syncer  *catalog.Syncer
	runner  *llmaction.Runner
	audit   *audit.Logger
	tracer  *tracing.Provider

	// ReportsRoot, when set, is the directory under which per-solution
	// report files are written ({root}/{solution_id}/reports/).
	ReportsRoot string
}

// New constructs an Executor from its collaborators. tracer may be nil, in
// which case stage spans are skipped.
func New(st *store.Store, fetcher *fetch.Fetcher, planner *plan.Planner, syncer *catalog.Syncer, runner *llmaction.Runner, auditLogger *audit.Logger, tracer *tracing.Provider) *Executor {
	return &Executor{store: st, fetcher: fetcher, planner: planner, syncer: syncer, runner: runner, audit: auditLogger, tracer: tracer}
}

// Execute drives job through ingest, planning, the approval barrier, item
// execution, and post-processing. It never panics on a per-item failure
// (those are isolated and logged); ingest and planning failures are fatal
// and return a JobFailed result.
func (e *Executor) Execute(ctx context.Context, job *models.Job) *queue.ExecutionResult {
	log := slog.With("job_id", job.ID, "project_id", job.ProjectID)

	ctx, endSpan := e.startStage(ctx, "execute", job)
	defer endSpan()

	rootDir, planID, planStatus, err := e.resolveStageState(ctx, job, log)
	if err != nil {
		return fatal(err)
	}
	if rootDir == "" {
		// A fresh plan was just produced, or an existing plan is still
		// awaiting approval: the worker releases the queue entry as
		// complete; re-enqueue comes from Approve.
		return &queue.ExecutionResult{Status: models.JobPlanningReady}
	}

	if planStatus != models.PlanApproved {
		return &queue.ExecutionResult{Status: models.JobPlanningReady}
	}

	planDoc, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return fatal(fmt.Errorf("%s: load approved plan: %w", models.ErrPlanner, err))
	}

	if err := e.store.UpdateJobStatus(ctx, job.ID, models.JobRunning); err != nil {
		log.Warn("failed to mark job running before execution", "error", err)
	}

	cancelled, err := e.runItems(ctx, job, planDoc, rootDir, log)
	if err != nil {
		return fatal(err)
	}
	if cancelled {
		return &queue.ExecutionResult{Status: models.JobCancelled, Error: ErrCancelled}
	}

	if err := e.postProcess(ctx, job, log); err != nil {
		log.Error("post-process failed, job still completes", "error", err)
	}

	return &queue.ExecutionResult{Status: models.JobCompleted}
}

// ErrCancelled is returned in the finalize path when a job is observed
// cancelled between items; it is not persisted as error_details since
// cancellation is a clean terminal state, not an error.
var ErrCancelled = fmt.Errorf("job cancelled by user")

func fatal(err error) *queue.ExecutionResult {
	return &queue.ExecutionResult{Status: models.JobFailed, Error: err}
}

// resolveStageState runs the ingest and plan-check steps, returning
// rootDir == "" when the caller should return control
// to the worker without executing items (a plan was just created, or an
// existing one isn't approved yet).
func (e *Executor) resolveStageState(ctx context.Context, job *models.Job, log *slog.Logger) (rootDir, planID string, planStatus models.PlanStatus, err error) {
	planID, planStatus, err = e.store.PlanStatusByJob(ctx, job.ID)
	if err != nil {
		return "", "", "", fmt.Errorf("%s: load plan status: %w", models.ErrPlanner, err)
	}

	if planID != "" {
		// A plan already exists for this job (we're resuming post-approval,
		// or re-polling while still waiting). Re-ingest to get rootDir back
		// for execution; ingest is idempotent (fetch into a fresh dir).
		if planStatus != models.PlanApproved {
			return "", planID, planStatus, nil
		}
		dir, ierr := e.ingest(ctx, job, log)
		if ierr != nil {
			return "", "", "", ierr
		}
		return dir, planID, planStatus, nil
	}

	dir, ierr := e.ingest(ctx, job, log)
	if ierr != nil {
		return "", "", "", ierr
	}

	if err := e.store.UpdateJobStage(ctx, job.ID, "planning", 0); err != nil {
		log.Warn("failed to update job stage to planning", "error", err)
	}

	newPlan, perr := e.planner.BuildAndPersist(ctx, job.ID, job.ProjectID, dir)
	if perr != nil {
		return "", "", "", fmt.Errorf("%w", perr)
	}

	if !job.RequiresApproval {
		if _, aerr := e.store.ApprovePlan(ctx, newPlan.ID); aerr != nil {
			return "", "", "", fmt.Errorf("%s: auto-approve plan: %w", models.ErrPlanner, aerr)
		}
		return dir, newPlan.ID, models.PlanApproved, nil
	}

	return "", newPlan.ID, newPlan.Status, nil
}

// startStage opens a tracing span around one orchestrator stage, returning
// a no-op ender when no tracer is configured so callers never branch.
func (e *Executor) startStage(ctx context.Context, stage string, job *models.Job) (context.Context, func()) {
	if e.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := e.tracer.StartStage(ctx, stage, job.ID, job.ProjectID)
	return ctx, func() { span.End() }
}

// startLLMCall opens a tracing span around one LLM action invocation.
func (e *Executor) startLLMCall(ctx context.Context, action, filePath string) (context.Context, func()) {
	if e.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := e.tracer.StartLLMCall(ctx, action, filePath)
	return ctx, func() { span.End() }
}

// ingest resolves the solution's storage_path and localizes it onto a
// filesystem root via the artifact fetcher.
func (e *Executor) ingest(ctx context.Context, job *models.Job, log *slog.Logger) (string, error) {
	if err := e.store.UpdateJobStage(ctx, job.ID, "ingest", 0); err != nil {
		log.Warn("failed to update job stage to ingest", "error", err)
	}

	sol, err := e.store.GetSolution(ctx, job.ProjectID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", models.ErrIngest, err)
	}

	dir, err := e.fetcher.Localize(ctx, sol.StoragePath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", models.ErrIngest, err)
	}
	return dir, nil
}
