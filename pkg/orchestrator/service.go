package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/lineagekit/discovery/pkg/store"
)

// Service exposes the submission/approval/cancel/inspection surface to
// whatever transport wraps it (cmd/discoveryd's CLI today). It only talks
// to the store; the job itself is driven asynchronously by Executor once
// the worker pool picks it off the queue.
type Service struct {
	store *store.Store
}

// NewService constructs a Service backed by st.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Submit registers (or reuses) a solution and enqueues a new discovery job
// for it. Fresh submissions should pass requiresApproval=true; callers that
// want unattended runs must opt out explicitly.
func (s *Service) Submit(ctx context.Context, displayName, storagePath string, requiresApproval bool) (jobID string, err error) {
	sol, err := s.store.GetOrCreateSolution(ctx, displayName, storagePath)
	if err != nil {
		return "", fmt.Errorf("get or create solution: %w", err)
	}
	job, err := s.store.CreateJob(ctx, sol.ID, requiresApproval)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	if _, err := s.store.EnqueueJob(ctx, job.ID); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return job.ID, nil
}

// Approve marks a plan approved and re-queues its job for execution,
// releasing the approval barrier the planner parked it behind.
func (s *Service) Approve(ctx context.Context, planID string) (jobID string, err error) {
	jobID, err = s.store.ApprovePlan(ctx, planID)
	if err != nil {
		return "", fmt.Errorf("approve plan: %w", err)
	}
	if _, err := s.store.EnqueueJob(ctx, jobID); err != nil {
		return "", fmt.Errorf("enqueue approved job: %w", err)
	}
	return jobID, nil
}

// Cancel transitions a solution's most recent non-terminal job to
// cancelled. The orchestrator observes this between items and stops
// cleanly; cancellation is a terminal state, not an error.
func (s *Service) Cancel(ctx context.Context, solutionID string) error {
	job, err := s.store.LatestNonTerminalJob(ctx, solutionID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no active job for solution %s", solutionID)
	}
	if err != nil {
		return fmt.Errorf("find active job: %w", err)
	}
	if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobCancelled); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return nil
}

// GetPlan loads a plan with its areas and items for display/approval.
func (s *Service) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	return s.store.GetPlan(ctx, planID)
}

// GetActivePlan resolves the plan attached to a solution's most recent
// non-terminal job, if any.
func (s *Service) GetActivePlan(ctx context.Context, solutionID string) (*models.Plan, error) {
	job, err := s.store.LatestNonTerminalJob(ctx, solutionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	planID, _, err := s.store.PlanStatusByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("load plan status: %w", err)
	}
	if planID == "" {
		return nil, nil
	}
	return s.store.GetPlan(ctx, planID)
}

// GetJobLogs lists every file_processing_log row for a job, oldest first.
func (s *Service) GetJobLogs(ctx context.Context, jobID string) ([]*models.FileProcessingLog, error) {
	return s.store.FileProcessingLogsByJob(ctx, jobID)
}

// GetAuditHistory lists audit snapshots for a solution, newest first.
func (s *Service) GetAuditHistory(ctx context.Context, solutionID string) ([]*models.AuditSnapshot, error) {
	return s.store.AuditHistory(ctx, solutionID)
}

// GetJob loads a single job by id, for status polling.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return s.store.GetJob(ctx, jobID)
}
