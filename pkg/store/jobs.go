package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lineagekit/discovery/pkg/models"
)

// GetOrCreateSolution inserts a new solution, or returns the existing one
// when a solution with the same storage_path already exists.
func (s *Store) GetOrCreateSolution(ctx context.Context, displayName, storagePath string) (*models.Solution, error) {
	var sol models.Solution
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, storage_path, status, created_at, updated_at
		FROM solutions WHERE storage_path = $1`, storagePath).
		Scan(&sol.ID, &sol.DisplayName, &sol.StoragePath, &status, &sol.CreatedAt, &sol.UpdatedAt)
	if err == nil {
		sol.Status = models.SolutionStatus(status)
		return &sol, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("lookup solution: %w", err)
	}

	sol = models.Solution{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		StoragePath: storagePath,
		Status:      models.SolutionPending,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO solutions (id, display_name, storage_path, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())`,
		sol.ID, sol.DisplayName, sol.StoragePath, sol.Status)
	if err != nil {
		return nil, fmt.Errorf("create solution: %w", err)
	}
	return &sol, nil
}

// GetSolution fetches a solution by id, used by the Orchestrator to resolve
// storage_path before invoking the Artifact Fetcher.
func (s *Store) GetSolution(ctx context.Context, id string) (*models.Solution, error) {
	var sol models.Solution
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, storage_path, status, created_at, updated_at
		FROM solutions WHERE id = $1`, id).
		Scan(&sol.ID, &sol.DisplayName, &sol.StoragePath, &status, &sol.CreatedAt, &sol.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get solution: %w", err)
	}
	sol.Status = models.SolutionStatus(status)
	return &sol, nil
}

// UpdateSolutionStatus transitions a solution's status.
func (s *Store) UpdateSolutionStatus(ctx context.Context, id string, status models.SolutionStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE solutions SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update solution status: %w", err)
	}
	return nil
}

// CreateJob inserts a new job row for a solution.
func (s *Store) CreateJob(ctx context.Context, projectID string, requiresApproval bool) (*models.Job, error) {
	job := &models.Job{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		Status:           models.JobQueued,
		CurrentStage:     "ingest",
		RequiresApproval: requiresApproval,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_run (id, project_id, status, current_stage, progress_pct, requires_approval, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, now(), now())`,
		job.ID, job.ProjectID, job.Status, job.CurrentStage, job.RequiresApproval)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var j models.Job
	var status string
	var planID, errMsg, errDetails sql.NullString
	var startedAt, finishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, status, current_stage, progress_pct, plan_id,
		       requires_approval, started_at, finished_at, error_message, error_details,
		       created_at, updated_at
		FROM job_run WHERE id = $1`, id).
		Scan(&j.ID, &j.ProjectID, &status, &j.CurrentStage, &j.ProgressPct, &planID,
			&j.RequiresApproval, &startedAt, &finishedAt, &errMsg, &errDetails,
			&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	j.Status = models.JobStatus(status)
	if planID.Valid {
		j.PlanID = &planID.String
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		j.FinishedAt = &finishedAt.Time
	}
	if errMsg.Valid {
		j.ErrorMessage = &errMsg.String
	}
	if errDetails.Valid {
		j.ErrorDetails = &errDetails.String
	}
	return &j, nil
}

// TouchJob bumps job_run.updated_at, used by the queue worker's heartbeat to
// keep a running job from being mistaken for an orphan.
func (s *Store) TouchJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE job_run SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch job: %w", err)
	}
	return nil
}

// UpdateJobStage updates the job's current stage and progress.
func (s *Store) UpdateJobStage(ctx context.Context, id, stage string, progressPct int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_run SET current_stage = $2, progress_pct = $3, updated_at = now() WHERE id = $1`,
		id, stage, progressPct)
	if err != nil {
		return fmt.Errorf("update job stage: %w", err)
	}
	return nil
}

// UpdateJobStatus transitions job.status, stamping started_at/finished_at as needed.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus) error {
	switch status {
	case models.JobRunning:
		_, err := s.db.ExecContext(ctx, `
			UPDATE job_run SET status = $2, started_at = COALESCE(started_at, now()), updated_at = now()
			WHERE id = $1`, id, status)
		return err
	case models.JobCompleted, models.JobFailed, models.JobCancelled:
		_, err := s.db.ExecContext(ctx, `
			UPDATE job_run SET status = $2, finished_at = now(), updated_at = now() WHERE id = $1`,
			id, status)
		return err
	default:
		_, err := s.db.ExecContext(ctx, `
			UPDATE job_run SET status = $2, updated_at = now() WHERE id = $1`, id, status)
		return err
	}
}

// SetJobPlan attaches a plan to a job and marks it planning_ready.
func (s *Store) SetJobPlan(ctx context.Context, jobID, planID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_run SET plan_id = $2, status = $3, updated_at = now() WHERE id = $1`,
		jobID, planID, models.JobPlanningReady)
	if err != nil {
		return fmt.Errorf("set job plan: %w", err)
	}
	return nil
}

// FailJob persists a fatal error and transitions the job to failed.
func (s *Store) FailJob(ctx context.Context, id, message, details string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_run
		SET status = $2, error_message = $3, error_details = $4, finished_at = now(), updated_at = now()
		WHERE id = $1`, id, models.JobFailed, message, details)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// LatestNonTerminalJob returns the most recent non-terminal job for a solution.
func (s *Store) LatestNonTerminalJob(ctx context.Context, solutionID string) (*models.Job, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM job_run
		WHERE project_id = $1 AND status NOT IN ('completed','failed','cancelled')
		ORDER BY created_at DESC LIMIT 1`, solutionID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("latest non-terminal job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// CreatePlan inserts a plan with its areas and items in a single
// transaction, and attaches the plan to the job.
func (s *Store) CreatePlan(ctx context.Context, plan *models.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin plan tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	plan.ID = uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_plan (id, job_id, status, mode, total_files, total_cost_est, total_time_est, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		plan.ID, plan.JobID, plan.Status, plan.Mode, plan.TotalFiles, plan.TotalCostEst, plan.TotalTimeEst)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	for _, area := range plan.Areas {
		area.ID = uuid.NewString()
		area.PlanID = plan.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO job_plan_area (id, plan_id, name, order_index) VALUES ($1, $2, $3, $4)`,
			area.ID, area.PlanID, area.Name, area.OrderIndex)
		if err != nil {
			return fmt.Errorf("insert plan area: %w", err)
		}

		for _, item := range area.Items {
			item.ID = uuid.NewString()
			item.AreaID = area.ID
			_, err = tx.ExecContext(ctx, `
				INSERT INTO job_plan_item
					(id, area_id, path, file_hash, size_bytes, file_type, classifier, strategy,
					 recommended_action, enabled, order_index, est_tokens, est_cost_usd, est_time_seconds, status)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
				item.ID, item.AreaID, item.Path, item.FileHash, item.SizeBytes, item.FileType,
				item.Classifier, item.Strategy, item.RecommendedAction, item.Enabled, item.OrderIndex,
				item.Estimate.Tokens, item.Estimate.CostUSD, item.Estimate.TimeSeconds, item.Status)
			if err != nil {
				return fmt.Errorf("insert plan item: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE job_run SET plan_id = $2, status = $3, updated_at = now() WHERE id = $1`,
		plan.JobID, plan.ID, models.JobPlanningReady)
	if err != nil {
		return fmt.Errorf("attach plan to job: %w", err)
	}

	return tx.Commit()
}

// GetPlan loads a plan, its areas, and its items.
func (s *Store) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	var plan models.Plan
	var status, mode string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, status, mode, total_files, total_cost_est, total_time_est, created_at, updated_at
		FROM job_plan WHERE id = $1`, planID).
		Scan(&plan.ID, &plan.JobID, &status, &mode, &plan.TotalFiles, &plan.TotalCostEst, &plan.TotalTimeEst,
			&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	plan.Status = models.PlanStatus(status)
	plan.Mode = models.PlanMode(mode)

	areaRows, err := s.db.QueryContext(ctx, `
		SELECT id, name, order_index FROM job_plan_area WHERE plan_id = $1 ORDER BY order_index`, planID)
	if err != nil {
		return nil, fmt.Errorf("list plan areas: %w", err)
	}
	defer areaRows.Close()

	for areaRows.Next() {
		area := &models.PlanArea{PlanID: plan.ID}
		var name string
		if err := areaRows.Scan(&area.ID, &name, &area.OrderIndex); err != nil {
			return nil, fmt.Errorf("scan plan area: %w", err)
		}
		area.Name = models.AreaName(name)
		plan.Areas = append(plan.Areas, area)
	}
	if err := areaRows.Err(); err != nil {
		return nil, err
	}

	for _, area := range plan.Areas {
		itemRows, err := s.db.QueryContext(ctx, `
			SELECT id, path, file_hash, size_bytes, file_type, classifier, strategy,
			       recommended_action, enabled, order_index, est_tokens, est_cost_usd, est_time_seconds, status
			FROM job_plan_item WHERE area_id = $1 ORDER BY order_index`, area.ID)
		if err != nil {
			return nil, fmt.Errorf("list plan items: %w", err)
		}
		for itemRows.Next() {
			item := &models.PlanItem{AreaID: area.ID}
			var strategy, action, status string
			if err := itemRows.Scan(&item.ID, &item.Path, &item.FileHash, &item.SizeBytes, &item.FileType,
				&item.Classifier, &strategy, &action, &item.Enabled, &item.OrderIndex,
				&item.Estimate.Tokens, &item.Estimate.CostUSD, &item.Estimate.TimeSeconds, &status); err != nil {
				itemRows.Close()
				return nil, fmt.Errorf("scan plan item: %w", err)
			}
			item.Strategy = models.Strategy(strategy)
			item.RecommendedAction = models.RecommendedAction(action)
			item.Status = models.ItemStatus(status)
			area.Items = append(area.Items, item)
		}
		if err := itemRows.Err(); err != nil {
			itemRows.Close()
			return nil, err
		}
		itemRows.Close()
	}

	return &plan, nil
}

// ApprovePlan transitions a plan to approved and re-queues its job.
func (s *Store) ApprovePlan(ctx context.Context, planID string) (jobID string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin approve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		UPDATE job_plan SET status = $2, updated_at = now() WHERE id = $1 RETURNING job_id`,
		planID, models.PlanApproved).Scan(&jobID)
	if err != nil {
		return "", fmt.Errorf("approve plan: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE job_run SET status = $2, updated_at = now() WHERE id = $1`,
		jobID, models.JobQueued)
	if err != nil {
		return "", fmt.Errorf("requeue job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit approve: %w", err)
	}
	return jobID, nil
}

// UpdatePlanItemStatus transitions a single plan item's status.
func (s *Store) UpdatePlanItemStatus(ctx context.Context, itemID string, status models.ItemStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE job_plan_item SET status = $2 WHERE id = $1`, itemID, status)
	if err != nil {
		return fmt.Errorf("update plan item status: %w", err)
	}
	return nil
}

// PlanStatusByJob returns the current plan status for a job's attached plan.
func (s *Store) PlanStatusByJob(ctx context.Context, jobID string) (planID string, status models.PlanStatus, err error) {
	var st string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, status FROM job_plan WHERE job_id = $1
		ORDER BY created_at DESC LIMIT 1`, jobID).Scan(&planID, &st)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("plan status by job: %w", err)
	}
	return planID, models.PlanStatus(st), nil
}

// EvidenceExistsWithHash reports whether a file at path with hash has
// already been processed for project_id, used by the Planner's
// "unchanged since last run" skip rule.
func (s *Store) EvidenceExistsWithHash(ctx context.Context, projectID, filePath, hash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM evidence WHERE project_id = $1 AND file_path = $2 AND hash = $3`,
		projectID, filePath, hash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("evidence exists with hash: %w", err)
	}
	return n > 0, nil
}
