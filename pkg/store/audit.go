package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lineagekit/discovery/pkg/models"
)

// InsertFileProcessingLog persists one row per (job, file, action).
func (s *Store) InsertFileProcessingLog(ctx context.Context, l *models.FileProcessingLog) (string, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	chain, err := json.Marshal(l.FallbackChain)
	if err != nil {
		return "", fmt.Errorf("marshal fallback chain: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO file_processing_log
			(id, job_id, file_path, action_name, strategy_used, model_provider, model_used,
			 fallback_used, fallback_chain, status, tokens_in, tokens_out, cost_estimate_usd,
			 latency_ms, error_type, error_message, retry_count, nodes_extracted, edges_extracted,
			 evidences_extracted, result_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,now())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, model_provider = EXCLUDED.model_provider,
			model_used = EXCLUDED.model_used, fallback_used = EXCLUDED.fallback_used,
			fallback_chain = EXCLUDED.fallback_chain, tokens_in = EXCLUDED.tokens_in,
			tokens_out = EXCLUDED.tokens_out, cost_estimate_usd = EXCLUDED.cost_estimate_usd,
			latency_ms = EXCLUDED.latency_ms, error_type = EXCLUDED.error_type,
			error_message = EXCLUDED.error_message, retry_count = EXCLUDED.retry_count,
			nodes_extracted = EXCLUDED.nodes_extracted, edges_extracted = EXCLUDED.edges_extracted,
			evidences_extracted = EXCLUDED.evidences_extracted, result_hash = EXCLUDED.result_hash`,
		l.ID, l.JobID, l.FilePath, l.ActionName, l.StrategyUsed, l.ModelProvider, l.ModelUsed,
		l.FallbackUsed, chain, l.Status, l.TokensIn, l.TokensOut, l.CostEstimateUSD, l.LatencyMS,
		l.ErrorType, l.ErrorMessage, l.RetryCount, l.NodesExtracted, l.EdgesExtracted,
		l.EvidencesExtracted, l.ResultHash)
	if err != nil {
		return "", fmt.Errorf("insert file processing log: %w", err)
	}
	return l.ID, nil
}

// FileProcessingLogsByJob lists every log row for a job, oldest first.
func (s *Store) FileProcessingLogsByJob(ctx context.Context, jobID string) ([]*models.FileProcessingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, file_path, action_name, strategy_used, model_provider, model_used,
		       fallback_used, fallback_chain, status, tokens_in, tokens_out, cost_estimate_usd,
		       latency_ms, error_type, error_message, retry_count, nodes_extracted, edges_extracted,
		       evidences_extracted, result_hash, created_at
		FROM file_processing_log WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list file processing logs: %w", err)
	}
	defer rows.Close()

	var out []*models.FileProcessingLog
	for rows.Next() {
		l := &models.FileProcessingLog{}
		var strategy, status string
		var provider, modelUsed, errType, errMsg, resultHash sql.NullString
		var chain []byte
		if err := rows.Scan(&l.ID, &l.JobID, &l.FilePath, &l.ActionName, &strategy, &provider, &modelUsed,
			&l.FallbackUsed, &chain, &status, &l.TokensIn, &l.TokensOut, &l.CostEstimateUSD,
			&l.LatencyMS, &errType, &errMsg, &l.RetryCount, &l.NodesExtracted, &l.EdgesExtracted,
			&l.EvidencesExtracted, &resultHash, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file processing log: %w", err)
		}
		l.StrategyUsed = models.Strategy(strategy)
		l.Status = models.FileLogStatus(status)
		if provider.Valid {
			l.ModelProvider = &provider.String
		}
		if modelUsed.Valid {
			l.ModelUsed = &modelUsed.String
		}
		if errType.Valid {
			k := models.ErrorKind(errType.String)
			l.ErrorType = &k
		}
		if errMsg.Valid {
			l.ErrorMessage = &errMsg.String
		}
		if resultHash.Valid {
			l.ResultHash = &resultHash.String
		}
		if len(chain) > 0 {
			_ = json.Unmarshal(chain, &l.FallbackChain)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertAuditSnapshot persists a point-in-time coverage report.
func (s *Store) InsertAuditSnapshot(ctx context.Context, snap *models.AuditSnapshot) (string, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	gaps, err := json.Marshal(snap.Gaps)
	if err != nil {
		return "", fmt.Errorf("marshal gaps: %w", err)
	}
	recs, err := json.Marshal(snap.Recommendations)
	if err != nil {
		return "", fmt.Errorf("marshal recommendations: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_snapshot
			(id, project_id, job_id, total_assets, total_relationships, coverage_score,
			 avg_confidence, hypothesis_ratio, gaps, recommendations, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())`,
		snap.ID, snap.ProjectID, snap.JobID, snap.Metrics.TotalAssets, snap.Metrics.TotalRelationships,
		snap.Metrics.CoverageScore, snap.Metrics.AvgConfidence, snap.Metrics.HypothesisRatio, gaps, recs)
	if err != nil {
		return "", fmt.Errorf("insert audit snapshot: %w", err)
	}
	return snap.ID, nil
}

// AuditHistory lists audit snapshots for a solution, newest first.
func (s *Store) AuditHistory(ctx context.Context, projectID string) ([]*models.AuditSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, job_id, total_assets, total_relationships, coverage_score,
		       avg_confidence, hypothesis_ratio, gaps, recommendations, created_at
		FROM audit_snapshot WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("audit history: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditSnapshot
	for rows.Next() {
		snap := &models.AuditSnapshot{}
		var gaps, recs []byte
		if err := rows.Scan(&snap.ID, &snap.ProjectID, &snap.JobID, &snap.Metrics.TotalAssets,
			&snap.Metrics.TotalRelationships, &snap.Metrics.CoverageScore, &snap.Metrics.AvgConfidence,
			&snap.Metrics.HypothesisRatio, &gaps, &recs, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit snapshot: %w", err)
		}
		_ = json.Unmarshal(gaps, &snap.Gaps)
		_ = json.Unmarshal(recs, &snap.Recommendations)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// InsertReasoningLog persists a synthesized reasoning summary for a job.
func (s *Store) InsertReasoningLog(ctx context.Context, jobID, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reasoning_log (id, job_id, content, created_at) VALUES ($1, $2, $3, now())`,
		uuid.NewString(), jobID, content)
	if err != nil {
		return fmt.Errorf("insert reasoning log: %w", err)
	}
	return nil
}
