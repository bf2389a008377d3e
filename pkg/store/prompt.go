package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lineagekit/discovery/pkg/models"
)

// ActionPromptConfigByName resolves the base/domain/org/reasoner layer ids
// configured for an action name. Returns nil, nil when the
// action has no DB-backed configuration (callers fall back to the
// filesystem prompt file).
func (s *Store) ActionPromptConfigByName(ctx context.Context, actionName string) (*models.ActionPromptConfig, error) {
	var cfg models.ActionPromptConfig
	var base, domain, org, reasoner sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT action_name, base_id, domain_id, org_id, reasoner_id
		FROM action_prompt_config WHERE action_name = $1`, actionName).
		Scan(&cfg.ActionName, &base, &domain, &org, &reasoner)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("action prompt config by name: %w", err)
	}
	if base.Valid {
		cfg.BaseID = &base.String
	}
	if domain.Valid {
		cfg.DomainID = &domain.String
	}
	if org.Valid {
		cfg.OrgID = &org.String
	}
	if reasoner.Valid {
		cfg.ReasonerID = &reasoner.String
	}
	return &cfg, nil
}

// ProjectActionConfigSolutionLayer resolves the SOLUTION layer override id
// for (project_id, action).
func (s *Store) ProjectActionConfigSolutionLayer(ctx context.Context, projectID, actionName string) (*string, error) {
	var solutionID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT solution_id FROM project_action_config WHERE project_id = $1 AND action_name = $2`,
		projectID, actionName).Scan(&solutionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project action config: %w", err)
	}
	if !solutionID.Valid {
		return nil, nil
	}
	return &solutionID.String, nil
}

// PromptLayerContent fetches the content of a single prompt layer by id.
func (s *Store) PromptLayerContent(ctx context.Context, layerID string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM prompt_layer WHERE id = $1`, layerID).Scan(&content)
	if err != nil {
		return "", fmt.Errorf("prompt layer content: %w", err)
	}
	return content, nil
}

// UpsertPromptLayer inserts or replaces a named prompt layer, used by
// seeding/admin tooling and by tests.
func (s *Store) UpsertPromptLayer(ctx context.Context, layer *models.PromptLayer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompt_layer (id, name, layer_type, content) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, layer_type = EXCLUDED.layer_type,
		                                content = EXCLUDED.content`,
		layer.ID, layer.Name, layer.LayerType, layer.Content)
	if err != nil {
		return fmt.Errorf("upsert prompt layer: %w", err)
	}
	return nil
}
