package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lineagekit/discovery/pkg/models"
)

// UpsertAsset implements the lookup-then-insert dedup rule keyed on
// (project_id, name_display, asset_type). On a hit, tags/system
// are merged and updated_at is touched; on a miss, a fresh UUID is assigned.
func (s *Store) UpsertAsset(ctx context.Context, a *models.Asset) (string, error) {
	var existingID string
	var existingTags []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tags FROM asset WHERE project_id = $1 AND name_display = $2 AND asset_type = $3`,
		a.ProjectID, a.NameDisplay, a.AssetType).Scan(&existingID, &existingTags)

	if err == nil {
		merged := map[string]any{}
		if len(existingTags) > 0 {
			_ = json.Unmarshal(existingTags, &merged)
		}
		for k, v := range a.Tags {
			merged[k] = v
		}
		tagsJSON, mErr := json.Marshal(merged)
		if mErr != nil {
			return "", fmt.Errorf("marshal merged tags: %w", mErr)
		}
		_, err = s.db.ExecContext(ctx, `
			UPDATE asset SET tags = $2, system = $3, canonical_name = $4, updated_at = now() WHERE id = $1`,
			existingID, tagsJSON, a.System, a.CanonicalName)
		if err != nil {
			return "", fmt.Errorf("update existing asset: %w", err)
		}
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("lookup asset: %w", err)
	}

	id := uuid.NewString()
	tagsJSON, err := json.Marshal(a.Tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO asset (id, project_id, asset_type, name_display, canonical_name, system, tags, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())`,
		id, a.ProjectID, a.AssetType, a.NameDisplay, a.CanonicalName, a.System, tagsJSON)
	if err != nil {
		return "", fmt.Errorf("insert asset: %w", err)
	}
	return id, nil
}

// UpsertEvidence implements the hash-based dedup rule: lookup by
// (project_id, hash, file_path) when hash is present; insert if new.
// Evidence without a hash is always inserted (no stable identity to dedup on).
func (s *Store) UpsertEvidence(ctx context.Context, e *models.Evidence) (string, error) {
	if e.Hash != nil {
		var existingID string
		err := s.db.QueryRowContext(ctx, `
			SELECT id FROM evidence WHERE project_id = $1 AND hash = $2 AND file_path = $3`,
			e.ProjectID, *e.Hash, e.FilePath).Scan(&existingID)
		if err == nil {
			return existingID, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("lookup evidence: %w", err)
		}
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence (id, project_id, file_path, kind, line_start, line_end, xpath,
		                       byte_start, byte_end, snippet, hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())`,
		id, e.ProjectID, e.FilePath, e.Kind, e.Locator.LineStart, e.Locator.LineEnd, e.Locator.XPath,
		e.Locator.ByteStart, e.Locator.ByteEnd, e.Snippet, e.Hash)
	if err != nil {
		return "", fmt.Errorf("insert evidence: %w", err)
	}
	return id, nil
}

// UpsertEdge implements the dedup rule (project_id, from, to, edge_type); on
// conflict it updates confidence/is_hypothesis/extractor_id.
func (s *Store) UpsertEdge(ctx context.Context, e *models.Edge) (string, error) {
	var existingID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM edge_index
		WHERE project_id = $1 AND from_asset_id = $2 AND to_asset_id = $3 AND edge_type = $4`,
		e.ProjectID, e.FromAssetID, e.ToAssetID, e.EdgeType).Scan(&existingID)

	if err == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE edge_index SET confidence = $2, is_hypothesis = $3, extractor_id = $4, updated_at = now()
			WHERE id = $1`, existingID, e.Confidence, e.IsHypothesis, e.ExtractorID)
		if err != nil {
			return "", fmt.Errorf("update existing edge: %w", err)
		}
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("lookup edge: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO edge_index (id, project_id, from_asset_id, to_asset_id, edge_type, confidence,
		                         is_hypothesis, extractor_id, rationale, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())`,
		id, e.ProjectID, e.FromAssetID, e.ToAssetID, e.EdgeType, e.Confidence, e.IsHypothesis,
		e.ExtractorID, e.Rationale)
	if err != nil {
		return "", fmt.Errorf("insert edge: %w", err)
	}
	return id, nil
}

// LinkEdgeEvidence links an edge to a supporting evidence row, ignoring a
// duplicate-link conflict.
func (s *Store) LinkEdgeEvidence(ctx context.Context, edgeID, evidenceID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edge_evidence (edge_id, evidence_id) VALUES ($1, $2)
		ON CONFLICT (edge_id, evidence_id) DO NOTHING`, edgeID, evidenceID)
	if err != nil {
		return fmt.Errorf("link edge evidence: %w", err)
	}
	return nil
}

// UpsertPackage upserts a Package row by id. Both deep-dive producers
// (extract.DeepDiveDTSX and the LLM deep-dive decoder) assign a fresh
// uuid per call, so the id is not stable across reruns of the same file.
func (s *Store) UpsertPackage(ctx context.Context, p *models.Package) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO package (id, project_id, name, source_file) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, source_file = EXCLUDED.source_file`,
		p.ID, p.ProjectID, p.Name, p.SourceFile)
	if err != nil {
		return fmt.Errorf("upsert package: %w", err)
	}
	return nil
}

// UpsertPackageComponent upserts one component of a package, recording the
// bridged asset_id back-reference.
func (s *Store) UpsertPackageComponent(ctx context.Context, c *models.PackageComponent, assetID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO package_component (id, package_id, name, type, order_index, asset_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type,
		                                order_index = EXCLUDED.order_index, asset_id = EXCLUDED.asset_id`,
		c.ID, c.PackageID, c.Name, c.Type, c.OrderIndex, assetID)
	if err != nil {
		return fmt.Errorf("upsert package component: %w", err)
	}
	return nil
}

// InsertTransformation records one TransformationIR row. source_component_id
// is nulled out by the caller when it fails to resolve to a known component,
// tolerating nulled-out source_component_id references.
func (s *Store) InsertTransformation(ctx context.Context, t *models.TransformationIR) error {
	detail, err := json.Marshal(t.Detail)
	if err != nil {
		return fmt.Errorf("marshal transformation detail: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transformation_ir (id, component_id, operation, source_component_id, detail)
		VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.ComponentID, t.Operation, t.SourceComponentID, detail)
	if err != nil {
		return fmt.Errorf("insert transformation: %w", err)
	}
	return nil
}

// InsertColumnLineage persists one ColumnLineage row.
func (s *Store) InsertColumnLineage(ctx context.Context, c *models.ColumnLineage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO column_lineage (id, project_id, source_asset_id, source_column,
		                             target_asset_id, target_column, transformation_rule, confidence)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.ProjectID, c.SourceAssetID, c.SourceColumn, c.TargetAssetID, c.TargetColumn,
		c.TransformationRule, c.Confidence)
	if err != nil {
		return fmt.Errorf("insert column lineage: %w", err)
	}
	return nil
}

// CountAssetsByProject returns the total asset count for idempotence tests.
func (s *Store) CountAssetsByProject(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM asset WHERE project_id = $1`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return n, nil
}

// AssetByID loads a single asset for edge resolution / audit purposes.
func (s *Store) AssetByID(ctx context.Context, id string) (*models.Asset, error) {
	var a models.Asset
	var assetType string
	var tagsJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, asset_type, name_display, canonical_name, system, tags, created_at, updated_at
		FROM asset WHERE id = $1`, id).
		Scan(&a.ID, &a.ProjectID, &assetType, &a.NameDisplay, &a.CanonicalName, &a.System, &tagsJSON,
			&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("asset by id: %w", err)
	}
	a.AssetType = models.AssetType(assetType)
	a.Tags = map[string]any{}
	if len(tagsJSON) > 0 {
		_ = json.Unmarshal(tagsJSON, &a.Tags)
	}
	return &a, nil
}

// FindAssetByNameType resolves an asset by its dedup key, used by the deep
// dive asset resolver when a lineage endpoint is expressed as a name rather
// than a UUID.
func (s *Store) FindAssetByNameType(ctx context.Context, projectID, nameDisplay string, assetType models.AssetType) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM asset WHERE project_id = $1 AND name_display = $2 AND asset_type = $3`,
		projectID, nameDisplay, assetType).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FunctionalAssetIDs returns the ids of the project's functional assets
// (TABLE, VIEW, PIPELINE, SCRIPT, PACKAGE, STORED_PROCEDURE), one of the
// loads that keep the auditor a pure function over already-loaded data
// (see pkg/audit).
func (s *Store) FunctionalAssetIDs(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM asset WHERE project_id = $1 AND asset_type IN
			('TABLE','VIEW','PIPELINE','SCRIPT','PACKAGE','STORED_PROCEDURE')`, projectID)
	if err != nil {
		return nil, fmt.Errorf("functional asset ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EdgeEndpointSet returns the asset ids appearing as an endpoint of any
// edge or column-lineage row for a project, plus the pooled confidences of
// both tables, for coverage/connectivity computation. An asset counts as
// connected through a column-lineage row even when that row never bridged
// into a DETAILED_LINEAGE edge (only fully-resolved rows bridge).
// hypotheses and total count edge_index rows only.
func (s *Store) EdgeEndpointSet(ctx context.Context, projectID string) (endpoints map[string]bool, confidences []float64, hypotheses int, total int, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_asset_id, to_asset_id, confidence, is_hypothesis FROM edge_index WHERE project_id = $1`,
		projectID)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("edge endpoint set: %w", err)
	}
	defer rows.Close()

	endpoints = map[string]bool{}
	for rows.Next() {
		var from, to string
		var confidence float64
		var isHyp bool
		if err := rows.Scan(&from, &to, &confidence, &isHyp); err != nil {
			return nil, nil, 0, 0, err
		}
		endpoints[from] = true
		endpoints[to] = true
		confidences = append(confidences, confidence)
		if isHyp {
			hypotheses++
		}
		total++
	}
	if err := rows.Err(); err != nil {
		return nil, nil, 0, 0, err
	}

	clRows, err := s.db.QueryContext(ctx, `
		SELECT source_asset_id, target_asset_id, confidence FROM column_lineage WHERE project_id = $1`,
		projectID)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("column lineage endpoint set: %w", err)
	}
	defer clRows.Close()

	for clRows.Next() {
		var source, target sql.NullString
		var confidence float64
		if err := clRows.Scan(&source, &target, &confidence); err != nil {
			return nil, nil, 0, 0, err
		}
		if source.Valid {
			endpoints[source.String] = true
		}
		if target.Valid {
			endpoints[target.String] = true
		}
		confidences = append(confidences, confidence)
	}
	return endpoints, confidences, hypotheses, total, clRows.Err()
}
