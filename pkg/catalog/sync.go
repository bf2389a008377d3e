// Package catalog implements the idempotent write of an extraction result
// into the relational store: lookup-then-insert assets,
// hash-deduplicated evidence, and endpoint-resolved edges, in that order so
// edge resolution always sees the freshly created asset ids.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/lineagekit/discovery/pkg/store"
)

// Syncer persists ExtractionResults and DeepDiveResults into a Store:
// one logical create-or-update per extraction, assets then evidences then
// edges.
type Syncer struct {
	store *store.Store
}

// New constructs a Syncer backed by st.
func New(st *store.Store) *Syncer {
	return &Syncer{store: st}
}

// Sync upserts one ExtractionResult's nodes, evidences, and edges for
// projectID, returning the local node_id -> asset_id map the deep-dive pass
// needs to resolve endpoints expressed by node_id.
func (s *Syncer) Sync(ctx context.Context, projectID string, res *models.ExtractionResult) (map[string]string, error) {
	nodeToAsset := make(map[string]string, len(res.Nodes))

	for _, n := range res.Nodes {
		asset := &models.Asset{
			ProjectID:     projectID,
			AssetType:     models.AssetType(n.NodeType),
			NameDisplay:   n.Name,
			CanonicalName: n.NodeID,
			System:        n.System,
			Tags:          mergeParentNodeID(n.Attributes, nodeToAsset),
		}
		id, err := s.store.UpsertAsset(ctx, asset)
		if err != nil {
			return nil, fmt.Errorf("upsert asset %q: %w", n.NodeID, err)
		}
		nodeToAsset[n.NodeID] = id
	}

	evidenceRefToID := make(map[string]string, len(res.Evidences))
	for _, e := range res.Evidences {
		evidence := &models.Evidence{
			ProjectID: projectID,
			FilePath:  e.FilePath,
			Kind:      e.Kind,
			Locator:   e.Locator,
			Snippet:   e.Snippet,
			Hash:      e.Hash,
		}
		id, err := s.store.UpsertEvidence(ctx, evidence)
		if err != nil {
			return nil, fmt.Errorf("upsert evidence %q: %w", e.RefID, err)
		}
		evidenceRefToID[e.RefID] = id
	}

	for _, e := range res.Edges {
		fromID, ok := nodeToAsset[e.FromNodeID]
		if !ok {
			slog.Warn("edge endpoint unresolved, skipping", "from_node_id", e.FromNodeID, "edge_type", e.EdgeType)
			continue
		}
		toID, ok := nodeToAsset[e.ToNodeID]
		if !ok {
			slog.Warn("edge endpoint unresolved, skipping", "to_node_id", e.ToNodeID, "edge_type", e.EdgeType)
			continue
		}

		edge := &models.Edge{
			ProjectID:    projectID,
			FromAssetID:  fromID,
			ToAssetID:    toID,
			EdgeType:     e.EdgeType,
			Confidence:   e.Confidence,
			IsHypothesis: e.IsHypothesis,
			ExtractorID:  e.ExtractorID,
			Rationale:    e.Rationale,
		}
		edgeID, err := s.store.UpsertEdge(ctx, edge)
		if err != nil {
			return nil, fmt.Errorf("upsert edge %s->%s: %w", e.FromNodeID, e.ToNodeID, err)
		}

		if e.EvidenceRef != nil {
			if evidenceID, ok := evidenceRefToID[*e.EvidenceRef]; ok {
				if err := s.store.LinkEdgeEvidence(ctx, edgeID, evidenceID); err != nil {
					return nil, fmt.Errorf("link edge evidence: %w", err)
				}
			}
		}
	}

	return nodeToAsset, nil
}

// RecordProcessedFile stores the content-hash marker the Planner's
// "Unchanged (already processed)" skip rule looks up on the next run:
// an evidence row keyed by (project_id, hash, file_path) where hash is
// the file's sha256. The row is idempotent across reruns via the same
// hash-dedup lookup every other evidence row uses.
func (s *Syncer) RecordProcessedFile(ctx context.Context, projectID, path, fileHash string) error {
	if fileHash == "" {
		return nil
	}
	ev := &models.Evidence{
		ProjectID: projectID,
		FilePath:  path,
		Kind:      models.EvidenceCode,
		Locator:   models.Locator{File: path},
		Snippet:   "file processed",
		Hash:      &fileHash,
	}
	if _, err := s.store.UpsertEvidence(ctx, ev); err != nil {
		return fmt.Errorf("record processed file %s: %w", path, err)
	}
	return nil
}

// mergeParentNodeID copies attrs and, when a "parent_node_id" key refers to
// a local node already resolved to an asset, rewrites it to the stable
// asset UUID rather than the local node_id; asset UUIDs are the only
// stable identity surfaced to clients.
func mergeParentNodeID(attrs map[string]any, nodeToAsset map[string]string) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	if parent, ok := out["parent_node_id"].(string); ok {
		if assetID, ok := nodeToAsset[parent]; ok {
			out["parent_node_id"] = assetID
		}
	}
	return out
}

// SyncDeepDive persists a DeepDiveResult (package, components, transformation
// IR, column lineage) for projectID, bridging each component to an asset and
// backfilling the column-lineage "DETAILED_LINEAGE" edge.
// macroNodeMap is the node_id -> asset_id map returned by the macro Sync
// call for the same file, used to resolve lineage endpoints expressed as
// node_ids or dotted "schema.table.col" column references.
func (s *Syncer) SyncDeepDive(ctx context.Context, projectID string, dd *models.DeepDiveResult, macroNodeMap map[string]string) error {
	if dd == nil || dd.Package == nil {
		return nil
	}

	if err := s.store.UpsertPackage(ctx, dd.Package); err != nil {
		return fmt.Errorf("upsert package %s: %w", dd.Package.ID, err)
	}

	componentToAsset := make(map[string]string, len(dd.Package.Components))
	for _, c := range dd.Package.Components {
		asset := &models.Asset{
			ProjectID:     projectID,
			AssetType:     models.AssetType("COMPONENT_" + string(c.Type)),
			NameDisplay:   dd.Package.Name + ":" + c.Name,
			CanonicalName: dd.Package.Name + ":" + c.Name,
			System:        "ssis",
			Tags:          map[string]any{"component_id": c.ID, "package_id": dd.Package.ID},
		}
		assetID, err := s.store.UpsertAsset(ctx, asset)
		if err != nil {
			return fmt.Errorf("upsert component asset %s: %w", c.ID, err)
		}
		componentToAsset[c.ID] = assetID

		if err := s.store.UpsertPackageComponent(ctx, c, assetID); err != nil {
			return fmt.Errorf("upsert package component %s: %w", c.ID, err)
		}
	}

	for i := range dd.Transformations {
		t := &dd.Transformations[i]
		if t.SourceComponentID != nil {
			if _, ok := componentToAsset[*t.SourceComponentID]; !ok {
				t.SourceComponentID = nil // reference to a component this package doesn't own
			}
		}
		if err := s.store.InsertTransformation(ctx, t); err != nil {
			return fmt.Errorf("insert transformation %s: %w", t.ID, err)
		}
	}

	for i := range dd.ColumnLineages {
		cl := &dd.ColumnLineages[i]
		cl.ProjectID = projectID

		if cl.SourceAssetID == nil {
			if id := resolveLineageEndpoint(cl.SourceComponentID, cl.SourceColumn, componentToAsset, macroNodeMap); id != "" {
				cl.SourceAssetID = &id
			}
		}
		if cl.TargetAssetID == nil {
			if id := resolveLineageEndpoint(cl.TargetComponentID, cl.TargetColumn, componentToAsset, macroNodeMap); id != "" {
				cl.TargetAssetID = &id
			}
		}

		if err := s.store.InsertColumnLineage(ctx, cl); err != nil {
			return fmt.Errorf("insert column lineage %s: %w", cl.ID, err)
		}

		if cl.SourceAssetID != nil && cl.TargetAssetID != nil {
			edge := &models.Edge{
				ProjectID:    projectID,
				FromAssetID:  *cl.SourceAssetID,
				ToAssetID:    *cl.TargetAssetID,
				EdgeType:     models.EdgeDetailedLineage,
				Confidence:   cl.Confidence,
				IsHypothesis: cl.Confidence < 1.0,
				ExtractorID:  "column_lineage_bridge",
			}
			if _, err := s.store.UpsertEdge(ctx, edge); err != nil {
				return fmt.Errorf("bridge column lineage edge: %w", err)
			}
		}
	}

	return nil
}

// resolveLineageEndpoint resolves one column-lineage endpoint to an asset
// id: first via the component bridge, then by looking the column string up
// as a node_id in the macro node map, then by inferring a "table:" node_id
// from a dotted "schema.table.col" column reference. Display names are not
// looked up: the macro node map is keyed by node_id only.
func resolveLineageEndpoint(componentID *string, column string, componentToAsset, macroNodeMap map[string]string) string {
	if componentID != nil {
		if id, ok := componentToAsset[*componentID]; ok {
			return id
		}
	}
	if id, ok := macroNodeMap[column]; ok {
		return id
	}
	if idx := strings.LastIndex(column, "."); idx > 0 {
		table := column[:idx]
		if id, ok := macroNodeMap["table:"+table]; ok {
			return id
		}
	}
	return ""
}
