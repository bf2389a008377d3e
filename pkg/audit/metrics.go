package audit

import (
	"context"
	"fmt"
	"sort"

	"github.com/lineagekit/discovery/pkg/models"
)

// maxOrphanGaps bounds the orphan-asset gap list.
const maxOrphanGaps = 10

// lowConfidenceThreshold marks an edge as part of the low-confidence
// cluster gap.
const lowConfidenceThreshold = 0.5

// ComputeSnapshot loads the catalog state for projectID and computes the
// AuditMetrics, gaps, and recommendations of a post-run coverage report.
// An asset is connected if it appears as either endpoint of any edge or
// column-lineage row. The arithmetic itself is a pure function of the
// loaded sets (functional assets, endpoints, confidences) so it is
// unit-testable without a database.
func ComputeSnapshot(ctx context.Context, st snapshotStore, projectID, jobID string) (*models.AuditSnapshot, error) {
	functional, err := st.FunctionalAssetIDs(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load functional assets: %w", err)
	}
	endpoints, confidences, hypotheses, totalEdges, err := st.EdgeEndpointSet(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load edge endpoints: %w", err)
	}
	totalAssets, err := st.CountAssetsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("count assets: %w", err)
	}

	metrics := computeMetrics(totalAssets, totalEdges, functional, endpoints, confidences, hypotheses)

	var orphanIDs []string
	for _, id := range functional {
		if !endpoints[id] {
			orphanIDs = append(orphanIDs, id)
		}
	}
	sort.Strings(orphanIDs)
	if len(orphanIDs) > maxOrphanGaps {
		orphanIDs = orphanIDs[:maxOrphanGaps]
	}

	gaps := make([]string, 0, len(orphanIDs)+1)
	for _, id := range orphanIDs {
		asset, err := st.AssetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load orphan asset %s: %w", id, err)
		}
		gaps = append(gaps, fmt.Sprintf("orphan %s asset %q has no incoming or outgoing edges", asset.AssetType, asset.NameDisplay))
	}

	lowConfCount := countBelow(confidences, lowConfidenceThreshold)
	if lowConfCount > 0 {
		gaps = append(gaps, fmt.Sprintf("%d edges have confidence below %.1f", lowConfCount, lowConfidenceThreshold))
	}

	snap := &models.AuditSnapshot{
		ProjectID:       projectID,
		JobID:           jobID,
		Metrics:         metrics,
		Gaps:            gaps,
		Recommendations: recommendations(metrics, lowConfCount),
	}
	return snap, nil
}

// snapshotStore is the narrow subset of *store.Store ComputeSnapshot needs, so the
// metrics arithmetic can be tested against a fake without a database.
type snapshotStore interface {
	FunctionalAssetIDs(ctx context.Context, projectID string) ([]string, error)
	EdgeEndpointSet(ctx context.Context, projectID string) (endpoints map[string]bool, confidences []float64, hypotheses int, total int, err error)
	CountAssetsByProject(ctx context.Context, projectID string) (int, error)
	AssetByID(ctx context.Context, id string) (*models.Asset, error)
}

// computeMetrics implements the three coverage formulas directly:
//
//	coverage_score  = min(100, 100 * |connected functional assets| / |functional assets|)
//	avg_confidence  = mean(all edge and column-lineage confidences), default 1.0 when absent
//	hypothesis_ratio = 100 * |is_hypothesis edges| / |edges|
//
// Connectivity and the confidence pool both include column-lineage rows,
// bridged into an edge or not; hypothesis_ratio counts edges only.
func computeMetrics(totalAssets, totalEdges int, functional []string, endpoints map[string]bool, confidences []float64, hypotheses int) models.AuditMetrics {
	m := models.AuditMetrics{
		TotalAssets:        totalAssets,
		TotalRelationships: totalEdges,
		AvgConfidence:      1.0,
	}

	if len(functional) > 0 {
		connected := 0
		for _, id := range functional {
			if endpoints[id] {
				connected++
			}
		}
		score := 100 * float64(connected) / float64(len(functional))
		if score > 100 {
			score = 100
		}
		m.CoverageScore = score
	}

	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		m.AvgConfidence = sum / float64(len(confidences))
	}

	if totalEdges > 0 {
		m.HypothesisRatio = 100 * float64(hypotheses) / float64(totalEdges)
	}

	return m
}

func countBelow(confidences []float64, threshold float64) int {
	n := 0
	for _, c := range confidences {
		if c < threshold {
			n++
		}
	}
	return n
}

// recommendations synthesizes simple, deterministic follow-up suggestions
// from the computed metrics: the refinement loop's non-LLM baseline. An
// LLM-synthesized "reasoning" summary is layered on top by the
// orchestrator's post-process step.
func recommendations(m models.AuditMetrics, lowConfCount int) []string {
	var recs []string
	if m.CoverageScore < 80 {
		recs = append(recs, "re-run discovery with deep_scan mode to raise coverage above 80%")
	}
	if m.HypothesisRatio > 30 {
		recs = append(recs, "review hypothesis edges; consider a targeted re-extraction of low-confidence files")
	}
	if lowConfCount > 0 {
		recs = append(recs, "inspect the low-confidence edge cluster for systematic extractor misses")
	}
	return recs
}
