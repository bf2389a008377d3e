package audit

import (
	"context"
	"testing"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	functional  []string
	endpoints   map[string]bool
	confidences []float64
	hypotheses  int
	totalEdges  int
	totalAssets int
	names       map[string]string
}

func (f *fakeStore) FunctionalAssetIDs(ctx context.Context, projectID string) ([]string, error) {
	return f.functional, nil
}

func (f *fakeStore) EdgeEndpointSet(ctx context.Context, projectID string) (map[string]bool, []float64, int, int, error) {
	return f.endpoints, f.confidences, f.hypotheses, f.totalEdges, nil
}

func (f *fakeStore) CountAssetsByProject(ctx context.Context, projectID string) (int, error) {
	return f.totalAssets, nil
}

func (f *fakeStore) AssetByID(ctx context.Context, id string) (*models.Asset, error) {
	return &models.Asset{ID: id, AssetType: models.AssetTable, NameDisplay: f.names[id]}, nil
}

func TestComputeSnapshot_CoverageAndHypothesisRatio(t *testing.T) {
	fs := &fakeStore{
		functional:  []string{"a", "b", "c"},
		endpoints:   map[string]bool{"a": true, "b": true},
		confidences: []float64{1.0, 0.9, 0.2},
		hypotheses:  1,
		totalEdges:  3,
		totalAssets: 5,
		names:       map[string]string{"c": "dbo.orphan_table"},
	}

	snap, err := ComputeSnapshot(context.Background(), fs, "proj-1", "job-1")
	require.NoError(t, err)
	require.InDelta(t, 66.66, snap.Metrics.CoverageScore, 0.1)
	require.InDelta(t, 0.7, snap.Metrics.AvgConfidence, 0.01)
	require.InDelta(t, 33.33, snap.Metrics.HypothesisRatio, 0.1)
	require.Len(t, snap.Gaps, 2)
	require.Contains(t, snap.Gaps[0], "orphan_table")
}

func TestComputeSnapshot_NoEdgesDefaultsConfidence(t *testing.T) {
	fs := &fakeStore{functional: nil, endpoints: map[string]bool{}, totalAssets: 0}

	snap, err := ComputeSnapshot(context.Background(), fs, "proj-1", "job-1")
	require.NoError(t, err)
	require.Equal(t, 1.0, snap.Metrics.AvgConfidence)
	require.Equal(t, 0.0, snap.Metrics.HypothesisRatio)
	require.Empty(t, snap.Gaps)
}
