package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestEdgeEndpointSet_UnionsEdgesAndColumnLineage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	edgeRows := sqlmock.NewRows([]string{"from_asset_id", "to_asset_id", "confidence", "is_hypothesis"}).
		AddRow("a", "b", 0.9, false).
		AddRow("b", "c", 0.4, true)
	mock.ExpectQuery("SELECT from_asset_id, to_asset_id, confidence, is_hypothesis FROM edge_index").
		WithArgs("proj-1").WillReturnRows(edgeRows)

	// One lineage row bridged both endpoints, one resolved only its target.
	clRows := sqlmock.NewRows([]string{"source_asset_id", "target_asset_id", "confidence"}).
		AddRow("a", "b", 0.9).
		AddRow(nil, "d", 0.6)
	mock.ExpectQuery("SELECT source_asset_id, target_asset_id, confidence FROM column_lineage").
		WithArgs("proj-1").WillReturnRows(clRows)

	s := NewStoreFromDB(db)
	endpoints, confidences, hypotheses, total, err := s.EdgeEndpointSet(context.Background(), "proj-1")
	require.NoError(t, err)

	require.True(t, endpoints["d"], "partially-resolved lineage endpoint must count as connected")
	require.Len(t, endpoints, 4)
	require.Len(t, confidences, 4, "confidence pool spans both tables")
	require.Equal(t, 1, hypotheses)
	require.Equal(t, 2, total, "edge totals count edge_index rows only")
	require.NoError(t, mock.ExpectationsWereMet())
}
