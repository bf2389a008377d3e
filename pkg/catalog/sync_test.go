package catalog

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lineagekit/discovery/pkg/models"
	"github.com/lineagekit/discovery/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestSync_InsertsAssetsEvidenceAndEdge(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, tags FROM asset").
		WithArgs("proj-1", "ingest.sql", "FILE").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO asset").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id, tags FROM asset").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO asset").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id FROM evidence").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO evidence").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id FROM edge_index").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO edge_index").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO edge_evidence").WillReturnResult(sqlmock.NewResult(1, 1))

	st := store.NewStoreFromDB(db)
	syncer := New(st)

	hash := "abc123"
	res := &models.ExtractionResult{
		Nodes: []models.ExtractedNode{
			{NodeID: "file:ingest.sql", NodeType: "FILE", Name: "ingest.sql"},
			{NodeID: "table:dbo.sales", NodeType: "TABLE", Name: "dbo.sales"},
		},
		Evidences: []models.ExtractedEvidence{
			{RefID: "ev1", FilePath: "ingest.sql", Kind: models.EvidenceCode, Snippet: "INSERT INTO dbo.sales", Hash: &hash},
		},
		Edges: []models.ExtractedEdge{
			{
				FromNodeID:  "file:ingest.sql",
				ToNodeID:    "table:dbo.sales",
				EdgeType:    models.EdgeWritesTo,
				Confidence:  1.0,
				ExtractorID: "sql_regex",
				EvidenceRef: strPtr("ev1"),
			},
		},
	}

	nodeMap, err := syncer.Sync(context.Background(), "proj-1", res)
	require.NoError(t, err)
	require.Len(t, nodeMap, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSync_SkipsEdgeWithUnresolvedEndpoint(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, tags FROM asset").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO asset").WillReturnResult(sqlmock.NewResult(1, 1))

	st := store.NewStoreFromDB(db)
	syncer := New(st)

	res := &models.ExtractionResult{
		Nodes: []models.ExtractedNode{
			{NodeID: "file:a.sql", NodeType: "FILE", Name: "a.sql"},
		},
		Edges: []models.ExtractedEdge{
			{FromNodeID: "file:a.sql", ToNodeID: "table:does-not-exist", EdgeType: models.EdgeWritesTo},
		},
	}

	_, err = syncer.Sync(context.Background(), "proj-1", res)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordProcessedFile_DedupsOnExistingHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM evidence").
		WithArgs("proj-1", "abc123", "scripts/ingest.sql").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ev-1"))

	st := store.NewStoreFromDB(db)
	syncer := New(st)

	require.NoError(t, syncer.RecordProcessedFile(context.Background(), "proj-1", "scripts/ingest.sql", "abc123"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordProcessedFile_EmptyHashIsNoop(t *testing.T) {
	syncer := New(nil)
	require.NoError(t, syncer.RecordProcessedFile(context.Background(), "proj-1", "a.sql", ""))
}

func TestResolveLineageEndpoint_PrefersComponentBridge(t *testing.T) {
	componentToAsset := map[string]string{"comp-1": "asset-1"}
	macroNodeMap := map[string]string{"table:dbo.sales": "asset-2"}

	id := resolveLineageEndpoint(strPtr("comp-1"), "dbo.sales.amount", componentToAsset, macroNodeMap)
	require.Equal(t, "asset-1", id)
}

func TestResolveLineageEndpoint_FallsBackToTableInference(t *testing.T) {
	componentToAsset := map[string]string{}
	macroNodeMap := map[string]string{"table:dbo.sales": "asset-2"}

	id := resolveLineageEndpoint(nil, "dbo.sales.amount", componentToAsset, macroNodeMap)
	require.Equal(t, "asset-2", id)
}

func TestResolveLineageEndpoint_Unresolved(t *testing.T) {
	id := resolveLineageEndpoint(nil, "orphan_column", map[string]string{}, map[string]string{})
	require.Equal(t, "", id)
}

func strPtr(s string) *string { return &s }
