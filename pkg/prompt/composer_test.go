package prompt

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lineagekit/discovery/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestCompose_AllFourLayersInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfgRows := sqlmock.NewRows([]string{"action_name", "base_id", "domain_id", "org_id", "reasoner_id"}).
		AddRow("extract.schema", "base-1", "domain-1", "org-1", "reasoner-1")
	mock.ExpectQuery("SELECT action_name, base_id, domain_id, org_id, reasoner_id FROM action_prompt_config").
		WithArgs("extract.schema").WillReturnRows(cfgRows)

	mock.ExpectQuery("SELECT solution_id FROM project_action_config").
		WithArgs("proj-1", "extract.schema").
		WillReturnRows(sqlmock.NewRows([]string{"solution_id"}).AddRow("solution-1"))

	mock.ExpectQuery("SELECT content FROM prompt_layer").WithArgs("base-1").
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow("You are a lineage extraction agent."))
	mock.ExpectQuery("SELECT content FROM prompt_layer").WithArgs("domain-1").
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow("Focus on SQL and SSIS artifacts."))
	mock.ExpectQuery("SELECT content FROM prompt_layer").WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow("Follow the acme corp naming convention."))
	mock.ExpectQuery("SELECT content FROM prompt_layer").WithArgs("solution-1").
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow("This project uses dbt for transforms."))
	mock.ExpectQuery("SELECT content FROM prompt_layer").WithArgs("reasoner-1").
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow("Think step by step."))

	st := store.NewStoreFromDB(db)
	composer := New(st, t.TempDir())

	result, err := composer.Compose(context.Background(), "extract.schema", "proj-1", nil)
	require.NoError(t, err)

	basePos := indexOf(t, result, "You are a lineage extraction agent.")
	domainPos := indexOf(t, result, headerDomain)
	orgPos := indexOf(t, result, headerOrg)
	solutionPos := indexOf(t, result, headerSolution)
	reasonerPos := indexOf(t, result, headerReasoner)

	require.Less(t, basePos, domainPos)
	require.Less(t, domainPos, orgPos)
	require.Less(t, orgPos, solutionPos)
	require.Less(t, solutionPos, reasonerPos)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompose_FallsBackToFilesystemWhenNoLayersResolve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT action_name, base_id, domain_id, org_id, reasoner_id FROM action_prompt_config").
		WillReturnError(sql.ErrNoRows)

	st := store.NewStoreFromDB(db)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extract_python.md"), []byte("Extract python lineage for {{file}}."), 0o644))

	composer := New(st, dir)
	result, err := composer.Compose(context.Background(), "extract.python", "", map[string]string{"file": "etl.py"})
	require.NoError(t, err)
	require.Equal(t, "Extract python lineage for etl.py.", result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompose_MissingFallbackFileErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT action_name, base_id, domain_id, org_id, reasoner_id FROM action_prompt_config").
		WillReturnError(sql.ErrNoRows)

	st := store.NewStoreFromDB(db)
	composer := New(st, t.TempDir())

	_, err = composer.Compose(context.Background(), "extract.unknown", "", nil)
	require.Error(t, err)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	idx := strings.Index(haystack, needle)
	require.GreaterOrEqual(t, idx, 0, "expected %q to contain %q", haystack, needle)
	return idx
}
