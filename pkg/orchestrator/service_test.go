package orchestrator

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lineagekit/discovery/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestSubmit_CreatesSolutionJobAndQueueEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, display_name, storage_path, status, created_at, updated_at").
		WithArgs("s3://bucket/proj").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO solutions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO job_run").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO job_queue").WillReturnResult(sqlmock.NewResult(1, 1))

	svc := NewService(store.NewStoreFromDB(db))
	jobID, err := svc.Submit(context.Background(), "legacy-dw", "s3://bucket/proj", true)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprove_ApprovesPlanAndRequeues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"job_id"}).AddRow("job-1")
	mock.ExpectQuery("UPDATE job_plan SET status").WithArgs("plan-1", sqlmock.AnyArg()).WillReturnRows(rows)
	mock.ExpectExec("UPDATE job_run SET status").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO job_queue").WillReturnResult(sqlmock.NewResult(1, 1))

	svc := NewService(store.NewStoreFromDB(db))
	jobID, err := svc.Approve(context.Background(), "plan-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_NoActiveJobReturnsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM job_run").WillReturnError(sql.ErrNoRows)

	svc := NewService(store.NewStoreFromDB(db))
	err = svc.Cancel(context.Background(), "sol-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_CancelsActiveJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM job_run").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("job-1"))
	jobRows := sqlmock.NewRows([]string{
		"id", "project_id", "status", "current_stage", "progress_pct", "plan_id",
		"requires_approval", "started_at", "finished_at", "error_message", "error_details",
		"created_at", "updated_at",
	}).AddRow("job-1", "sol-1", "running", "planning", 10, nil, true, nil, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, project_id, status").WillReturnRows(jobRows)
	mock.ExpectExec("UPDATE job_run SET status").WillReturnResult(sqlmock.NewResult(1, 1))

	svc := NewService(store.NewStoreFromDB(db))
	err = svc.Cancel(context.Background(), "sol-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
