package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestClaimNextQueueEntry_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "job_id", "status", "attempts", "last_error", "created_at", "updated_at"}).
		AddRow("q1", "job1", "processing", 1, nil, now, now)
	mock.ExpectQuery("UPDATE job_queue").WillReturnRows(rows)

	s := NewStoreFromDB(db)
	entry, err := s.ClaimNextQueueEntry(context.Background())
	require.NoError(t, err)
	require.Equal(t, "q1", entry.ID)
	require.Equal(t, "job1", entry.JobID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextQueueEntry_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("UPDATE job_queue").WillReturnError(sql.ErrNoRows)

	s := NewStoreFromDB(db)
	_, err = s.ClaimNextQueueEntry(context.Background())
	require.True(t, errors.Is(err, ErrNoSessionsAvailable))
}
