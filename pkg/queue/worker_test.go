package queue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lineagekit/discovery/pkg/models"
	"github.com/lineagekit/discovery/pkg/store"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	result *ExecutionResult
}

func (s *stubExecutor) Execute(ctx context.Context, job *models.Job) *ExecutionResult {
	return s.result
}

func TestWorker_PollAndProcess_NoWork(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("UPDATE job_queue").WillReturnError(sql.ErrNoRows)

	st := store.NewStoreFromDB(db)
	w := NewWorker("w0", "pod0", st, DefaultConfig(), &stubExecutor{}, noopRegistry{})

	err = w.pollAndProcess(context.Background())
	require.ErrorIs(t, err, store.ErrNoSessionsAvailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorker_PollAndProcess_AtCapacity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))

	st := store.NewStoreFromDB(db)
	cfg := DefaultConfig()
	cfg.MaxConcurrentJobs = 1
	w := NewWorker("w0", "pod0", st, cfg, &stubExecutor{}, noopRegistry{})

	err = w.pollAndProcess(context.Background())
	require.ErrorIs(t, err, ErrAtCapacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorker_PollInterval_WithinJitterBounds(t *testing.T) {
	w := &Worker{config: &Config{PollInterval: 2 * time.Second, PollIntervalJitter: 500 * time.Millisecond}}
	for i := 0; i < 20; i++ {
		d := w.pollInterval()
		require.GreaterOrEqual(t, d, 1500*time.Millisecond)
		require.LessOrEqual(t, d, 2500*time.Millisecond)
	}
}

type noopRegistry struct{}

func (noopRegistry) RegisterJob(string, context.CancelFunc) {}
func (noopRegistry) UnregisterJob(string)                   {}
