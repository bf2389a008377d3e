package metrics

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/lineagekit/discovery/pkg/queue"
	"github.com/lineagekit/discovery/pkg/store"
)

func TestCollector_Collect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	st := store.NewStoreFromDB(db)
	pool := queue.NewWorkerPool("pod0", st, queue.DefaultConfig(), nil)
	c := NewCollector(pool)

	count := testutil.CollectAndCount(c)
	require.Equal(t, 6, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
