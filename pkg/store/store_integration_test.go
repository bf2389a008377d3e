//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestStore spins up a disposable PostgreSQL container and returns a
// fully migrated Store.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("discovery_test"),
		postgres.WithUsername("discovery"),
		postgres.WithPassword("discovery"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(pgContainer)
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := Config{
		Host: host, Port: port.Int(), User: "discovery", Password: "discovery",
		Database: "discovery_test", SSLMode: "disable",
		MaxOpenConns: 10, MaxIdleConns: 5,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	}

	store, err := NewStore(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_ClaimExclusivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sol, err := store.GetOrCreateSolution(ctx, "acme", "local:///tmp/acme")
	require.NoError(t, err)
	job, err := store.CreateJob(ctx, sol.ID, true)
	require.NoError(t, err)
	_, err = store.EnqueueJob(ctx, job.ID)
	require.NoError(t, err)

	entry, err := store.ClaimNextQueueEntry(ctx)
	require.NoError(t, err)
	require.Equal(t, job.ID, entry.JobID)

	_, err = store.ClaimNextQueueEntry(ctx)
	require.ErrorIs(t, err, ErrNoSessionsAvailable)

	require.NoError(t, store.CompleteQueueEntry(ctx, entry.ID))
}

func TestStore_AssetUpsertIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sol, err := store.GetOrCreateSolution(ctx, "acme", "local:///tmp/acme2")
	require.NoError(t, err)

	asset := &models.Asset{
		ProjectID:   sol.ID,
		AssetType:   models.AssetTable,
		NameDisplay: "dbo.sales",
		System:      "unknown",
		Tags:        map[string]any{},
	}
	id1, err := store.UpsertAsset(ctx, asset)
	require.NoError(t, err)
	id2, err := store.UpsertAsset(ctx, asset)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	n, err := store.CountAssetsByProject(ctx, sol.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
