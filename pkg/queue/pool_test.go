package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkerPool_CancelJob(t *testing.T) {
	p := &WorkerPool{activeJobs: make(map[string]context.CancelFunc)}

	cancelled := false
	_, cancel := context.WithCancel(context.Background())
	wrapped := func() {
		cancelled = true
		cancel()
	}
	p.RegisterJob("job-1", wrapped)

	require.True(t, p.CancelJob("job-1"))
	require.True(t, cancelled)
	require.False(t, p.CancelJob("job-1-does-not-exist"))

	p.UnregisterJob("job-1")
	require.False(t, p.CancelJob("job-1"))
}

func TestWorkerPool_GetActiveJobIDs(t *testing.T) {
	p := &WorkerPool{activeJobs: make(map[string]context.CancelFunc)}
	p.RegisterJob("a", func() {})
	p.RegisterJob("b", func() {})
	require.ElementsMatch(t, []string{"a", "b"}, p.getActiveJobIDs())
}
