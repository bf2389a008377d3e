// Package queue runs the discovery job queue: a pool of workers that claim
// pending job_queue rows with SKIP LOCKED, hand the job to a JobExecutor, and
// recover jobs orphaned by a crashed worker.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/lineagekit/discovery/pkg/models"
)

// ErrAtCapacity indicates the global concurrent job limit has been reached.
var ErrAtCapacity = errors.New("at capacity")

// Config tunes worker pool concurrency and liveness detection.
type Config struct {
	WorkerCount             int
	MaxConcurrentJobs       int
	PollInterval            time.Duration
	PollIntervalJitter      time.Duration
	HeartbeatInterval       time.Duration
	OrphanDetectionInterval time.Duration
	OrphanThreshold         time.Duration
}

// DefaultConfig returns conservative defaults for local/dev runs.
func DefaultConfig() *Config {
	return &Config{
		WorkerCount:             4,
		MaxConcurrentJobs:       4,
		PollInterval:            5 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		HeartbeatInterval:       15 * time.Second,
		OrphanDetectionInterval: time.Minute,
		OrphanThreshold:         5 * time.Minute,
	}
}

// JobExecutor owns the entire job lifecycle: ingest, plan, approval barrier,
// execute, post-process. It writes progress to the store as it goes; the
// worker only handles claiming, heartbeat, and the terminal status update.
type JobExecutor interface {
	Execute(ctx context.Context, job *models.Job) *ExecutionResult
}

// ExecutionResult is the terminal outcome of one job execution attempt.
type ExecutionResult struct {
	Status models.JobStatus
	Error  error
}

// PoolHealth reports the health of the worker pool as a whole.
type PoolHealth struct {
	IsHealthy        bool
	StoreReachable   bool
	StoreError       string
	PodID            string
	ActiveWorkers    int
	TotalWorkers     int
	ActiveJobs       int
	MaxConcurrent    int
	QueueDepth       int
	WorkerStats      []WorkerHealth
	LastOrphanScan   time.Time
	OrphansRecovered int
}

// WorkerHealth reports the health of a single worker.
type WorkerHealth struct {
	ID                string
	Status            string
	CurrentJobID      string
	JobsProcessed     int
	LastActivity      time.Time
}
