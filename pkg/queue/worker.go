package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/lineagekit/discovery/pkg/store"
)

// WorkerStatus is the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes jobs.
type Worker struct {
	id       string
	podID    string
	store    *store.Store
	config   *Config
	executor JobExecutor
	pool     JobRegistry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// JobRegistry is the subset of WorkerPool used by Worker for cancel registration.
type JobRegistry interface {
	RegisterJob(jobID string, cancel context.CancelFunc)
	UnregisterJob(jobID string)
}

// NewWorker creates a new queue worker.
func NewWorker(id, podID string, st *store.Store, cfg *Config, executor JobExecutor, pool JobRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		store:        st,
		config:       cfg,
		executor:     executor,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, store.ErrNoSessionsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a queue entry, and processes its job.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	activeCount, err := w.store.ActiveJobCount(ctx)
	if err != nil {
		return fmt.Errorf("checking active jobs: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentJobs {
		return ErrAtCapacity
	}

	entry, err := w.store.ClaimNextQueueEntry(ctx)
	if err != nil {
		return err
	}

	job, err := w.store.GetJob(ctx, entry.JobID)
	if err != nil {
		_ = w.store.FailQueueEntry(ctx, entry.ID, fmt.Sprintf("load job: %v", err))
		return fmt.Errorf("load claimed job: %w", err)
	}

	log := slog.With("job_id", job.ID, "worker_id", w.id)
	log.Info("job claimed")

	if err := w.store.UpdateJobStatus(ctx, job.ID, models.JobRunning); err != nil {
		log.Error("failed to mark job running", "error", err)
	}

	w.setStatus(WorkerStatusWorking, job.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	// No overall wall-clock deadline: the only timeout the pipeline
	// imposes is the per-model timeout_ms the LLM client enforces. The
	// cancelable context exists for the manual-cancel registry and the
	// heartbeat.
	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()

	w.pool.RegisterJob(job.ID, cancelJob)
	defer w.pool.UnregisterJob(job.ID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, job.ID)

	result := w.executor.Execute(jobCtx, job)

	if result == nil {
		if errors.Is(jobCtx.Err(), context.Canceled) {
			result = &ExecutionResult{Status: models.JobCancelled, Error: context.Canceled}
		} else {
			result = &ExecutionResult{Status: models.JobFailed, Error: fmt.Errorf("executor returned nil result")}
		}
	}

	cancelHeartbeat()

	if err := w.finalizeJob(context.Background(), job, entry.ID, result); err != nil {
		log.Error("failed to finalize job", "error", err)
		return err
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	log.Info("job processing complete", "status", result.Status)
	return nil
}

// finalizeJob writes the terminal job status and closes out the queue entry.
// Cancellation is a clean terminal state, not an error: a cancelled result
// must never go through FailJob, even though the executor attaches
// ErrCancelled/context.Canceled to it for logging purposes.
func (w *Worker) finalizeJob(ctx context.Context, job *models.Job, queueEntryID string, result *ExecutionResult) error {
	if result.Status == models.JobCancelled {
		if err := w.store.UpdateJobStatus(ctx, job.ID, models.JobCancelled); err != nil {
			return err
		}
		return w.store.FailQueueEntry(ctx, queueEntryID, "User Cancelled")
	}
	if result.Error != nil {
		msg := result.Error.Error()
		if err := w.store.FailJob(ctx, job.ID, msg, msg); err != nil {
			return err
		}
		return w.store.FailQueueEntry(ctx, queueEntryID, msg)
	}
	if err := w.store.UpdateJobStatus(ctx, job.ID, result.Status); err != nil {
		return err
	}
	return w.store.CompleteQueueEntry(ctx, queueEntryID)
}

// runHeartbeat periodically touches job_run.updated_at for orphan detection.
func (w *Worker) runHeartbeat(ctx context.Context, jobID string) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.TouchJob(ctx, jobID); err != nil {
				slog.Warn("heartbeat update failed", "job_id", jobID, "error", err)
			}
		}
	}
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
