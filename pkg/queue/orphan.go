package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/lineagekit/discovery/pkg/store"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for orphaned jobs. All pods run this
// independently; operations are idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("orphan detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds processing queue entries whose job hasn't
// been touched since before the orphan threshold and marks them failed.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	orphans, err := p.store.OrphanedQueueEntries(ctx, p.config.OrphanThreshold)
	if err != nil {
		return fmt.Errorf("query orphaned queue entries: %w", err)
	}

	if len(orphans) == 0 {
		p.orphans.mu.Lock()
		p.orphans.lastOrphanScan = time.Now()
		p.orphans.mu.Unlock()
		return nil
	}

	slog.Warn("detected orphaned jobs", "count", len(orphans))

	recovered, failed := 0, 0
	for _, entry := range orphans {
		if err := p.recoverOrphanedEntry(ctx, entry); err != nil {
			slog.Error("failed to recover orphaned job", "job_id", entry.JobID, "error", err)
			failed++
			continue
		}
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	if failed > 0 {
		slog.Warn("orphan recovery completed with failures",
			"total_orphans", len(orphans), "recovered", recovered, "failed", failed)
	}
	return nil
}

// recoverOrphanedEntry marks a single orphaned job failed (terminal).
func (p *WorkerPool) recoverOrphanedEntry(ctx context.Context, entry *models.QueueEntry) error {
	errorMsg := fmt.Sprintf("orphaned: no heartbeat from pod %s owner since last update", p.podID)
	return markJobOrphaned(ctx, p.store, entry.JobID, entry.ID, errorMsg)
}

// CleanupStartupOrphans performs a one-time cleanup of jobs left processing
// by a previous run, called once during startup before the worker pool
// begins processing. It uses a zero threshold and no pod filter, so every
// queue entry still in processing is marked orphaned, whichever pod owned it.
func CleanupStartupOrphans(ctx context.Context, st *store.Store, podID string) error {
	orphans, err := st.OrphanedQueueEntries(ctx, 0)
	if err != nil {
		return fmt.Errorf("query startup orphans: %w", err)
	}
	if len(orphans) == 0 {
		return nil
	}

	slog.Warn("found startup orphans from previous run", "pod_id", podID, "count", len(orphans))

	for _, entry := range orphans {
		errorMsg := fmt.Sprintf("orphaned: pod %s restarted while job was in progress", podID)
		if err := markJobOrphaned(ctx, st, entry.JobID, entry.ID, errorMsg); err != nil {
			slog.Error("failed to mark startup orphan", "job_id", entry.JobID, "error", err)
			continue
		}
		slog.Info("startup orphan recovered", "job_id", entry.JobID)
	}
	return nil
}

// markJobOrphaned marks a job failed (terminal, no resume) and its queue
// entry failed.
func markJobOrphaned(ctx context.Context, st *store.Store, jobID, queueEntryID, errorMsg string) error {
	if err := st.FailJob(ctx, jobID, errorMsg, errorMsg); err != nil {
		return fmt.Errorf("mark job orphaned: %w", err)
	}
	if err := st.FailQueueEntry(ctx, queueEntryID, errorMsg); err != nil {
		return fmt.Errorf("mark queue entry orphaned: %w", err)
	}
	return nil
}
