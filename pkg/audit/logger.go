// Package audit implements the audit logger: in-flight per-file
// processing rows kept in memory until they complete, persisted
// file_processing_log rows, and the pure coverage/confidence/hypothesis
// metrics computed over the catalog after a run.
package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lineagekit/discovery/pkg/models"
	"github.com/lineagekit/discovery/pkg/store"
)

// Logger tracks in-flight FileProcessingLog rows keyed by log_id,
// persisting on Complete or LogFileError. The in-memory map is a
// convenience, not a correctness requirement: every terminal update is
// written straight through to the store.
type Logger struct {
	store *store.Store

	mu    sync.Mutex
	inFlight map[string]*models.FileProcessingLog
}

// New constructs a Logger backed by st.
func New(st *store.Store) *Logger {
	return &Logger{store: st, inFlight: make(map[string]*models.FileProcessingLog)}
}

// StartItem opens an in-flight log row for one (job, file, action) and
// returns its log_id. The row is not yet visible in file_processing_log
// until Complete persists it.
func (l *Logger) StartItem(jobID, filePath, actionName string, strategy models.Strategy) string {
	logID := uuid.NewString()
	row := &models.FileProcessingLog{
		ID:           logID,
		JobID:        jobID,
		FilePath:     filePath,
		ActionName:   actionName,
		StrategyUsed: strategy,
		Status:       models.LogPending,
	}
	l.mu.Lock()
	l.inFlight[logID] = row
	l.mu.Unlock()
	return logID
}

// Complete fills in the outcome of an in-flight row and persists it.
func (l *Logger) Complete(ctx context.Context, logID string, status models.FileLogStatus, opts CompleteOptions) error {
	row := l.takeInFlight(logID)
	row.Status = status
	row.ModelProvider = opts.ModelProvider
	row.ModelUsed = opts.ModelUsed
	row.FallbackUsed = opts.FallbackUsed
	row.FallbackChain = opts.FallbackChain
	row.TokensIn = opts.TokensIn
	row.TokensOut = opts.TokensOut
	row.CostEstimateUSD = opts.CostEstimateUSD
	row.LatencyMS = opts.LatencyMS
	row.ErrorType = opts.ErrorType
	row.ErrorMessage = opts.ErrorMessage
	row.RetryCount = opts.RetryCount
	row.NodesExtracted = opts.NodesExtracted
	row.EdgesExtracted = opts.EdgesExtracted
	row.EvidencesExtracted = opts.EvidencesExtracted
	row.ResultHash = opts.ResultHash

	if _, err := l.store.InsertFileProcessingLog(ctx, row); err != nil {
		return fmt.Errorf("persist file processing log: %w", err)
	}
	return nil
}

// LogFileError persists a failed row directly, for errors detected before
// (or entirely outside of) an LLM action run, e.g. an unreadable file.
func (l *Logger) LogFileError(ctx context.Context, jobID, filePath, actionName string, strategy models.Strategy, kind models.ErrorKind, message string) error {
	row := &models.FileProcessingLog{
		ID:           uuid.NewString(),
		JobID:        jobID,
		FilePath:     filePath,
		ActionName:   actionName,
		StrategyUsed: strategy,
		Status:       models.LogFailed,
		ErrorType:    &kind,
		ErrorMessage: &message,
	}
	if _, err := l.store.InsertFileProcessingLog(ctx, row); err != nil {
		return fmt.Errorf("persist file error log: %w", err)
	}
	return nil
}

// takeInFlight removes and returns the in-flight row for logID, or a fresh
// row keyed by logID if none was started.
func (l *Logger) takeInFlight(logID string) *models.FileProcessingLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.inFlight[logID]
	if !ok {
		row = &models.FileProcessingLog{ID: logID}
	}
	delete(l.inFlight, logID)
	return row
}

// CompleteOptions carries every field Complete needs to finish an
// in-flight row.
type CompleteOptions struct {
	ModelProvider      *string
	ModelUsed          *string
	FallbackUsed       bool
	FallbackChain      []string
	TokensIn           int64
	TokensOut          int64
	CostEstimateUSD    float64
	LatencyMS          int64
	ErrorType          *models.ErrorKind
	ErrorMessage       *string
	RetryCount         int
	NodesExtracted     int
	EdgesExtracted     int
	EvidencesExtracted int
	ResultHash         *string
}
