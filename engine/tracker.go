package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franksops/grabsync/store"
)

// DefaultCheckpointInterval is the number of finished items between
// progress saves when a job does not configure a batch size.
const DefaultCheckpointInterval = 100

// Progress is a point-in-time view of one running execution.
type Progress struct {
	ExecutionID       int64
	JobName           string
	Path              string
	Status            store.ExecutionStatus
	Files             int64
	Bytes             int64
	PropertiesDropped int64
	Failed            int64
	StartTime         time.Time
}

// ExecutionTracker records the progress of one execution in the store and
// checkpoints it every interval finished items.
type ExecutionTracker struct {
	store    store.Store
	logger   *slog.Logger
	interval int64

	files   atomic.Int64
	bytes   atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64

	mu       sync.Mutex
	record   store.ExecutionRecord
	firstErr error
}

// NewExecutionTracker tracks rec, which must already exist in s.
func NewExecutionTracker(s store.Store, rec store.ExecutionRecord, interval int, logger *slog.Logger) *ExecutionTracker {
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionTracker{
		store:    s,
		logger:   logger,
		interval: int64(interval),
		record:   rec,
	}
}

// MarkRunning moves the execution to RUNNING.
func (t *ExecutionTracker) MarkRunning() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record.Status = store.StatusRunning
	rec := t.record
	return t.store.SaveExecution(&rec)
}

// ItemDone counts one transferred file of size bytes.
func (t *ExecutionTracker) ItemDone(size int64) {
	t.bytes.Add(size)
	if n := t.files.Add(1); n%t.interval == 0 {
		t.checkpoint()
	}
}

// PropertiesDropped counts properties withheld from a node document.
func (t *ExecutionTracker) PropertiesDropped(n int) {
	t.dropped.Add(int64(n))
}

// ItemFailed counts a failed item. The first error is kept as the exit message.
func (t *ExecutionTracker) ItemFailed(err error) {
	t.failed.Add(1)
	t.mu.Lock()
	if t.firstErr == nil {
		t.firstErr = err
	}
	t.mu.Unlock()
}

// Err returns the first item failure, if any.
func (t *ExecutionTracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.firstErr
}

// Finish stores the final state of the execution. EndTime is only set for
// COMPLETED executions.
func (t *ExecutionTracker) Finish(status store.ExecutionStatus, end time.Time, msg string) (store.ExecutionRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fill()
	t.record.Status = status
	t.record.ExitMessage = msg
	if status == store.StatusCompleted {
		t.record.EndTime = end
	}
	rec := t.record
	return rec, t.store.SaveExecution(&rec)
}

// Progress returns the current counters of the execution.
func (t *ExecutionTracker) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Progress{
		ExecutionID:       t.record.ID,
		JobName:           t.record.JobName,
		Path:              t.record.Path,
		Status:            t.record.Status,
		Files:             t.files.Load(),
		Bytes:             t.bytes.Load(),
		PropertiesDropped: t.dropped.Load(),
		Failed:            t.failed.Load(),
		StartTime:         t.record.StartTime,
	}
}

func (t *ExecutionTracker) checkpoint() {
	t.mu.Lock()
	t.fill()
	rec := t.record
	t.mu.Unlock()

	// A checkpoint failure does not stop the transfer.
	if err := t.store.SaveExecution(&rec); err != nil {
		t.logger.Warn("checkpoint failed", "execution", rec.ID, "error", err)
	}
}

func (t *ExecutionTracker) fill() {
	t.record.FilesTransferred = t.files.Load()
	t.record.BytesTransferred = t.bytes.Load()
	t.record.PropertiesDropped = t.dropped.Load()
}
