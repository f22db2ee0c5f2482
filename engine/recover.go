package engine

import (
	"fmt"
	"log/slog"

	"github.com/franksops/grabsync/store"
)

// AbandonInterrupted marks executions of clientUsername left STARTING or
// RUNNING by a previous process as ABANDONED and returns the updated history.
// It must only run while no execution of the client is in flight.
func AbandonInterrupted(s store.Store, clientUsername string, logger *slog.Logger) ([]store.ExecutionRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}
	records, err := s.ListExecutions(clientUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	for i := range records {
		rec := &records[i]
		if rec.Status != store.StatusStarting && rec.Status != store.StatusRunning {
			continue
		}
		prev := rec.Status
		rec.Status = store.StatusAbandoned
		rec.ExitMessage = fmt.Sprintf("interrupted while %s", prev)
		if err := s.SaveExecution(rec); err != nil {
			return nil, fmt.Errorf("failed to abandon execution %d: %w", rec.ID, err)
		}
		logger.Warn("abandoned interrupted execution", "execution", rec.ID, "path", rec.Path, "was", prev)
	}
	return records, nil
}
