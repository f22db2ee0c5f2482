package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStore_CreateAndGetExecution(t *testing.T) {
	s := newTestStore(t)

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := &ExecutionRecord{
		JobName:        "clientJob",
		ClientUsername: "admin",
		Path:           "/content/a",
		TransactionID:  7,
		Status:         StatusStarting,
		StartTime:      start,
	}
	require.NoError(t, s.CreateExecution(rec))
	assert.Equal(t, int64(1), rec.ID)

	second := &ExecutionRecord{ClientUsername: "admin", Path: "/content/b", Status: StatusStarting}
	require.NoError(t, s.CreateExecution(second))
	assert.Equal(t, int64(2), second.ID)

	got, err := s.GetExecution(1)
	require.NoError(t, err)
	assert.Equal(t, "/content/a", got.Path)
	assert.Equal(t, StatusStarting, got.Status)
	assert.True(t, got.StartTime.Equal(start))
	assert.True(t, got.EndTime.IsZero())

	_, err = s.GetExecution(99)
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestBoltStore_SaveExecution(t *testing.T) {
	s := newTestStore(t)

	rec := &ExecutionRecord{ClientUsername: "admin", Path: "/content/a", Status: StatusRunning}
	require.NoError(t, s.CreateExecution(rec))

	end := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	rec.Status = StatusCompleted
	rec.EndTime = end
	rec.FilesTransferred = 12
	require.NoError(t, s.SaveExecution(rec))

	got, err := s.GetExecution(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.True(t, got.EndTime.Equal(end))
	assert.Equal(t, int64(12), got.FilesTransferred)

	err = s.SaveExecution(&ExecutionRecord{ID: 42})
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestBoltStore_ListExecutions(t *testing.T) {
	s := newTestStore(t)

	for _, rec := range []*ExecutionRecord{
		{ClientUsername: "admin", Path: "/content/a", Status: StatusCompleted},
		{ClientUsername: "other", Path: "/content/a", Status: StatusCompleted},
		{ClientUsername: "admin", Path: "/content/b", Status: StatusFailed},
	} {
		require.NoError(t, s.CreateExecution(rec))
	}

	recs, err := s.ListExecutions("admin")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "/content/a", recs[0].Path)
	assert.Equal(t, "/content/b", recs[1].Path)

	recs, err = s.ListExecutions("nobody")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestBoltStore_NextTransactionID(t *testing.T) {
	s := newTestStore(t)

	first, err := s.NextTransactionID()
	require.NoError(t, err)
	second, err := s.NextTransactionID()
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestBoltStore_Close(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "close.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.GetExecution(1)
	assert.Error(t, err)
}

func TestParseExecutionStatus(t *testing.T) {
	assert.Equal(t, StatusCompleted, ParseExecutionStatus("COMPLETED"))
	assert.Equal(t, StatusStopped, ParseExecutionStatus("STOPPED"))
	assert.Equal(t, StatusUnknown, ParseExecutionStatus("completed"))
	assert.Equal(t, StatusUnknown, ParseExecutionStatus(""))
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusStopped.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusStarting.IsTerminal())
}
