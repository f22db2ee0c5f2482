package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franksops/grabsync/engine"
	"github.com/franksops/grabsync/store"
)

func TestFormatSpeed(t *testing.T) {
	tests := []struct {
		bytesPerSec float64
		expected    string
	}{
		{500, "500 B/s"},
		{1024, "1.00 KB/s"},
		{2048, "2.00 KB/s"},
		{1048576, "1.00 MB/s"},
		{1572864, "1.50 MB/s"},
		{1073741824, "1.00 GB/s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatSpeed(tt.bytesPerSec))
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "12 B", formatBytes(12))
	assert.Equal(t, "1.50 KB", formatBytes(1536))
	assert.Equal(t, "2.00 MB", formatBytes(2*1024*1024))
	assert.Equal(t, "1.00 GB", formatBytes(1024*1024*1024))
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "/content/site", truncatePath("/content/site", 40))
	long := "/content/site/en/products/category/item/detail/page"
	got := truncatePath(long, 20)
	assert.Len(t, got, 20)
	assert.Equal(t, "...", got[:3])
}

func TestNewUIState(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	snap := []engine.Progress{
		{ExecutionID: 1, JobName: "clientJob", Path: "/content/a", Status: store.StatusCompleted, Files: 3, Bytes: 2048, StartTime: start},
		{ExecutionID: 2, JobName: "clientDeltaContentJob", Path: "/content/b", Status: store.StatusRunning, PropertiesDropped: 4, StartTime: start},
	}

	state := NewUIState(snap, 8, start.Add(2*time.Second))
	require.Len(t, state.Executions, 2)
	assert.Equal(t, 8, state.Workers)
	assert.Equal(t, 1024.0, state.Executions[0].BytesSec)
	assert.Equal(t, int64(4), state.Executions[1].Dropped)
	assert.Equal(t, 1, state.Finished())
}

func TestTUIModel_View(t *testing.T) {
	model := NewTUIModel(&UIState{Workers: 4})
	assert.Contains(t, model.View(), "Initializing...")

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	model = updated.(TUIModel)
	assert.Contains(t, model.View(), "No executions yet")

	updated, _ = model.Update(TUIUpdateMsg{State: &UIState{
		Workers: 4,
		Executions: []ExecutionView{
			{ID: 7, Path: "/content/site", Status: store.StatusRunning, Files: 12},
		},
	}})
	model = updated.(TUIModel)
	view := model.View()
	assert.Contains(t, view, "/content/site")
	assert.Contains(t, view, "Jobs: 0/1")
}

func TestTUIModel_QuitsWhenDone(t *testing.T) {
	model := NewTUIModel(nil)
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	updated, cmd := updated.Update(TUIUpdateMsg{State: &UIState{Done: true}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	// The program exits on its own, so the only key hint left is the stop key.
	view := updated.View()
	assert.Contains(t, view, "q/ctrl+c: stop and quit")
	assert.NotContains(t, view, "Press 'q' to exit")
}
