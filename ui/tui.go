package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/franksops/grabsync/engine"
	"github.com/franksops/grabsync/store"
)

// UIState represents the aggregated state for the TUI
type UIState struct {
	Executions []ExecutionView
	Workers    int
	Done       bool
}

// ExecutionView is one transfer job execution as displayed
type ExecutionView struct {
	ID       int64
	Job      string
	Path     string
	Status   store.ExecutionStatus
	Files    int64
	Bytes    int64
	Dropped  int64
	Failed   int64
	BytesSec float64
}

// NewUIState converts runner progress into display state.
func NewUIState(snapshot []engine.Progress, workers int, now time.Time) *UIState {
	state := &UIState{Workers: workers}
	for _, p := range snapshot {
		v := ExecutionView{
			ID:      p.ExecutionID,
			Job:     p.JobName,
			Path:    p.Path,
			Status:  p.Status,
			Files:   p.Files,
			Bytes:   p.Bytes,
			Dropped: p.PropertiesDropped,
			Failed:  p.Failed,
		}
		if elapsed := now.Sub(p.StartTime).Seconds(); elapsed > 0 {
			v.BytesSec = float64(p.Bytes) / elapsed
		}
		state.Executions = append(state.Executions, v)
	}
	return state
}

// Finished reports how many executions reached a terminal status.
func (s *UIState) Finished() int {
	n := 0
	for _, e := range s.Executions {
		if e.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// TUIModel implements the tea.Model interface
type TUIModel struct {
	state    *UIState
	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model

	width  int
	height int

	titleStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	streamStyle  lipgloss.Style
	helpStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
}

// TUIUpdateMsg is sent periodically to update the UI state
type TUIUpdateMsg struct {
	State *UIState
}

func NewTUIModel(initialState *UIState) TUIModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	if initialState == nil {
		initialState = &UIState{}
	}

	return TUIModel{
		state:        initialState,
		spinner:      s,
		progress:     progress.New(progress.WithDefaultGradient()),
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		streamStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		helpStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	}
}

func (m TUIModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 14

		headerHeight := 5
		footerHeight := 2
		m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)

	case TUIUpdateMsg:
		m.state = msg.State
		if m.state.Done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m TUIModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sb strings.Builder

	header := fmt.Sprintf("%s grabsync %s", m.spinner.View(), m.titleStyle.Render("Content Transfer"))
	sb.WriteString(header + "\n")

	total := len(m.state.Executions)
	finished := m.state.Finished()
	var percent float64
	if total > 0 {
		percent = float64(finished) / float64(total)
	}

	var files, bytes, dropped int64
	for _, e := range m.state.Executions {
		files += e.Files
		bytes += e.Bytes
		dropped += e.Dropped
	}

	opsInfo := fmt.Sprintf("Jobs: %d/%d | Workers: %d | %d files | %s | %d properties withheld",
		finished, total, m.state.Workers, files, formatBytes(bytes), dropped)

	sb.WriteString(m.infoStyle.Render(opsInfo) + "\n")
	sb.WriteString(m.progress.ViewAs(percent) + "\n\n")

	sb.WriteString("Executions:\n")
	var content strings.Builder

	if total == 0 {
		content.WriteString(m.infoStyle.Render("No executions yet..."))
	} else {
		for _, e := range m.state.Executions {
			content.WriteString(fmt.Sprintf("#%-4d %s | %-10s | %6d files | %s\n",
				e.ID, m.renderStatus(e.Status), m.streamStyle.Render(formatSpeed(e.BytesSec)), e.Files, truncatePath(e.Path, 40)))
		}
	}

	m.viewport.SetContent(content.String())
	sb.WriteString(m.viewport.View())

	sb.WriteString("\n" + m.helpStyle.Render("q/ctrl+c: stop and quit"))

	return sb.String()
}

func (m TUIModel) renderStatus(s store.ExecutionStatus) string {
	label := fmt.Sprintf("%-9s", s)
	switch s {
	case store.StatusCompleted:
		return m.successStyle.Render(label)
	case store.StatusFailed, store.StatusStopped, store.StatusAbandoned:
		return m.errorStyle.Render(label)
	default:
		return label
	}
}

func truncatePath(p string, n int) string {
	if len(p) <= n {
		return p
	}
	return "..." + p[len(p)-(n-3):]
}

func formatSpeed(bytesPerSec float64) string {
	if bytesPerSec >= 1024*1024*1024 {
		return fmt.Sprintf("%.2f GB/s", bytesPerSec/(1024*1024*1024))
	} else if bytesPerSec >= 1024*1024 {
		return fmt.Sprintf("%.2f MB/s", bytesPerSec/(1024*1024))
	} else if bytesPerSec >= 1024 {
		return fmt.Sprintf("%.2f KB/s", bytesPerSec/1024)
	}
	return fmt.Sprintf("%.0f B/s", bytesPerSec)
}

func formatBytes(n int64) string {
	b := float64(n)
	switch {
	case b >= 1024*1024*1024:
		return fmt.Sprintf("%.2f GB", b/(1024*1024*1024))
	case b >= 1024*1024:
		return fmt.Sprintf("%.2f MB", b/(1024*1024))
	case b >= 1024:
		return fmt.Sprintf("%.2f KB", b/1024)
	}
	return fmt.Sprintf("%d B", n)
}
