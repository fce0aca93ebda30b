package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/events"
)

// TaskState is what the feed knows about one task.
type TaskState struct {
	Name      string
	Status    string // "running", "completed", "blocked", "failed"
	StartTime time.Time
	Elapsed   time.Duration
}

// FeedPaneModel shows a task list next to a scrolling log of run events.
type FeedPaneModel struct {
	tasks     map[string]*TaskState
	taskOrder []string
	lines     []string
	viewport  viewport.Model
	width     int
	height    int
}

// NewFeedPaneModel creates an empty feed.
func NewFeedPaneModel() FeedPaneModel {
	return FeedPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// Update folds task and resource events into the feed.
func (m FeedPaneModel) Update(msg tea.Msg) (FeedPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.viewport, cmd = m.viewport.Update(msg)

	case events.TaskStartedEvent:
		m.track(msg.ID).Status = "running"
		m.tasks[msg.ID].StartTime = msg.Timestamp
		m.appendLine(fmt.Sprintf("Processing %s with priority %d", msg.ID, msg.Priority))

	case events.TaskCompletedEvent:
		st := m.track(msg.ID)
		st.Status = "completed"
		st.Elapsed = msg.Elapsed
		m.appendLine(fmt.Sprintf("Completed %s (#%d, %v)", msg.ID, msg.Position, msg.Elapsed.Round(time.Millisecond)))

	case events.TaskBlockedEvent:
		m.track(msg.ID).Status = "blocked"
		m.appendLine(fmt.Sprintf("Cannot execute %s due to unfulfilled dependencies: %s", msg.ID, strings.Join(msg.Missing, ", ")))

	case events.TaskFailedEvent:
		m.track(msg.ID).Status = "failed"
		m.appendLine(fmt.Sprintf("%s failed: %v", msg.ID, msg.Err))

	case events.ResourceShortfallEvent:
		if msg.Known {
			m.appendLine(fmt.Sprintf("Not enough %s available for %s (requested %d, available %d)", msg.Resource, msg.ID, msg.Requested, msg.Available))
		} else {
			m.appendLine(fmt.Sprintf("Unknown resource %s requested by %s", msg.Resource, msg.ID))
		}
	}

	return m, cmd
}

func (m *FeedPaneModel) track(name string) *TaskState {
	st, ok := m.tasks[name]
	if !ok {
		st = &TaskState{Name: name}
		m.tasks[name] = st
		m.taskOrder = append(m.taskOrder, name)
	}
	return st
}

func (m *FeedPaneModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// Lines returns the log lines recorded so far.
func (m FeedPaneModel) Lines() []string {
	return append([]string(nil), m.lines...)
}

// Status returns the last known status of a task, or "" if unseen.
func (m FeedPaneModel) Status(name string) string {
	if st, ok := m.tasks[name]; ok {
		return st.Status
	}
	return ""
}

// View renders the feed.
func (m FeedPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 28
	logWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(logWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	return StyleFocusedBorder.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m FeedPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for _, name := range m.taskOrder {
		label := name
		if len(label) > width-4 {
			label = label[:width-7] + "..."
		}
		b.WriteString(fmt.Sprintf("%s %s\n", StatusIcon(m.tasks[name].Status), label))
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	case "blocked":
		return StyleStatusBlocked.Render("⊘")
	default:
		return StyleStatusPending.Render("○")
	}
}

// SetSize updates the pane dimensions.
func (m *FeedPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h

	vw, vh := w-28-4, h-4
	if vw < 10 {
		vw = 10
	}
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = vw
	m.viewport.Height = vh
}
