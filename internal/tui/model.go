package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/report"
	"github.com/aristath/taskflow/internal/scheduler"
)

// RunFunc executes one run of the batch with policy. Each call must use a
// fresh scheduler and publish on the bus the model subscribed to.
type RunFunc func(ctx context.Context, policy scheduler.Policy) (*scheduler.Result, error)

type phase int

const (
	phasePicking phase = iota
	phaseRunning
	phaseReport
)

// runFinishedMsg carries a run's outcome back into the update loop.
type runFinishedMsg struct {
	result *scheduler.Result
	err    error
}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	ctx          context.Context
	run          RunFunc
	picker       PickerModel
	feed         FeedPaneModel
	progress     ProgressPaneModel
	settingsPane SettingsPaneModel
	reportView   viewport.Model
	report       *report.Report
	runErr       error
	phase        phase
	eventSub     <-chan events.Event
	width        int
	height       int
	quitting     bool
	showSettings bool
	notice       string
	config       *config.Config
}

// New creates a new TUI model.
// It subscribes to all events from the event bus using SubscribeAll.
func New(ctx context.Context, eventBus *events.EventBus, cfg *config.Config, globalPath, projectPath string, run RunFunc) Model {
	return Model{
		ctx:          ctx,
		run:          run,
		picker:       NewPickerModel(cfg.Policy),
		feed:         NewFeedPaneModel(),
		progress:     NewProgressPaneModel(),
		settingsPane: NewSettingsPaneModel(cfg, globalPath, projectPath),
		reportView:   viewport.New(0, 0),
		eventSub:     eventBus.SubscribeAll(256),
		config:       cfg,
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

func (m Model) startRun(policy scheduler.Policy) tea.Cmd {
	ctx, run := m.ctx, m.run
	return func() tea.Msg {
		res, err := run(ctx, policy)
		return runFinishedMsg{result: res, err: err}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// If settings panel is open, route all keys to it (modal behavior)
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)
			if !m.settingsPane.IsVisible() {
				m.showSettings = false
				m.picker.Select(m.config.Policy)
				m.notice = ""
				if m.settingsPane.Saved() {
					m.notice = "Settings saved."
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		}

		switch m.phase {
		case phasePicking:
			switch msg.String() {
			case KeyEnter:
				m.phase = phaseRunning
				m.feed = NewFeedPaneModel()
				m.progress = NewProgressPaneModel()
				m.computeLayout()
				cmds = append(cmds, m.startRun(m.picker.Selected()))
			case KeySettings:
				m.showSettings = true
				m.settingsPane.SetVisible(true)
				cmds = append(cmds, m.settingsPane.Init())
			default:
				m.picker = m.picker.Update(msg)
			}

		case phaseRunning:
			var cmd tea.Cmd
			m.feed, cmd = m.feed.Update(msg)
			cmds = append(cmds, cmd)

		case phaseReport:
			switch msg.String() {
			case KeyBack, KeyEsc:
				m.phase = phasePicking
				m.report = nil
				m.runErr = nil
			default:
				var cmd tea.Cmd
				m.reportView, cmd = m.reportView.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case events.RunProgressEvent:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.TaskStartedEvent, events.TaskCompletedEvent, events.TaskBlockedEvent,
		events.TaskFailedEvent, events.ResourceShortfallEvent:
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case runFinishedMsg:
		m.phase = phaseReport
		m.runErr = msg.err
		content := ""
		if msg.result != nil {
			r := report.FromResult(msg.result)
			m.report = &r
			content = r.Table()
		}
		if msg.err != nil {
			content += "\n" + StyleError.Render(fmt.Sprintf("Run stopped: %v", msg.err))
		}
		m.reportView.SetContent(content)
		m.reportView.GotoTop()

	default:
		if m.showSettings {
			// huh forms drive themselves with their own messages
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// Report returns the most recent report, or nil before any run finished.
func (m Model) Report() *report.Report {
	return m.report
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}

	var main string
	switch m.phase {
	case phasePicking:
		content := m.picker.View()
		if m.notice != "" {
			content += "\n\n" + StyleStatusComplete.Render(m.notice)
		}
		main = StyleFocusedBorder.
			Width(m.width - 2).
			Height(m.height - 3).
			Render(content)
	case phaseRunning:
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.feed.View(), m.progress.View())
	case phaseReport:
		main = StyleFocusedBorder.
			Width(m.width - 2).
			Height(m.height - 3).
			Render(m.reportView.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, main, HelpView(m.phase))
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	availableHeight := m.height - 1 // help bar
	feedWidth := (m.width * 65) / 100
	progressWidth := m.width - feedWidth

	m.feed.SetSize(feedWidth, availableHeight)
	m.progress.SetSize(progressWidth, availableHeight)

	m.reportView.Width = max(m.width-4, 10)
	m.reportView.Height = max(availableHeight-4, 3)
}
