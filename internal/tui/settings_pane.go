package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/scheduler"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget  string
	policy      string
	mode        string
	timeScale   string
	concurrency string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
	}
	m.loadFields()
	m.buildForm()
	return m
}

func (m *SettingsPaneModel) loadFields() {
	m.saveTarget = "project"
	m.policy = m.config.Policy
	if p, err := scheduler.ParsePolicy(m.config.Policy); err == nil {
		m.policy = p.Kind().String()
	}
	m.mode = m.config.Mode
	m.timeScale = strconv.FormatFloat(m.config.TimeScale, 'g', -1, 64)
	m.concurrency = strconv.Itoa(m.config.Concurrency)
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	policyOptions := make([]huh.Option[string], 0, 3)
	for _, p := range scheduler.Policies() {
		policyOptions = append(policyOptions, huh.NewOption(p.Kind().DisplayName(), p.Kind().String()))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("policy").
				Title("Default Policy").
				Options(policyOptions...).
				Value(&m.policy),

			huh.NewSelect[string]().
				Key("mode").
				Title("Mode").
				Options(
					huh.NewOption("Single pass", "single-pass"),
					huh.NewOption("Topological (retry blocked tasks)", "topological"),
					huh.NewOption("Parallel", config.ModeParallel),
				).
				Value(&m.mode),
		).Title("Scheduling"),

		huh.NewGroup(
			huh.NewInput().
				Key("timeScale").
				Title("Time Scale").
				Description("Multiplier on task durations; 0 skips the wait").
				Value(&m.timeScale).
				Validate(validateTimeScale),

			huh.NewInput().
				Key("concurrency").
				Title("Concurrency").
				Description("Parallel mode only").
				Value(&m.concurrency).
				Validate(validateConcurrency),
		).Title("Execution"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.taskflow/config.json)", "global"),
					huh.NewOption("Project (.taskflow/config.json)", "project"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),
	)
}

func validateTimeScale(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return fmt.Errorf("enter a non-negative number")
	}
	return nil
}

func validateConcurrency(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return fmt.Errorf("enter a whole number of at least 1")
	}
	return nil
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == KeyEsc {
		// Cancel without saving
		m.visible = false
		m.saved = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		if err := m.applyFormToConfig(); err != nil {
			m.err = err
			return m, cmd
		}

		targetPath := m.globalPath
		if m.saveTarget == "project" {
			targetPath = m.projectPath
		}

		if err := config.Save(m.config, targetPath); err != nil {
			m.err = err
			m.saved = false
		} else {
			m.saved = true
			m.err = nil
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormToConfig copies form field values back to the config struct.
func (m *SettingsPaneModel) applyFormToConfig() error {
	scale, err := strconv.ParseFloat(m.timeScale, 64)
	if err != nil {
		return fmt.Errorf("time scale: %w", err)
	}
	conc, err := strconv.Atoi(m.concurrency)
	if err != nil {
		return fmt.Errorf("concurrency: %w", err)
	}

	m.config.Policy = m.policy
	m.config.Mode = m.mode
	m.config.TimeScale = scale
	m.config.Concurrency = conc
	return m.config.Validate()
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	content := m.form.View()
	if m.err != nil {
		content = StyleError.Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	// Rebuild form from the current config when showing
	if v {
		m.loadFields()
		m.buildForm()
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last form submission was written to disk.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}
