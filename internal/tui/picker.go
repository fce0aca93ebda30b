package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/taskflow/internal/scheduler"
)

// PickerModel lists the scheduling policies.
type PickerModel struct {
	policies []scheduler.Policy
	selected int
}

// NewPickerModel creates a picker with initial preselected when it names a policy.
func NewPickerModel(initial string) PickerModel {
	m := PickerModel{policies: scheduler.Policies()}
	m.Select(initial)
	return m
}

// Select moves the cursor to the named policy. Unknown names are ignored.
func (m *PickerModel) Select(name string) {
	p, err := scheduler.ParsePolicy(name)
	if err != nil {
		return
	}
	for i, candidate := range m.policies {
		if candidate.Kind() == p.Kind() {
			m.selected = i
			return
		}
	}
}

// Selected returns the policy under the cursor.
func (m PickerModel) Selected() scheduler.Policy {
	return m.policies[m.selected]
}

// Update moves the cursor.
func (m PickerModel) Update(msg tea.Msg) PickerModel {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selected < len(m.policies)-1 {
				m.selected++
			}
		case KeyK, KeyUp:
			if m.selected > 0 {
				m.selected--
			}
		}
	}
	return m
}

// View renders the policy list.
func (m PickerModel) View() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Select the scheduling algorithm"))
	b.WriteString("\n\n")
	for i, p := range m.policies {
		line := fmt.Sprintf("%-11s %s", p.Kind().String(), p.Kind().DisplayName())
		if i == m.selected {
			b.WriteString(StyleSelected.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
		b.WriteString(StyleHelp.Render("    " + p.Kind().Description()))
		b.WriteString("\n")
	}
	return b.String()
}
