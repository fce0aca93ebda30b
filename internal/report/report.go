package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/aristath/taskflow/internal/scheduler"
)

const titlePrefix = "Task Processing Report - "

// Row is one completed task, in completion order.
type Row struct {
	Position int     `json:"position" yaml:"position"`
	Name     string  `json:"name" yaml:"name"`
	Seconds  float64 `json:"execution_time_seconds" yaml:"execution_time_seconds"`
	Priority int     `json:"priority" yaml:"priority"`
	Category string  `json:"category,omitempty" yaml:"category,omitempty"`
}

// Duration is the task's declared execution time.
func (r Row) Duration() time.Duration {
	return time.Duration(r.Seconds * float64(time.Second))
}

// BlockedNotice records a task skipped for unmet dependencies.
type BlockedNotice struct {
	Task    string   `json:"task" yaml:"task"`
	Missing []string `json:"missing" yaml:"missing"`
}

// ShortfallNotice records a resource a task could not fully obtain.
type ShortfallNotice struct {
	Task      string `json:"task" yaml:"task"`
	Resource  string `json:"resource" yaml:"resource"`
	Requested int    `json:"requested" yaml:"requested"`
	Available int    `json:"available" yaml:"available"`
	Known     bool   `json:"known" yaml:"known"`
}

// FailedNotice records a task whose work returned an error.
type FailedNotice struct {
	Task  string `json:"task" yaml:"task"`
	Error string `json:"error" yaml:"error"`
}

// RejectedNotice records a task left out of the run for an invalid definition.
type RejectedNotice struct {
	Task  string `json:"task" yaml:"task"`
	Error string `json:"error" yaml:"error"`
}

// Report is the rendered outcome of a run.
type Report struct {
	RunID      string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Policy     string            `json:"policy" yaml:"policy"`
	Title      string            `json:"title" yaml:"title"`
	Mode       string            `json:"mode,omitempty" yaml:"mode,omitempty"`
	Total      int               `json:"total,omitempty" yaml:"total,omitempty"`
	Rows       []Row             `json:"rows" yaml:"rows"`
	Blocked    []BlockedNotice   `json:"blocked,omitempty" yaml:"blocked,omitempty"`
	Shortfalls []ShortfallNotice `json:"shortfalls,omitempty" yaml:"shortfalls,omitempty"`
	Failed     []FailedNotice    `json:"failed,omitempty" yaml:"failed,omitempty"`
	Rejected   []RejectedNotice  `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	StartedAt  time.Time         `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Render builds a report from completion records. Rows follow the order of
// completed. If policyName names a known policy the title uses its display
// name, otherwise policyName is used verbatim.
func Render(completed []scheduler.CompletionRecord, policyName string) Report {
	display := policyName
	if p, err := scheduler.ParsePolicy(policyName); err == nil {
		display = p.Kind().DisplayName()
		policyName = p.Kind().String()
	}

	rows := make([]Row, 0, len(completed))
	for i, rec := range completed {
		pos := rec.Position
		if pos == 0 {
			pos = i + 1
		}
		rows = append(rows, Row{
			Position: pos,
			Name:     rec.Task.Name,
			Seconds:  rec.Task.Duration.Seconds(),
			Priority: rec.Task.Priority,
			Category: rec.Task.Category,
		})
	}

	return Report{
		Policy: policyName,
		Title:  titlePrefix + display,
		Rows:   rows,
	}
}

// FromResult renders a run result, carrying its notices along.
func FromResult(res *scheduler.Result) Report {
	r := Render(res.Completed, res.Policy.String())
	r.RunID = res.RunID
	r.Mode = res.Mode
	r.Total = res.Total
	r.StartedAt = res.StartedAt
	r.FinishedAt = res.FinishedAt

	for _, b := range res.Blocked {
		r.Blocked = append(r.Blocked, BlockedNotice{Task: b.Task.Name, Missing: append([]string(nil), b.Missing...)})
	}
	for _, s := range res.Shortfalls {
		r.Shortfalls = append(r.Shortfalls, ShortfallNotice{
			Task:      s.Task,
			Resource:  s.Shortfall.Resource,
			Requested: s.Shortfall.Requested,
			Available: s.Shortfall.Available,
			Known:     s.Shortfall.Known,
		})
	}
	for _, f := range res.Failed {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		r.Failed = append(r.Failed, FailedNotice{Task: f.Task.Name, Error: msg})
	}
	for _, rj := range res.Rejected {
		msg := ""
		if rj.Err != nil {
			msg = rj.Err.Error()
		}
		r.Rejected = append(r.Rejected, RejectedNotice{Task: rj.Name, Error: msg})
	}
	return r
}

// Names returns the completed task names in order.
func (r Report) Names() []string {
	names := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		names = append(names, row.Name)
	}
	return names
}

// Notices returns one human-readable line per rejected, blocked, shortfall
// and failed entry.
func (r Report) Notices() []string {
	var lines []string
	for _, rj := range r.Rejected {
		lines = append(lines, fmt.Sprintf("Rejected invalid task: %s", rj.Error))
	}
	for _, b := range r.Blocked {
		lines = append(lines, fmt.Sprintf("Cannot execute %s due to unfulfilled dependencies: %s", b.Task, strings.Join(b.Missing, ", ")))
	}
	for _, s := range r.Shortfalls {
		if !s.Known {
			lines = append(lines, fmt.Sprintf("Unknown resource %s requested by %s (%d units)", s.Resource, s.Task, s.Requested))
			continue
		}
		lines = append(lines, fmt.Sprintf("Not enough %s available for %s (requested %d, available %d)", s.Resource, s.Task, s.Requested, s.Available))
	}
	for _, f := range r.Failed {
		lines = append(lines, fmt.Sprintf("%s failed: %s", f.Task, f.Error))
	}
	return lines
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Table renders the report as a bordered text table followed by its notices.
func (r Report) Table() string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Task Name", "Execution Time", "Priority", "Task Type").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, row := range r.Rows {
		t.Row(
			humanize.Ordinal(row.Position),
			row.Name,
			row.Duration().String(),
			fmt.Sprintf("%d", row.Priority),
			row.Category,
		)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(r.Title))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	if len(r.Rows) == 0 {
		b.WriteString("No tasks completed.\n")
	}
	for _, line := range r.Notices() {
		b.WriteString(noticeStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// JSON encodes the report as indented JSON.
func (r Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}
	return data, nil
}

// YAML encodes the report as YAML.
func (r Report) YAML() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}
	return data, nil
}

// ParseJSON decodes a report produced by JSON.
func ParseJSON(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

// Encode renders the report in the named format: table, json or yaml.
func (r Report) Encode(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "table", "text":
		return []byte(r.Table()), nil
	case "json":
		return r.JSON()
	case "yaml", "yml":
		return r.YAML()
	}
	return nil, fmt.Errorf("unknown report format %q (want table, json or yaml)", format)
}
