package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aristath/taskflow/internal/scheduler"
)

func records(tasks ...scheduler.Task) []scheduler.CompletionRecord {
	recs := make([]scheduler.CompletionRecord, 0, len(tasks))
	for i, t := range tasks {
		recs = append(recs, scheduler.CompletionRecord{Task: t, Position: i + 1})
	}
	return recs
}

func TestRender(t *testing.T) {
	completed := records(
		scheduler.Task{Name: "Library Study", Priority: 8, Duration: 3 * time.Second, Category: "Study"},
		scheduler.Task{Name: "Research Project", Priority: 6, Duration: 6 * time.Second, Category: "Research"},
	)

	r := Render(completed, "priority")

	if r.Title != "Task Processing Report - Priority Scheduling" {
		t.Errorf("Title = %q", r.Title)
	}
	if r.Policy != "PRIORITY" {
		t.Errorf("Policy = %q, want PRIORITY", r.Policy)
	}
	if len(r.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(r.Rows))
	}

	want := Row{Position: 1, Name: "Library Study", Seconds: 3, Priority: 8, Category: "Study"}
	if r.Rows[0] != want {
		t.Errorf("Rows[0] = %+v, want %+v", r.Rows[0], want)
	}
	if r.Rows[1].Duration() != 6*time.Second {
		t.Errorf("Rows[1].Duration() = %v, want 6s", r.Rows[1].Duration())
	}
}

func TestRender_UnknownPolicyNameUsedVerbatim(t *testing.T) {
	r := Render(nil, "Round Robin")
	if r.Title != "Task Processing Report - Round Robin" {
		t.Errorf("Title = %q", r.Title)
	}
	if len(r.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(r.Rows))
	}
}

func TestRender_DoesNotMutateInput(t *testing.T) {
	completed := records(scheduler.Task{Name: "A", Priority: 1}, scheduler.Task{Name: "B", Priority: 2})
	before := completed[0].Task.Name

	_ = Render(completed, "PRIORITY")

	if completed[0].Task.Name != before || len(completed) != 2 {
		t.Error("Render modified its input")
	}
}

func TestFromResult(t *testing.T) {
	res := &scheduler.Result{
		RunID:     "run-42",
		Policy:    scheduler.PolicyShortestFirst,
		Mode:      "single-pass",
		Total:     4,
		Completed: records(scheduler.Task{Name: "Paying Fees", Priority: 1, Duration: time.Second}),
		Blocked: []scheduler.BlockedTask{
			{Task: scheduler.Task{Name: "Graduation"}, Missing: []string{"Thesis"}},
		},
		Shortfalls: []scheduler.TaskShortfall{
			{Task: "Paying Fees", Shortfall: scheduler.Shortfall{Resource: "accounts", Requested: 2, Available: 1, Known: true}},
		},
		Failed: []scheduler.FailedTask{
			{Task: scheduler.Task{Name: "Enrolment"}, Err: errors.New("portal down")},
		},
		Rejected: []scheduler.RejectedTask{
			{Name: "Thesis", Err: &scheduler.ValidationError{Task: "Thesis", Field: "duration", Reason: "must not be negative"}},
		},
	}

	r := FromResult(res)

	if r.RunID != "run-42" || r.Mode != "single-pass" || r.Total != 4 {
		t.Errorf("metadata not carried: %+v", r)
	}
	if r.Title != "Task Processing Report - Shortest Duration First" {
		t.Errorf("Title = %q", r.Title)
	}

	notices := r.Notices()
	if len(notices) != 4 {
		t.Fatalf("expected 4 notices, got %d: %v", len(notices), notices)
	}
	for i, want := range []string{
		`Rejected invalid task: invalid task "Thesis": duration must not be negative`,
		"Cannot execute Graduation due to unfulfilled dependencies: Thesis",
		"Not enough accounts available for Paying Fees (requested 2, available 1)",
		"Enrolment failed: portal down",
	} {
		if notices[i] != want {
			t.Errorf("notice %d = %q, want %q", i, notices[i], want)
		}
	}
}

func TestTable(t *testing.T) {
	r := Render(records(
		scheduler.Task{Name: "Library Study", Priority: 8, Duration: 3 * time.Second, Category: "Study"},
		scheduler.Task{Name: "Group Discussion", Priority: 4, Duration: 4 * time.Second, Category: "Discussion"},
	), "PRIORITY")
	r.Shortfalls = []ShortfallNotice{{Task: "Library Study", Resource: "staff", Requested: 1}}

	out := r.Table()

	for _, want := range []string{
		"Task Processing Report - Priority Scheduling",
		"Task Name", "Execution Time", "Priority", "Task Type",
		"1st", "2nd",
		"Library Study", "3s", "Study",
		"Group Discussion", "4s", "Discussion",
		"Unknown resource staff requested by Library Study",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Library Study") > strings.Index(out, "Group Discussion") {
		t.Error("rows not in completion order")
	}
}

func TestTable_Empty(t *testing.T) {
	out := Render(nil, "PRIORITY").Table()
	if !strings.Contains(out, "No tasks completed.") {
		t.Errorf("expected empty marker, got:\n%s", out)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	r := Render(records(scheduler.Task{Name: "Scheduling Exams", Priority: 3, Duration: 4 * time.Second, Category: "Exams"}), "PRIORITY")
	r.RunID = "abc"

	data, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if !strings.Contains(string(data), `"execution_time_seconds": 4`) {
		t.Errorf("unexpected JSON:\n%s", data)
	}

	back, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if back.RunID != "abc" || len(back.Rows) != 1 || back.Rows[0] != r.Rows[0] {
		t.Errorf("round trip mismatch: %+v", back)
	}

	if _, err := ParseJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestYAML(t *testing.T) {
	r := Render(records(scheduler.Task{Name: "Paying Fees", Priority: 1, Duration: 3 * time.Second, Category: "Finance"}), "PRIORITY")

	data, err := r.YAML()
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if decoded["title"] != "Task Processing Report - Priority Scheduling" {
		t.Errorf("title = %v", decoded["title"])
	}
	if _, ok := decoded["started_at"]; ok {
		t.Error("zero timestamps should be omitted")
	}
}

func TestEncode(t *testing.T) {
	r := Render(nil, "PRIORITY")

	tests := []struct {
		format  string
		wantErr bool
		prefix  string
	}{
		{"table", false, ""},
		{"", false, ""},
		{"json", false, "{"},
		{"YAML", false, "policy:"},
		{"xml", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := r.Encode(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode(%q) failed: %v", tt.format, err)
			}
			if !strings.HasPrefix(strings.TrimSpace(string(out)), tt.prefix) {
				t.Errorf("Encode(%q) = %q, want prefix %q", tt.format, out, tt.prefix)
			}
		})
	}
}
