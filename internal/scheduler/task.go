package scheduler

import (
	"time"
)

// Task is an immutable unit of work. Name is its identity within a batch and
// the key other tasks use to depend on it.
type Task struct {
	Name         string         // Unique within a batch
	Priority     int            // Higher runs earlier
	Duration     time.Duration  // Expected work time, consumed by the Worker
	Category     string         // Report-only label
	Dependencies []string       // Names that must complete before this task
	Resources    map[string]int // Resource name -> units required
}

// Validate rejects malformed definitions.
func (t Task) Validate() error {
	if t.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if t.Duration < 0 {
		return &ValidationError{Task: t.Name, Field: "duration", Reason: "must not be negative"}
	}
	for name, count := range t.Resources {
		if name == "" {
			return &ValidationError{Task: t.Name, Field: "resources", Reason: "resource name must not be empty"}
		}
		if count < 0 {
			return &ValidationError{Task: t.Name, Field: "resources." + name, Reason: "unit count must not be negative"}
		}
	}
	for _, dep := range t.Dependencies {
		if dep == "" {
			return &ValidationError{Task: t.Name, Field: "dependencies", Reason: "dependency name must not be empty"}
		}
	}
	return nil
}

// Clone returns a deep copy so callers can't mutate a registered task.
func (t Task) Clone() Task {
	cp := t
	if t.Dependencies != nil {
		cp.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.Resources != nil {
		cp.Resources = make(map[string]int, len(t.Resources))
		for k, v := range t.Resources {
			cp.Resources[k] = v
		}
	}
	return cp
}

// CompletionRecord is evidence that a task finished.
type CompletionRecord struct {
	Task       Task
	Position   int // 1-based index in the completed sequence
	StartedAt  time.Time
	FinishedAt time.Time
}

// Elapsed is the wall-clock time the work took.
func (r CompletionRecord) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// BlockedTask is a task skipped because some dependencies never completed.
type BlockedTask struct {
	Task    Task
	Missing []string
}

// TaskShortfall pairs a task with a resource it could not fully obtain.
type TaskShortfall struct {
	Task      string
	Shortfall Shortfall
}

// FailedTask is a task whose work returned an error.
type FailedTask struct {
	Task Task
	Err  error
}

// RejectedTask is a task left out of a run because its definition was invalid.
type RejectedTask struct {
	Name string
	Err  error
}
