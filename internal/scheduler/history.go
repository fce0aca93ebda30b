package scheduler

import (
	"fmt"
	"sync"
	"time"
)

// History is the append-only completed sequence of a run. Its names are the
// set the dependency gate checks against.
type History struct {
	mu      sync.RWMutex
	records []CompletionRecord
	names   NameSet
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{names: make(NameSet)}
}

// Append records task as completed and returns its record. A task already in
// the history is rejected.
func (h *History) Append(task Task, startedAt, finishedAt time.Time) (CompletionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.names.Has(task.Name) {
		return CompletionRecord{}, fmt.Errorf("task %q already completed in this run", task.Name)
	}
	rec := CompletionRecord{
		Task:       task,
		Position:   len(h.records) + 1,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	h.records = append(h.records, rec)
	h.names[task.Name] = struct{}{}
	return rec, nil
}

// Records returns a copy of the completed sequence.
func (h *History) Records() []CompletionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]CompletionRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Names returns a copy of the completed-name set.
func (h *History) Names() NameSet {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := make(NameSet, len(h.names))
	for name := range h.names {
		set[name] = struct{}{}
	}
	return set
}

// Len returns the number of completed tasks.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
