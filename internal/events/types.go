package events

import (
	"time"
)

// Event is the base interface for all scheduling notifications.
type Event interface {
	EventType() string
	TaskID() string
	Topic() string
}

// Topic constants
const (
	TopicTask     = "task"
	TopicResource = "resource"
	TopicRun      = "run"
)

// Event type constants
const (
	EventTypeTaskStarted       = "task.started"
	EventTypeTaskCompleted     = "task.completed"
	EventTypeTaskBlocked       = "task.blocked"
	EventTypeTaskFailed        = "task.failed"
	EventTypeResourceShortfall = "resource.shortfall"
	EventTypeRunProgress       = "run.progress"
)

// TaskStartedEvent is published when a task's resources are allocated and its work begins.
type TaskStartedEvent struct {
	ID        string // task name
	RunID     string
	Priority  int
	Category  string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }
func (e TaskStartedEvent) Topic() string     { return TopicTask }

// TaskCompletedEvent is published after a task's resources are released and
// its completion record has been appended.
type TaskCompletedEvent struct {
	ID        string
	RunID     string
	Position  int // 1-based position in the completed sequence
	Elapsed   time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }
func (e TaskCompletedEvent) Topic() string     { return TopicTask }

// TaskBlockedEvent is published when a task is skipped because some of its
// dependencies are not in the completed set.
type TaskBlockedEvent struct {
	ID        string
	RunID     string
	Missing   []string
	Timestamp time.Time
}

func (e TaskBlockedEvent) EventType() string { return EventTypeTaskBlocked }
func (e TaskBlockedEvent) TaskID() string    { return e.ID }
func (e TaskBlockedEvent) Topic() string     { return TopicTask }

// TaskFailedEvent is published when a task's work returns an error.
type TaskFailedEvent struct {
	ID        string
	RunID     string
	Err       error
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }
func (e TaskFailedEvent) Topic() string     { return TopicTask }

// ResourceShortfallEvent is published when a resource could not be granted
// in full. The task still runs.
type ResourceShortfallEvent struct {
	ID        string
	RunID     string
	Resource  string
	Requested int
	Available int
	Known     bool
	Timestamp time.Time
}

func (e ResourceShortfallEvent) EventType() string { return EventTypeResourceShortfall }
func (e ResourceShortfallEvent) TaskID() string    { return e.ID }
func (e ResourceShortfallEvent) Topic() string     { return TopicResource }

// RunProgressEvent is published when a run starts, after every task outcome,
// and once more with Done set when the run finishes.
type RunProgressEvent struct {
	RunID     string
	Policy    string
	Total     int
	Completed int
	Running   int
	Blocked   int
	Failed    int
	Pending   int // Not yet attempted, excluding running tasks
	Done      bool
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskID() string    { return "" }
func (e RunProgressEvent) Topic() string     { return TopicRun }
