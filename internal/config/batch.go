package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aristath/taskflow/internal/scheduler"
)

// Duration accepts either a Go duration string ("1m30s") or a number of seconds.
type Duration time.Duration

// UnmarshalYAML decodes scalar nodes; JSON input goes through the same path.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}

	switch node.Tag {
	case "!!int", "!!float":
		secs, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	case "!!str":
		parsed, err := time.ParseDuration(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
		}
		*d = Duration(parsed)
		return nil
	case "!!null":
		*d = 0
		return nil
	}
	return fmt.Errorf("line %d: unsupported duration value %q", node.Line, node.Value)
}

// MarshalYAML writes the duration as a Go duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// TaskSpec is one task as written in a batch file.
type TaskSpec struct {
	Name         string         `yaml:"name"`
	Priority     int            `yaml:"priority"`
	Duration     Duration       `yaml:"duration"`
	Category     string         `yaml:"category,omitempty"`
	Dependencies []string       `yaml:"dependencies,omitempty"`
	Resources    map[string]int `yaml:"resources,omitempty"`
}

// Task converts the spec to a scheduler task.
func (s TaskSpec) Task() scheduler.Task {
	t := scheduler.Task{
		Name:         s.Name,
		Priority:     s.Priority,
		Duration:     time.Duration(s.Duration),
		Category:     s.Category,
		Dependencies: s.Dependencies,
		Resources:    s.Resources,
	}
	return t.Clone()
}

// Batch is a set of tasks plus the pool seed they run against.
type Batch struct {
	Resources map[string]int `yaml:"resources,omitempty"`
	Tasks     []TaskSpec     `yaml:"tasks"`
}

// ParseBatch decodes a batch from YAML or JSON bytes.
func ParseBatch(data []byte) (*Batch, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("batch: payload is empty")
	}
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("batch: decode: %w", err)
	}
	if len(b.Tasks) == 0 {
		return nil, errors.New("batch: no tasks defined")
	}
	return &b, nil
}

// LoadBatch reads a batch file. YAML and JSON are both accepted.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("batch: read %s: %w", path, err)
	}
	b, err := ParseBatch(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// RejectedTasksError lists the batch entries SchedulerTasks left out.
type RejectedTasksError struct {
	Rejected []scheduler.RejectedTask
}

func (e *RejectedTasksError) Error() string {
	msgs := make([]string, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		msgs = append(msgs, r.Err.Error())
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes every rejection to errors.Is and errors.As.
func (e *RejectedTasksError) Unwrap() []error {
	errs := make([]error, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		errs = append(errs, r.Err)
	}
	return errs
}

// SchedulerTasks converts every entry and validates it. Malformed entries and
// repeated names (the first occurrence wins) are left out; the valid tasks are
// always returned, and the rest are reported together as a
// *RejectedTasksError.
func (b *Batch) SchedulerTasks() ([]scheduler.Task, error) {
	tasks := make([]scheduler.Task, 0, len(b.Tasks))
	seen := make(scheduler.NameSet, len(b.Tasks))
	var rejected []scheduler.RejectedTask
	for _, spec := range b.Tasks {
		t := spec.Task()
		err := t.Validate()
		if err == nil && seen.Has(t.Name) {
			err = &scheduler.ValidationError{Task: t.Name, Field: "name", Reason: "is a duplicate within the batch"}
		}
		if err != nil {
			rejected = append(rejected, scheduler.RejectedTask{Name: t.Name, Err: err})
			continue
		}
		seen[t.Name] = struct{}{}
		tasks = append(tasks, t)
	}
	if len(rejected) > 0 {
		return tasks, &RejectedTasksError{Rejected: rejected}
	}
	return tasks, nil
}

// PoolSeed merges the batch's resource seed with overrides. Overrides win.
func (b *Batch) PoolSeed(overrides map[string]int) map[string]int {
	seed := make(map[string]int, len(b.Resources)+len(overrides))
	for name, n := range b.Resources {
		seed[name] = n
	}
	for name, n := range overrides {
		seed[name] = n
	}
	return seed
}

// Marshal encodes the batch as YAML.
func (b *Batch) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("batch: encode: %w", err)
	}
	return data, nil
}
