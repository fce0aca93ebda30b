package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aristath/taskflow/internal/events"
)

// State is the lifecycle of a Scheduler: Idle -> Running -> Done.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Mode selects how the sequential scheduler walks the ordered batch.
type Mode int

const (
	// ModeSinglePass makes one forward pass; a blocked task is never retried.
	ModeSinglePass Mode = iota
	// ModeTopological repeats passes over the still-pending tasks until a
	// pass completes nothing.
	ModeTopological
)

func (m Mode) String() string {
	switch m {
	case ModeSinglePass:
		return "single-pass"
	case ModeTopological:
		return "topological"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode resolves a mode name.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "single-pass", "single":
		return ModeSinglePass, nil
	case "topological", "topo":
		return ModeTopological, nil
	}
	return 0, fmt.Errorf("unknown scheduling mode %q", name)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPool sets the resource pool the scheduler allocates from.
func WithPool(p *ResourcePool) Option {
	return func(s *Scheduler) { s.pool = p }
}

// WithWorker sets the worker that performs each task.
func WithWorker(w Worker) Option {
	return func(s *Scheduler) { s.worker = w }
}

// WithLogger sets the logger for run progress and soft conditions.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithEventBus publishes run notifications on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithMode sets the pass strategy.
func WithMode(m Mode) Option {
	return func(s *Scheduler) { s.mode = m }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(s *Scheduler) { s.runID = id }
}

// Result is everything a run produced. Completed is in completion order.
type Result struct {
	RunID      string
	Policy     PolicyKind
	Mode       string
	Total      int
	Completed  []CompletionRecord
	Blocked    []BlockedTask
	Shortfalls []TaskShortfall
	Failed     []FailedTask
	Rejected   []RejectedTask
	StartedAt  time.Time
	FinishedAt time.Time
}

// CompletedNames returns the names of completed tasks in completion order.
func (r *Result) CompletedNames() []string {
	names := make([]string, 0, len(r.Completed))
	for _, rec := range r.Completed {
		names = append(names, rec.Task.Name)
	}
	return names
}

// Scheduler owns a batch of tasks, a resource pool and the completed history
// for a single run.
type Scheduler struct {
	mu       sync.Mutex
	tasks    []Task
	rejected []RejectedTask
	names    NameSet
	state    State
	pool     *ResourcePool
	history  *History
	worker   Worker
	logger   *zap.Logger
	bus      *events.EventBus
	mode     Mode
	runID    string
}

// New creates an idle scheduler. Without options it uses an empty pool, a
// worker that finishes instantly, and a no-op logger.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		names:   make(NameSet),
		history: NewHistory(),
		worker:  noopWorker{},
		logger:  zap.NewNop(),
		mode:    ModeSinglePass,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool, _ = NewResourcePool(nil)
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	s.logger = s.logger.With(zap.String("run_id", s.runID))
	return s
}

// Add registers a task. Malformed or duplicate tasks, and with a strict pool
// tasks naming unknown resources, are rejected with a ValidationError and
// leave the batch unchanged.
func (s *Scheduler) Add(task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if err := s.pool.CheckRequirements(task); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("adding task %q: %w", task.Name, ErrAlreadyRun)
	}
	if s.names.Has(task.Name) {
		return &ValidationError{Task: task.Name, Field: "name", Reason: "is a duplicate within the batch"}
	}
	s.tasks = append(s.tasks, task.Clone())
	s.names[task.Name] = struct{}{}
	return nil
}

// AddAll registers every valid task and returns the joined errors of the
// rejected ones. Rejections are also listed in the Result of the run.
func (s *Scheduler) AddAll(tasks []Task) error {
	var errs []error
	for _, t := range tasks {
		if err := s.Add(t); err != nil {
			s.logger.Warn("task rejected", zap.String("task", t.Name), zap.Error(err))
			errs = append(errs, err)
			if !errors.Is(err, ErrAlreadyRun) {
				s.mu.Lock()
				s.rejected = append(s.rejected, RejectedTask{Name: t.Name, Err: err})
				s.mu.Unlock()
			}
		}
	}
	return errors.Join(errs...)
}

// Tasks returns the registered tasks in insertion order.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Pool returns the scheduler's resource pool.
func (s *Scheduler) Pool() *ResourcePool { return s.pool }

// Completed returns the completed sequence so far.
func (s *Scheduler) Completed() []CompletionRecord { return s.history.Records() }

// RunID returns the identifier attached to logs, events and the result.
func (s *Scheduler) RunID() string { return s.runID }

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run resolves policyName and runs the batch with it. An unknown name is
// rejected before any task executes and leaves the scheduler idle.
func (s *Scheduler) Run(ctx context.Context, policyName string) (*Result, error) {
	policy, err := ParsePolicy(policyName)
	if err != nil {
		return nil, err
	}
	return s.RunPolicy(ctx, policy)
}

// RunPolicy runs the batch once in the order chosen by policy. Unmet
// dependencies and resource shortfalls are reported in the Result and never
// abort the run. If ctx is cancelled the run stops between tasks and the
// partial Result is returned with ctx's error.
func (s *Scheduler) RunPolicy(ctx context.Context, policy Policy) (*Result, error) {
	if policy == nil {
		return nil, &UnknownPolicyError{Name: "<nil>"}
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	s.state = StateRunning
	pending := make([]Task, len(s.tasks))
	copy(pending, s.tasks)
	rejected := append([]RejectedTask(nil), s.rejected...)
	s.mu.Unlock()

	res := &Result{
		RunID:     s.runID,
		Policy:    policy.Kind(),
		Mode:      s.mode.String(),
		Total:     len(pending),
		Rejected:  rejected,
		StartedAt: time.Now(),
	}

	ordered := policy.Order(pending)
	s.logger.Info("run started",
		zap.String("policy", policy.Kind().String()),
		zap.String("mode", s.mode.String()),
		zap.Int("tasks", len(ordered)),
	)
	s.publishProgress(res, false)

	var runErr error
	switch s.mode {
	case ModeTopological:
		runErr = s.topological(ctx, ordered, res)
	default:
		runErr = s.singlePass(ctx, ordered, res)
	}

	res.Completed = s.history.Records()
	res.FinishedAt = time.Now()

	s.mu.Lock()
	s.state = StateDone
	s.mu.Unlock()

	s.publishProgress(res, true)
	s.logger.Info("run finished",
		zap.Int("completed", len(res.Completed)),
		zap.Int("blocked", len(res.Blocked)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("shortfalls", len(res.Shortfalls)),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, runErr
}

// singlePass walks ordered once. A task whose dependencies are not complete
// when it is reached is reported blocked and not retried.
func (s *Scheduler) singlePass(ctx context.Context, ordered []Task, res *Result) error {
	for _, t := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		completed := s.history.Names()
		if !IsSatisfied(t, completed) {
			s.block(res, t, UnmetDependencies(t, completed))
			continue
		}
		if err := s.execute(ctx, t, res); err != nil {
			return err
		}
	}
	return nil
}

// topological repeats single passes over the tasks still pending until a
// pass completes nothing; whatever is left is reported blocked.
func (s *Scheduler) topological(ctx context.Context, ordered []Task, res *Result) error {
	remaining := ordered
	for len(remaining) > 0 {
		progressed := false
		var next []Task
		for _, t := range remaining {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !IsSatisfied(t, s.history.Names()) {
				next = append(next, t)
				continue
			}
			if err := s.execute(ctx, t, res); err != nil {
				return err
			}
			progressed = true
		}
		remaining = next
		if !progressed {
			break
		}
	}

	completed := s.history.Names()
	for _, t := range remaining {
		s.block(res, t, UnmetDependencies(t, completed))
	}
	return nil
}

// execute allocates, works, releases and records a single satisfied task.
// Only a cancelled context is returned as an error.
func (s *Scheduler) execute(ctx context.Context, t Task, res *Result) error {
	log := s.logger.With(zap.String("task", t.Name))

	alloc := s.pool.Allocate(t.Resources)
	for _, sf := range alloc.Shortfalls {
		res.Shortfalls = append(res.Shortfalls, TaskShortfall{Task: t.Name, Shortfall: sf})
		log.Warn("insufficient resource, running anyway",
			zap.String("resource", sf.Resource),
			zap.Int("requested", sf.Requested),
			zap.Int("available", sf.Available),
			zap.Bool("known", sf.Known),
		)
		s.bus.Publish(events.ResourceShortfallEvent{
			ID:        t.Name,
			RunID:     s.runID,
			Resource:  sf.Resource,
			Requested: sf.Requested,
			Available: sf.Available,
			Known:     sf.Known,
			Timestamp: time.Now(),
		})
	}

	startedAt := time.Now()
	log.Info("processing task",
		zap.Int("priority", t.Priority),
		zap.Duration("duration", t.Duration),
	)
	s.bus.Publish(events.TaskStartedEvent{
		ID:        t.Name,
		RunID:     s.runID,
		Priority:  t.Priority,
		Category:  t.Category,
		Timestamp: startedAt,
	})

	workErr := s.worker.Work(ctx, t)
	s.pool.ReleaseAllocation(alloc)
	finishedAt := time.Now()

	if workErr != nil {
		res.Failed = append(res.Failed, FailedTask{Task: t, Err: workErr})
		log.Warn("task failed", zap.Error(workErr))
		s.bus.Publish(events.TaskFailedEvent{ID: t.Name, RunID: s.runID, Err: workErr, Timestamp: finishedAt})
		s.publishProgress(res, false)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return nil
	}

	rec, err := s.history.Append(t, startedAt, finishedAt)
	if err != nil {
		// Names are unique at Add, so this means the batch was walked twice.
		log.Error("recording completion", zap.Error(err))
		return nil
	}
	res.Completed = append(res.Completed, rec)
	s.bus.Publish(events.TaskCompletedEvent{
		ID:        t.Name,
		RunID:     s.runID,
		Position:  rec.Position,
		Elapsed:   rec.Elapsed(),
		Timestamp: finishedAt,
	})
	s.publishProgress(res, false)
	return nil
}

func (s *Scheduler) block(res *Result, t Task, missing []string) {
	res.Blocked = append(res.Blocked, BlockedTask{Task: t, Missing: missing})
	s.logger.Warn("cannot execute task due to unfulfilled dependencies",
		zap.String("task", t.Name),
		zap.Strings("missing", missing),
	)
	s.bus.Publish(events.TaskBlockedEvent{
		ID:        t.Name,
		RunID:     s.runID,
		Missing:   append([]string(nil), missing...),
		Timestamp: time.Now(),
	})
	s.publishProgress(res, false)
}

func (s *Scheduler) publishProgress(res *Result, done bool) {
	s.bus.Publish(events.RunProgressEvent{
		RunID:     s.runID,
		Policy:    res.Policy.String(),
		Total:     res.Total,
		Completed: len(res.Completed),
		Blocked:   len(res.Blocked),
		Failed:    len(res.Failed),
		Pending:   res.Total - len(res.Completed) - len(res.Blocked) - len(res.Failed),
		Done:      done,
		Timestamp: time.Now(),
	})
}
