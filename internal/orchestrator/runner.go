package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/scheduler"
)

// ParallelRunnerConfig configures the parallel runner.
type ParallelRunnerConfig struct {
	ConcurrencyLimit int                            // Max concurrent tasks (default 4)
	Worker           scheduler.Worker               // Performs each task (default: finishes instantly)
	Pool             *scheduler.ResourcePool        // Shared resource pool (default: empty)
	LockManager      *scheduler.ResourceLockManager // Serializes tasks sharing a resource (default: new)
	EventBus         *events.EventBus               // Optional notification bus
	Logger           *zap.Logger                    // Optional logger
	RunID            string                         // Optional run identifier (default: random UUID)
}

// ParallelRunner executes a batch in waves: each wave is every pending task
// whose dependencies have completed, run concurrently with bounded
// concurrency. The completed history is updated before the next wave is
// computed, so dependents only start once their prerequisites are recorded.
// Completion records are in completion order, not policy order.
type ParallelRunner struct {
	config  ParallelRunnerConfig
	tasks   []scheduler.Task
	history *scheduler.History
	logger  *zap.Logger

	mu      sync.Mutex
	result  *scheduler.Result
	running int
}

// NewParallelRunner creates a runner for tasks. Tasks are expected to be
// validated and uniquely named already (see scheduler.Scheduler.AddAll).
func NewParallelRunner(cfg ParallelRunnerConfig, tasks []scheduler.Task) *ParallelRunner {
	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = 4
	}
	if cfg.Worker == nil {
		cfg.Worker = scheduler.WorkerFunc(func(context.Context, scheduler.Task) error { return nil })
	}
	if cfg.Pool == nil {
		cfg.Pool, _ = scheduler.NewResourcePool(nil)
	}
	if cfg.LockManager == nil {
		cfg.LockManager = scheduler.NewResourceLockManager()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	cloned := make([]scheduler.Task, 0, len(tasks))
	for _, t := range tasks {
		cloned = append(cloned, t.Clone())
	}

	return &ParallelRunner{
		config:  cfg,
		tasks:   cloned,
		history: scheduler.NewHistory(),
		logger:  cfg.Logger.With(zap.String("run_id", cfg.RunID), zap.String("mode", "parallel")),
	}
}

// Run executes all tasks with policy deciding the order tasks are dispatched
// within each wave. It returns when no pending task can become eligible.
func (r *ParallelRunner) Run(ctx context.Context, policy scheduler.Policy) (*scheduler.Result, error) {
	if policy == nil {
		return nil, &scheduler.UnknownPolicyError{Name: "<nil>"}
	}

	r.mu.Lock()
	if r.result != nil {
		r.mu.Unlock()
		return nil, scheduler.ErrAlreadyRun
	}
	r.result = &scheduler.Result{
		RunID:     r.config.RunID,
		Policy:    policy.Kind(),
		Mode:      "parallel",
		Total:     len(r.tasks),
		StartedAt: time.Now(),
	}
	r.mu.Unlock()

	pending := policy.Order(r.tasks)
	r.logger.Info("run started",
		zap.String("policy", policy.Kind().String()),
		zap.Int("tasks", len(pending)),
		zap.Int("concurrency", r.config.ConcurrencyLimit),
	)
	r.publishProgress(false)

	var runErr error
	for wave := 1; ; wave++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		completed := r.history.Names()
		var eligible, rest []scheduler.Task
		for _, t := range pending {
			if scheduler.IsSatisfied(t, completed) {
				eligible = append(eligible, t)
			} else {
				rest = append(rest, t)
			}
		}
		if len(eligible) == 0 {
			break
		}

		r.logger.Debug("dispatching wave", zap.Int("wave", wave), zap.Int("tasks", len(eligible)))

		// Task failures are recorded in the result; only cancellation stops the wave.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.config.ConcurrencyLimit)
		for _, task := range eligible {
			g.Go(func() error {
				r.executeTask(gctx, task)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			runErr = err
			break
		}

		pending = rest
	}

	if runErr == nil {
		completed := r.history.Names()
		for _, t := range pending {
			r.block(t, scheduler.UnmetDependencies(t, completed))
		}
	}

	r.mu.Lock()
	res := r.result
	res.Completed = r.history.Records()
	res.FinishedAt = time.Now()
	r.mu.Unlock()

	r.publishProgress(true)
	r.logger.Info("run finished",
		zap.Int("completed", len(res.Completed)),
		zap.Int("blocked", len(res.Blocked)),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, runErr
}

// Pool returns the shared resource pool.
func (r *ParallelRunner) Pool() *scheduler.ResourcePool { return r.config.Pool }

// executeTask runs a single eligible task under its resource locks.
func (r *ParallelRunner) executeTask(ctx context.Context, task scheduler.Task) {
	log := r.logger.With(zap.String("task", task.Name))

	if err := ctx.Err(); err != nil {
		r.fail(task, fmt.Errorf("context cancelled before execution: %w", err))
		return
	}

	held := r.config.LockManager.LockTask(task)
	defer r.config.LockManager.UnlockAll(held)

	alloc := r.config.Pool.Allocate(task.Resources)
	for _, sf := range alloc.Shortfalls {
		r.mu.Lock()
		r.result.Shortfalls = append(r.result.Shortfalls, scheduler.TaskShortfall{Task: task.Name, Shortfall: sf})
		r.mu.Unlock()
		log.Warn("insufficient resource, running anyway",
			zap.String("resource", sf.Resource),
			zap.Int("requested", sf.Requested),
			zap.Int("available", sf.Available),
			zap.Bool("known", sf.Known),
		)
		r.config.EventBus.Publish(events.ResourceShortfallEvent{
			ID:        task.Name,
			RunID:     r.config.RunID,
			Resource:  sf.Resource,
			Requested: sf.Requested,
			Available: sf.Available,
			Known:     sf.Known,
			Timestamp: time.Now(),
		})
	}

	r.mu.Lock()
	r.running++
	r.mu.Unlock()

	startedAt := time.Now()
	log.Info("processing task", zap.Int("priority", task.Priority), zap.Duration("duration", task.Duration))
	r.config.EventBus.Publish(events.TaskStartedEvent{
		ID:        task.Name,
		RunID:     r.config.RunID,
		Priority:  task.Priority,
		Category:  task.Category,
		Timestamp: startedAt,
	})
	r.publishProgress(false)

	err := r.config.Worker.Work(ctx, task)
	r.config.Pool.ReleaseAllocation(alloc)

	r.mu.Lock()
	r.running--
	r.mu.Unlock()

	if err != nil {
		r.fail(task, err)
		return
	}

	finishedAt := time.Now()
	rec, err := r.history.Append(task, startedAt, finishedAt)
	if err != nil {
		log.Error("recording completion", zap.Error(err))
		return
	}
	r.config.EventBus.Publish(events.TaskCompletedEvent{
		ID:        task.Name,
		RunID:     r.config.RunID,
		Position:  rec.Position,
		Elapsed:   rec.Elapsed(),
		Timestamp: finishedAt,
	})
	r.publishProgress(false)
}

func (r *ParallelRunner) fail(task scheduler.Task, err error) {
	r.mu.Lock()
	r.result.Failed = append(r.result.Failed, scheduler.FailedTask{Task: task, Err: err})
	r.mu.Unlock()

	r.logger.Warn("task failed", zap.String("task", task.Name), zap.Error(err))
	r.config.EventBus.Publish(events.TaskFailedEvent{ID: task.Name, RunID: r.config.RunID, Err: err, Timestamp: time.Now()})
	r.publishProgress(false)
}

func (r *ParallelRunner) block(task scheduler.Task, missing []string) {
	r.mu.Lock()
	r.result.Blocked = append(r.result.Blocked, scheduler.BlockedTask{Task: task, Missing: missing})
	r.mu.Unlock()

	r.logger.Warn("cannot execute task due to unfulfilled dependencies",
		zap.String("task", task.Name),
		zap.Strings("missing", missing),
	)
	r.config.EventBus.Publish(events.TaskBlockedEvent{
		ID:        task.Name,
		RunID:     r.config.RunID,
		Missing:   append([]string(nil), missing...),
		Timestamp: time.Now(),
	})
}

func (r *ParallelRunner) publishProgress(done bool) {
	completed := r.history.Len()

	r.mu.Lock()
	ev := events.RunProgressEvent{
		RunID:     r.config.RunID,
		Policy:    r.result.Policy.String(),
		Total:     r.result.Total,
		Completed: completed,
		Running:   r.running,
		Blocked:   len(r.result.Blocked),
		Failed:    len(r.result.Failed),
		Done:      done,
		Timestamp: time.Now(),
	}
	ev.Pending = ev.Total - ev.Completed - ev.Running - ev.Blocked - ev.Failed
	r.mu.Unlock()

	r.config.EventBus.Publish(ev)
}
