package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/orchestrator"
	"github.com/aristath/taskflow/internal/scheduler"
)

// errNoValidTasks is returned when every task in a batch was rejected.
var errNoValidTasks = errors.New("batch has no valid tasks")

// executor turns a batch and config into runs. Invalid tasks are left out
// and reported with every run. Every Run gets a fresh pool and scheduler, so
// one executor can serve repeated runs.
type executor struct {
	cfg      *config.Config
	tasks    []scheduler.Task
	rejected []scheduler.RejectedTask
	seed     map[string]int
	bus      *events.EventBus
	logger   *zap.Logger
}

func newExecutor(cfg *config.Config, batch *config.Batch, bus *events.EventBus, logger *zap.Logger) (*executor, error) {
	e := &executor{
		cfg:    cfg,
		seed:   batch.PoolSeed(cfg.Resources),
		bus:    bus,
		logger: logger,
	}

	tasks, err := batch.SchedulerTasks()
	if err != nil {
		var rerr *config.RejectedTasksError
		if !errors.As(err, &rerr) {
			return nil, fmt.Errorf("invalid batch: %w", err)
		}
		e.rejected = append(e.rejected, rerr.Rejected...)
	}

	// A strict pool refuses tasks naming resources it is not seeded with.
	pool, err := e.pool()
	if err != nil {
		return nil, fmt.Errorf("invalid resources: %w", err)
	}
	for _, t := range tasks {
		if err := pool.CheckRequirements(t); err != nil {
			e.rejected = append(e.rejected, scheduler.RejectedTask{Name: t.Name, Err: err})
			continue
		}
		e.tasks = append(e.tasks, t)
	}

	for _, r := range e.rejected {
		logger.Warn("task rejected", zap.String("task", r.Name), zap.Error(r.Err))
	}
	if len(e.tasks) == 0 {
		return nil, fmt.Errorf("invalid batch: %w", errNoValidTasks)
	}
	return e, nil
}

func (e *executor) pool() (*scheduler.ResourcePool, error) {
	var opts []scheduler.PoolOption
	if e.cfg.StrictResources {
		opts = append(opts, scheduler.WithStrictResources())
	}
	return scheduler.NewResourcePool(e.seed, opts...)
}

// warnUnrunnable logs every task the dependency graph says can never run.
func (e *executor) warnUnrunnable() {
	g := scheduler.NewGraph(e.tasks)
	diag := g.Diagnose()

	names := make([]string, 0, len(diag.Dangling))
	for name := range diag.Dangling {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.logger.Warn("task depends on tasks not in the batch",
			zap.String("task", name),
			zap.Strings("missing", diag.Dangling[name]),
			zap.Strings("also_blocks", g.Dependents(name)),
		)
	}
	if diag.Cycle != nil {
		e.logger.Warn("batch contains a dependency cycle", zap.Error(diag.Cycle))
	}
}

func (e *executor) worker() scheduler.Worker {
	var w scheduler.Worker = scheduler.SimulatedWorker{Scale: e.cfg.TimeScale}
	rc := e.cfg.Resilience
	if !rc.Enabled {
		return w
	}

	retry := orchestrator.DefaultRetryConfig()
	retry.MaxRetries = rc.MaxRetries
	if rc.InitialIntervalMS > 0 {
		retry.InitialInterval = time.Duration(rc.InitialIntervalMS) * time.Millisecond
	}
	if rc.MaxIntervalMS > 0 {
		retry.MaxInterval = time.Duration(rc.MaxIntervalMS) * time.Millisecond
	}
	breakers := orchestrator.NewCircuitBreakerRegistry(orchestrator.BreakerConfig{
		ConsecutiveFailures: rc.BreakerFailures,
		OpenTimeout:         time.Duration(rc.BreakerTimeoutSeconds) * time.Second,
	}, e.logger)
	return orchestrator.NewResilientWorker(w, retry, breakers)
}

// Run executes the batch once with policy in the configured mode. Tasks
// rejected when the batch was loaded are listed in the Result.
func (e *executor) Run(ctx context.Context, policy scheduler.Policy) (*scheduler.Result, error) {
	res, err := e.run(ctx, policy)
	if res != nil && len(e.rejected) > 0 {
		res.Rejected = append(append([]scheduler.RejectedTask(nil), e.rejected...), res.Rejected...)
	}
	return res, err
}

func (e *executor) run(ctx context.Context, policy scheduler.Policy) (*scheduler.Result, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	e.warnUnrunnable()

	if e.cfg.IsParallel() {
		runner := orchestrator.NewParallelRunner(orchestrator.ParallelRunnerConfig{
			ConcurrencyLimit: e.cfg.Concurrency,
			Worker:           e.worker(),
			Pool:             pool,
			EventBus:         e.bus,
			Logger:           e.logger,
		}, e.tasks)
		return runner.Run(ctx, policy)
	}

	mode, err := scheduler.ParseMode(e.cfg.Mode)
	if err != nil {
		return nil, err
	}
	s := scheduler.New(
		scheduler.WithPool(pool),
		scheduler.WithWorker(e.worker()),
		scheduler.WithLogger(e.logger),
		scheduler.WithEventBus(e.bus),
		scheduler.WithMode(mode),
	)
	if err := s.AddAll(e.tasks); err != nil {
		return nil, err
	}
	return s.RunPolicy(ctx, policy)
}
