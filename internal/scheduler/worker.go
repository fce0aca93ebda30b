package scheduler

import (
	"context"
	"time"
)

// Worker performs a task's work once its resources are held.
type Worker interface {
	Work(ctx context.Context, task Task) error
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, task Task) error

func (f WorkerFunc) Work(ctx context.Context, task Task) error { return f(ctx, task) }

// SimulatedWorker blocks for the task's Duration multiplied by Scale.
// A Scale of zero returns immediately.
type SimulatedWorker struct {
	Scale float64
}

func (w SimulatedWorker) Work(ctx context.Context, task Task) error {
	d := time.Duration(float64(task.Duration) * w.Scale)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// noopWorker completes every task immediately.
type noopWorker struct{}

func (noopWorker) Work(ctx context.Context, task Task) error { return nil }
