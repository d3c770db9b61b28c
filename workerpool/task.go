package workerpool

import (
	"context"
	"errors"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"github.com/pitabwire/util"
	"github.com/rs/xid"
)

// ErrTaskPanicked is reported by Run for a task that panicked.
var ErrTaskPanicked = errors.New("worker task panicked")

// task carries one function through the pool and reports its outcome on done.
type task struct {
	id     string
	run    func(ctx context.Context) error
	done   chan error
	pooled bool
}

func newTask(run func(ctx context.Context) error) *task {
	return &task{
		id:   xid.New().String(),
		run:  run,
		done: make(chan error, 1),
	}
}

// execute runs the task and reports on done exactly once. A panic is
// reported as ErrTaskPanicked and, on a pool worker, raised again for the
// pool's panic handler.
func (t *task) execute(ctx context.Context) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}

		util.Log(ctx).WithField("task", t.id).WithField("panic", p).Debug("task panicked")
		t.done <- fmt.Errorf("%w: %v", ErrTaskPanicked, p)
		if t.pooled {
			panic(p)
		}
	}()

	err := t.run(ctx)
	if err != nil {
		util.Log(ctx).WithError(err).WithField("task", t.id).Debug("task failed")
	}
	t.done <- err
}

// submit runs t on pool. When the pool is saturated, or there is no pool,
// t runs on the calling goroutine instead.
func submit(ctx context.Context, pool WorkerPool, t *task) error {
	if pool == nil {
		t.execute(ctx)
		return nil
	}

	t.pooled = true
	err := pool.Submit(ctx, func() { t.execute(ctx) })
	if errors.Is(err, ants.ErrPoolOverload) {
		t.pooled = false
		util.Log(ctx).WithField("task", t.id).Debug("worker pool saturated, running task inline")
		t.execute(ctx)
		return nil
	}
	return err
}

// Run executes tasks on pool and waits for all of them, joining their errors.
func Run(ctx context.Context, pool WorkerPool, tasks ...func(ctx context.Context) error) error {
	started := make([]*task, 0, len(tasks))
	var errs []error

	for _, run := range tasks {
		t := newTask(run)
		if err := submit(ctx, pool, t); err != nil {
			errs = append(errs, err)
			continue
		}
		started = append(started, t)
	}

	for _, t := range started {
		// a started task always reports, so wait without ctx
		if err := <-t.done; err != nil {
			errs = append(errs, err)
		}
	}

	if err := ctx.Err(); err != nil && len(errs) == 0 {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
