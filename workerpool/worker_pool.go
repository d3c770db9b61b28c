// Package workerpool runs engine tasks on an ants goroutine pool.
package workerpool

import (
	"context"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pitabwire/util"

	"github.com/pitabwire/cascade/config"
)

// releaseTimeout bounds how long Shutdown waits for running workers.
const releaseTimeout = 5 * time.Second

// Options defines configurable options for the worker pool. Concurrency
// sizes each pool when SinglePoolCapacity is not set.
type Options struct {
	PoolCount          int
	SinglePoolCapacity int
	Concurrency        int
	ExpiryDuration     time.Duration
	PanicHandler       func(any)
	Logger             *util.LogEntry
}

// Option defines a function that configures worker pool options.
type Option func(*Options)

// WithPoolCount sets the number of worker pools.
func WithPoolCount(count int) Option {
	return func(opts *Options) {
		opts.PoolCount = count
	}
}

// WithSinglePoolCapacity sets the capacity for a single worker pool.
func WithSinglePoolCapacity(capacity int) Option {
	return func(opts *Options) {
		opts.SinglePoolCapacity = capacity
	}
}

// WithPoolPanicHandler sets the handler called with the value of a task
// that panicked on a pool worker.
func WithPoolPanicHandler(handler func(any)) Option {
	return func(opts *Options) {
		opts.PanicHandler = handler
	}
}

// DefaultOptions sizes a pool from configuration.
func DefaultOptions(cfg config.ConfigurationWorkerPool, log *util.LogEntry) *Options {
	return &Options{
		Concurrency:        runtime.NumCPU() * cfg.GetCPUFactor(),
		SinglePoolCapacity: cfg.GetCapacity(),
		PoolCount:          cfg.GetCount(),
		ExpiryDuration:     cfg.GetExpiryDuration(),
		Logger:             log,
	}
}

// New creates a pool from cfg, adjusted by opts.
func New(ctx context.Context, cfg config.ConfigurationWorkerPool, opts ...Option) (WorkerPool, error) {
	poolOpts := DefaultOptions(cfg, util.Log(ctx))
	for _, opt := range opts {
		opt(poolOpts)
	}
	return setupWorkerPool(poolOpts)
}

func setupWorkerPool(wopts *Options) (WorkerPool, error) {
	var antsOpts []ants.Option
	if wopts.ExpiryDuration > 0 {
		antsOpts = append(antsOpts, ants.WithExpiryDuration(wopts.ExpiryDuration))
	}
	// a saturated pool rejects tasks so Run can execute them inline
	antsOpts = append(antsOpts, ants.WithNonblocking(true))
	if wopts.PanicHandler != nil {
		antsOpts = append(antsOpts, ants.WithPanicHandler(wopts.PanicHandler))
	}
	if wopts.Logger != nil {
		antsOpts = append(antsOpts, ants.WithLogger(wopts.Logger))
	}

	capacity := wopts.SinglePoolCapacity
	if capacity <= 0 {
		capacity = wopts.Concurrency
	}

	if wopts.PoolCount <= 1 {
		p, err := ants.NewPool(capacity, antsOpts...)
		if err != nil {
			return nil, err
		}
		return &singlePoolWrapper{pool: p}, nil
	}

	mp, err := ants.NewMultiPool(wopts.PoolCount, capacity, ants.LeastTasks, antsOpts...)
	if err != nil {
		return nil, err
	}
	return &multiPoolWrapper{multiPool: mp}, nil
}

// singlePoolWrapper adapts *ants.Pool to the WorkerPool interface.
type singlePoolWrapper struct {
	pool *ants.Pool
}

func (w *singlePoolWrapper) Submit(ctx context.Context, task func()) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return w.pool.Submit(task)
}

func (w *singlePoolWrapper) Shutdown() {
	_ = w.pool.ReleaseTimeout(releaseTimeout)
}

// multiPoolWrapper adapts *ants.MultiPool to the WorkerPool interface.
type multiPoolWrapper struct {
	multiPool *ants.MultiPool
}

func (w *multiPoolWrapper) Submit(ctx context.Context, task func()) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return w.multiPool.Submit(task)
}

func (w *multiPoolWrapper) Shutdown() {
	_ = w.multiPool.ReleaseTimeout(releaseTimeout)
}
