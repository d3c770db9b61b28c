package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/cascade/config"
	"github.com/pitabwire/cascade/workerpool"
)

type WorkerPoolSuite struct {
	suite.Suite
	cfg *config.ConfigurationDefault
}

func TestWorkerPoolSuite(t *testing.T) {
	suite.Run(t, new(WorkerPoolSuite))
}

func (s *WorkerPoolSuite) SetupTest() {
	s.cfg = &config.ConfigurationDefault{
		WorkerPoolCPUFactorForWorkerCount: 1,
		WorkerPoolCapacity:                4,
		WorkerPoolCount:                   1,
		WorkerPoolExpiryDuration:          "1s",
	}
}

func (s *WorkerPoolSuite) TestDefaultOptions() {
	opts := workerpool.DefaultOptions(s.cfg, nil)
	s.Equal(4, opts.SinglePoolCapacity)
	s.Equal(1, opts.PoolCount)
	s.Equal(time.Second, opts.ExpiryDuration)
	s.Positive(opts.Concurrency)
	s.Nil(opts.PanicHandler)
}

func (s *WorkerPoolSuite) TestRunJoinsErrors() {
	ctx := context.Background()

	testCases := []struct {
		name  string
		count int
	}{
		{"single pool", 1},
		{"multi pool", 2},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			pool, err := workerpool.New(ctx, s.cfg, workerpool.WithPoolCount(tc.count))
			s.Require().NoError(err)
			defer pool.Shutdown()

			var ran atomic.Int32
			boom := errors.New("boom")

			err = workerpool.Run(ctx, pool,
				func(context.Context) error { ran.Add(1); return nil },
				func(context.Context) error { ran.Add(1); return boom },
				func(context.Context) error { ran.Add(1); return nil },
			)
			s.Require().ErrorIs(err, boom)
			s.Equal(int32(3), ran.Load())
		})
	}
}

func (s *WorkerPoolSuite) TestRunFallsBackInlineWhenSaturated() {
	ctx := context.Background()

	pool, err := workerpool.New(ctx, s.cfg, workerpool.WithSinglePoolCapacity(1))
	s.Require().NoError(err)
	defer pool.Shutdown()

	release := make(chan struct{})
	var ran atomic.Int32

	tasks := []func(context.Context) error{
		func(context.Context) error {
			<-release
			ran.Add(1)
			return nil
		},
		func(context.Context) error {
			ran.Add(1)
			close(release)
			return nil
		},
	}

	s.Require().NoError(workerpool.Run(ctx, pool, tasks...))
	s.Equal(int32(2), ran.Load())
}

func (s *WorkerPoolSuite) TestRunWithoutPool() {
	var ran atomic.Int32
	err := workerpool.Run(context.Background(), nil,
		func(context.Context) error { ran.Add(1); return nil },
		func(context.Context) error { ran.Add(1); return nil },
	)
	s.Require().NoError(err)
	s.Equal(int32(2), ran.Load())
}

func (s *WorkerPoolSuite) TestRunCanceledContext() {
	pool, err := workerpool.New(context.Background(), s.cfg)
	s.Require().NoError(err)
	defer pool.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = workerpool.Run(ctx, pool, func(context.Context) error { return nil })
	s.Require().ErrorIs(err, context.Canceled)
}

func (s *WorkerPoolSuite) TestPanicOnPoolReachesHandler() {
	ctx := context.Background()
	panics := make(chan any, 1)

	pool, err := workerpool.New(ctx, s.cfg, workerpool.WithPoolPanicHandler(func(p any) {
		panics <- p
	}))
	s.Require().NoError(err)
	defer pool.Shutdown()

	var ran atomic.Int32
	err = workerpool.Run(ctx, pool,
		func(context.Context) error { panic("broken module") },
		func(context.Context) error { ran.Add(1); return nil },
	)
	s.Require().ErrorIs(err, workerpool.ErrTaskPanicked)
	s.Contains(err.Error(), "broken module")
	s.Equal(int32(1), ran.Load())

	select {
	case p := <-panics:
		s.Equal("broken module", p)
	case <-time.After(5 * time.Second):
		s.FailNow("panic handler was not called")
	}
}

func (s *WorkerPoolSuite) TestPanicInlineIsReported() {
	var ran atomic.Int32
	err := workerpool.Run(context.Background(), nil,
		func(context.Context) error { panic("broken module") },
		func(context.Context) error { ran.Add(1); return nil },
	)
	s.Require().ErrorIs(err, workerpool.ErrTaskPanicked)
	s.Equal(int32(1), ran.Load())
}
