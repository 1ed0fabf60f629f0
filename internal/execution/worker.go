package execution

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"pmlunit/internal/domain"
	"pmlunit/internal/logging"
)

// Events receives run notifications. Both callbacks run on the background
// worker, in order, and may read test results synchronously.
type Events struct {
	// TestCompleted fires once per test, right after its result is assigned.
	TestCompleted func(test *domain.Test)
	// RunCompleted fires exactly once per RunAsync call, after the last
	// TestCompleted of that run.
	RunCompleted func(run *Run)
}

// Run is one scheduled batch of tests.
type Run struct {
	ID    string
	Tests []*domain.Test

	completed int
	err       error
	done      chan struct{}
}

// Done is closed after RunCompleted has been delivered.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err reports why the run stopped early: an infrastructure failure or
// ErrDisposed. It is nil when every test ran, and only valid after Done.
func (r *Run) Err() error { return r.err }

// Completed returns how many tests ran. Only valid after Done.
func (r *Run) Completed() int { return r.completed }

// Wait blocks until the run completes or ctx is done.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncRunner executes batches of tests sequentially on one background
// worker. Batches never overlap, and neither do the tests within a batch.
type AsyncRunner struct {
	runner *Runner
	events Events
	logger logging.Logger
	ctx    context.Context

	queue      *batchQueue
	stopping   atomic.Bool
	delivering atomic.Bool
	stopped    chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// NewAsyncRunner creates an AsyncRunner owning runner and starts its worker.
// Invocations use ctx; Close does not cancel it, so an in-flight call always
// finishes.
func NewAsyncRunner(ctx context.Context, runner *Runner, events Events, logger logging.Logger) (*AsyncRunner, error) {
	if runner == nil {
		return nil, ErrNilRunner
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	a := &AsyncRunner{
		runner:  runner,
		events:  events,
		logger:  logger,
		ctx:     ctx,
		queue:   newBatchQueue(),
		stopped: make(chan struct{}),
	}
	go a.work()
	return a, nil
}

// RunAsync schedules tests, which may span test cases, and returns at once.
func (a *AsyncRunner) RunAsync(tests []*domain.Test) (*Run, error) {
	if a.stopping.Load() {
		return nil, ErrDisposed
	}
	for _, test := range tests {
		if test == nil {
			return nil, ErrNilTest
		}
	}

	run := &Run{
		ID:    uuid.NewString(),
		Tests: append([]*domain.Test(nil), tests...),
		done:  make(chan struct{}),
	}
	if !a.queue.Push(run) {
		return nil, ErrDisposed
	}
	a.logger.Debug("run scheduled", "run", run.ID, "tests", len(run.Tests))
	return run, nil
}

// RefreshIndex passes through to the interpreter session.
func (a *AsyncRunner) RefreshIndex(ctx context.Context) error {
	return a.runner.RefreshIndex(ctx)
}

// Reload passes through to the interpreter session.
func (a *AsyncRunner) Reload(ctx context.Context, testCase *domain.TestCase) error {
	return a.runner.Reload(ctx, testCase)
}

// Close stops the worker after its current invocation, completes pending runs
// with ErrDisposed and releases the runner. It is safe to call more than once.
//
// Called from an event handler, Close only signals the worker and returns
// nil; the worker releases the runner once the handler returns.
func (a *AsyncRunner) Close() error {
	a.closeOnce.Do(func() {
		a.stopping.Store(true)
		a.queue.Close()
	})
	if a.delivering.Load() {
		return nil
	}
	<-a.stopped
	return a.closeErr
}

func (a *AsyncRunner) work() {
	defer close(a.stopped)
	for {
		run, ok := a.queue.Pop()
		if !ok {
			break
		}
		a.execute(run)
	}
	a.closeErr = a.runner.Close()
}

func (a *AsyncRunner) execute(run *Run) {
	a.logger.Info("run started", "run", run.ID, "tests", len(run.Tests))
	for _, test := range run.Tests {
		if a.stopping.Load() {
			run.err = ErrDisposed
			break
		}
		if _, err := a.runner.Run(a.ctx, test); err != nil {
			run.err = err
			a.logger.Error("run aborted", "run", run.ID, "test", test.FullName(), "error", err)
			break
		}
		run.completed++
		a.notify(func() {
			if a.events.TestCompleted != nil {
				a.events.TestCompleted(test)
			}
		})
	}

	a.logger.Info("run finished", "run", run.ID, "completed", run.completed, "error", run.err)
	a.notify(func() {
		if a.events.RunCompleted != nil {
			a.events.RunCompleted(run)
		}
	})
	close(run.done)
}

// notify delivers one notification. A panicking observer must not take the
// worker down with it.
func (a *AsyncRunner) notify(deliver func()) {
	a.delivering.Store(true)
	defer a.delivering.Store(false)
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("event handler panicked", "panic", r)
		}
	}()
	deliver()
}
