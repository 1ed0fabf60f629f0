package execution

import (
	"context"
	"fmt"
	"sync"

	"pmlunit/internal/domain"
	"pmlunit/internal/logging"
)

const (
	runMethod           = "run"
	refreshIndexCommand = "pml rehash all"
	reloadCommandFormat = "pml reload object %s"
)

// Runner executes tests through the interpreter proxy. It owns the proxy and
// serializes every call into the session.
type Runner struct {
	proxy     Proxy
	commander Commander
	clock     Clock
	logger    logging.Logger

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewRunner creates a Runner. The proxy, commander and clock are required.
func NewRunner(proxy Proxy, commander Commander, clock Clock, logger logging.Logger) (*Runner, error) {
	if proxy == nil {
		return nil, ErrNilProxy
	}
	if commander == nil {
		return nil, ErrNilCommander
	}
	if clock == nil {
		return nil, ErrNilClock
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runner{proxy: proxy, commander: commander, clock: clock, logger: logger}, nil
}

// Run executes a single test, assigns the result to the test and returns it.
// Failing tests are reported through the result; the returned error is
// reserved for disposal and infrastructure failures, in which case the test
// keeps its previous result.
func (r *Runner) Run(ctx context.Context, test *domain.Test) (*domain.TestResult, error) {
	if test == nil {
		return nil, ErrNilTest
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrDisposed
	}
	return r.run(ctx, test)
}

// RunTestCase executes every test of the test case in catalog order without
// stopping on failing tests.
func (r *Runner) RunTestCase(ctx context.Context, testCase *domain.TestCase) error {
	if testCase == nil {
		return ErrNilTestCase
	}
	if r.isClosed() {
		return ErrDisposed
	}
	for _, test := range testCase.Tests() {
		if _, err := r.Run(ctx, test); err != nil {
			return err
		}
	}
	return nil
}

// RefreshIndex asks the interpreter to rescan its search path.
func (r *Runner) RefreshIndex(ctx context.Context) error {
	return r.command(ctx, refreshIndexCommand)
}

// Reload asks the interpreter to reload the object definition of a test case.
func (r *Runner) Reload(ctx context.Context, testCase *domain.TestCase) error {
	if testCase == nil {
		return ErrNilTestCase
	}
	return r.command(ctx, fmt.Sprintf(reloadCommandFormat, testCase.Name()))
}

// Close releases the proxy exactly once. It waits for an in-flight call.
func (r *Runner) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.closed = true
		r.closeErr = r.proxy.Close()
	})
	return r.closeErr
}

func (r *Runner) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Runner) command(ctx context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrDisposed
	}
	if err := r.commander.Command(ctx, command); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

// run must be called with r.mu held.
func (r *Runner) run(ctx context.Context, test *domain.Test) (*domain.TestResult, error) {
	testCase := test.TestCase()

	start := r.clock.Now()
	value, err := r.proxy.Invoke(ctx, runMethod, testCase.Name(), test.Name(), testCase.HasSetUp(), testCase.HasTearDown())
	end := r.clock.Now()

	testErr := r.classify(value, err)
	if err != nil && IsInfrastructure(err) {
		r.logger.Error("invocation failed", "test", test.FullName(), "error", err)
		return nil, err
	}

	result := domain.NewTestResult(end.Sub(start), testErr)
	test.SetResult(result)
	r.logger.Debug("test completed", "test", test.FullName(), "passed", result.Passed(), "duration", result.Duration())
	return result, nil
}

// classify turns a proxy outcome into the test error, releasing returned
// resources on every path.
func (r *Runner) classify(value Value, err error) error {
	var testErr error
	switch v := value.(type) {
	case Disposable:
		if v.Resource != nil {
			if closeErr := v.Resource.Close(); closeErr != nil {
				r.logger.Warn("failed to release returned value", "error", closeErr)
			}
		}
	case StructuredFailure:
		testErr = domain.NewPmlError(v.OrderedLines())
	}
	if err != nil {
		return err
	}
	return testErr
}
