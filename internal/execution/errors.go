package execution

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDisposed is returned by any operation after Close.
	ErrDisposed = errors.New("test runner has been disposed")

	ErrNilProxy     = errors.New("proxy is required")
	ErrNilCommander = errors.New("commander is required")
	ErrNilClock     = errors.New("clock is required")
	ErrNilRunner    = errors.New("runner is required")
	ErrNilTest      = errors.New("test is required")
	ErrNilTestCase  = errors.New("test case is required")
)

// InfrastructureError reports a broken channel to the interpreter, as opposed
// to a test raising an error. It aborts the remainder of a batch.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("interpreter %s failed: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// IsInfrastructure reports whether err should abort a run rather than be
// recorded as a test failure.
func IsInfrastructure(err error) bool {
	var infra *InfrastructureError
	return errors.As(err, &infra) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
