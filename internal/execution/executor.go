package execution

import (
	"context"
	"io"
	"sort"
	"time"
)

// Proxy is the only channel into the live interpreter session. A session is
// not reentrant: callers must not overlap invocations.
type Proxy interface {
	// Invoke calls a method on the interpreter-side runner object. A returned
	// error means the call raised; otherwise the Value describes the outcome.
	Invoke(ctx context.Context, method string, args ...interface{}) (Value, error)
	// Close releases the session.
	Close() error
}

// Commander executes interpreter commands such as "pml rehash all".
type Commander interface {
	Command(ctx context.Context, command string) error
}

// Clock supplies instants used to measure test duration.
type Clock interface {
	Now() time.Time
}

// Value is the closed set of outcomes of a successful Invoke.
type Value interface {
	isValue()
}

// Empty is returned by calls that produce nothing.
type Empty struct{}

// Disposable wraps a returned interpreter resource that must be released.
type Disposable struct {
	Resource io.Closer
}

// StructuredFailure is an assertion failure reported without raising: an
// ordered mapping of numeric sequence key to message line.
type StructuredFailure struct {
	Lines map[float64]string
}

func (Empty) isValue()             {}
func (Disposable) isValue()        {}
func (StructuredFailure) isValue() {}

// OrderedLines returns the lines in ascending key order.
func (f StructuredFailure) OrderedLines() []string {
	keys := make([]float64, 0, len(f.Lines))
	for k := range f.Lines {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, f.Lines[k])
	}
	return lines
}
