package execution

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// Mock Proxy
type mockProxy struct {
	mock.Mock
}

func (m *mockProxy) Invoke(ctx context.Context, method string, args ...interface{}) (Value, error) {
	called := m.Called(append([]interface{}{method}, args...)...)
	value, _ := called.Get(0).(Value)
	return value, called.Error(1)
}

func (m *mockProxy) Close() error {
	return m.Called().Error(0)
}

// newProxy returns a proxy whose calls all succeed with an Empty value.
func newProxy() *mockProxy {
	p := &mockProxy{}
	p.On("Invoke", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(Empty{}, nil).Maybe()
	p.On("Close").Return(nil).Maybe()
	return p
}

// Mock Commander
type mockCommander struct {
	mock.Mock
}

func (m *mockCommander) Command(ctx context.Context, command string) error {
	return m.Called(command).Error(0)
}

// Mock Closer for disposable return values
type mockCloser struct {
	mock.Mock
}

func (m *mockCloser) Close() error {
	return m.Called().Error(0)
}

// steppingClock returns 0s on the first read and step on every later read,
// counting reads.
type steppingClock struct {
	base  time.Time
	step  time.Duration
	reads int
}

func (c *steppingClock) Now() time.Time {
	c.reads++
	if c.reads == 1 {
		return c.base
	}
	return c.base.Add(c.step)
}
