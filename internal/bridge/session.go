package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"pmlunit/internal/domain"
	"pmlunit/internal/execution"
	"pmlunit/internal/logging"
)

// DefaultObject is the interpreter-side object that runs tests.
const DefaultObject = "PmlTestRunner"

// maxLineSize bounds a single response line.
const maxLineSize = 4 * 1024 * 1024

var errSessionClosed = errors.New("session closed")

// Session is a single interpreter session spoken to over newline delimited
// JSON. It implements execution.Proxy and execution.Commander. Calls are
// serialized; the interpreter is not reentrant.
type Session struct {
	object string
	logger logging.Logger

	mu      sync.Mutex
	writer  io.WriteCloser
	encoder *json.Encoder
	lines   *bufio.Scanner
	nextID  int64
	broken  error
	closed  bool

	closeOnce sync.Once
	closeErr  error
	onClose   func() error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithObject sets the interpreter-side object that receives Invoke calls.
func WithObject(object string) SessionOption {
	return func(s *Session) {
		if object != "" {
			s.object = object
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger logging.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// withCloser runs fn after the writer is closed, e.g. to reap a process.
func withCloser(fn func() error) SessionOption {
	return func(s *Session) { s.onClose = fn }
}

// NewSession creates a session reading responses from r and writing requests to w.
func NewSession(r io.Reader, w io.WriteCloser, opts ...SessionOption) *Session {
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 64*1024), maxLineSize)

	s := &Session{
		object:  DefaultObject,
		logger:  logging.Nop(),
		writer:  w,
		encoder: json.NewEncoder(w),
		lines:   lines,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invoke calls method on the runner object.
func (s *Session) Invoke(ctx context.Context, method string, args ...interface{}) (execution.Value, error) {
	resp, err := s.roundTrip(ctx, request{Op: opInvoke, Object: s.object, Method: method, Args: args},
		statusOK, statusHandle, statusFailure, statusError)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusHandle:
		return execution.Disposable{Resource: &handle{session: s, id: resp.Handle}}, nil
	case statusFailure:
		return execution.StructuredFailure{Lines: resp.failure}, nil
	case statusError:
		return nil, thrown(resp.Message)
	default:
		return execution.Empty{}, nil
	}
}

// Command executes an interpreter command line.
func (s *Session) Command(ctx context.Context, command string) error {
	resp, err := s.roundTrip(ctx, request{Op: opCommand, Command: command}, statusOK, statusError)
	if err != nil {
		return err
	}
	if resp.Status == statusError {
		return thrown(resp.Message)
	}
	return nil
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.broken == nil {
			s.nextID++
			if err := s.encoder.Encode(request{ID: s.nextID, Op: opClose}); err != nil {
				s.logger.Debug("close request not delivered", "error", err)
			}
		}
		s.closed = true
		s.closeErr = s.writer.Close()
		s.mu.Unlock()

		if s.onClose != nil {
			if err := s.onClose(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
		s.logger.Debug("interpreter session closed")
	})
	return s.closeErr
}

func (s *Session) release(ctx context.Context, id string) error {
	resp, err := s.roundTrip(ctx, request{Op: opRelease, Handle: id}, statusOK, statusError)
	if err != nil {
		return err
	}
	if resp.Status == statusError {
		return thrown(resp.Message)
	}
	return nil
}

type readResult struct {
	resp response
	err  error
}

// roundTrip sends req and reads its response, which must carry one of the
// accepted statuses.
func (s *Session) roundTrip(ctx context.Context, req request, accepted ...string) (*response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &execution.InfrastructureError{Op: req.Op, Err: errSessionClosed}
	}
	if s.broken != nil {
		return nil, &execution.InfrastructureError{Op: req.Op, Err: s.broken}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.nextID++
	req.ID = s.nextID
	if err := s.encoder.Encode(req); err != nil {
		return nil, s.fail("write", err)
	}

	read := make(chan readResult, 1)
	go func() {
		var result readResult
		result.resp, result.err = s.readLine()
		read <- result
	}()

	select {
	case <-ctx.Done():
		// The pending reply can no longer be matched to a request.
		s.broken = ctx.Err()
		return nil, ctx.Err()
	case result := <-read:
		if result.err != nil {
			return nil, s.fail("read", result.err)
		}
		if result.resp.ID != req.ID {
			return nil, s.fail("read", fmt.Errorf("response id %d does not match request id %d", result.resp.ID, req.ID))
		}
		resp := &result.resp
		if !slices.Contains(accepted, resp.Status) {
			return nil, s.fail("decode", fmt.Errorf("unexpected status %q for %s", resp.Status, req.Op))
		}
		if resp.Status == statusFailure {
			lines, err := resp.failureLines()
			if err != nil {
				return nil, s.fail("decode", err)
			}
			resp.failure = lines
		}
		return resp, nil
	}
}

func (s *Session) readLine() (response, error) {
	var resp response
	if !s.lines.Scan() {
		if err := s.lines.Err(); err != nil {
			return resp, err
		}
		return resp, io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal(s.lines.Bytes(), &resp); err != nil {
		return resp, fmt.Errorf("malformed response: %w", err)
	}
	return resp, nil
}

// fail marks the session as broken. Must be called with s.mu held.
func (s *Session) fail(op string, err error) error {
	if s.broken == nil {
		s.broken = err
		s.logger.Error("interpreter session broken", "op", op, "error", err)
	}
	return &execution.InfrastructureError{Op: op, Err: err}
}

// thrown builds the error raised by an interpreter call.
func thrown(message string) *domain.PmlError {
	return &domain.PmlError{
		Message: message,
		Lines:   strings.Split(strings.TrimRight(message, "\n"), "\n"),
	}
}

// handle is an interpreter-side value that must be released.
type handle struct {
	session *Session
	id      string
	once    sync.Once
	err     error
}

func (h *handle) Close() error {
	h.once.Do(func() {
		h.err = h.session.release(context.Background(), h.id)
	})
	return h.err
}
