package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"pmlunit/internal/logging"
)

// ErrNoCommand is returned when no interpreter command line is configured.
var ErrNoCommand = errors.New("interpreter bridge command is empty")

// ProcessOptions describe how to launch the interpreter bridge.
type ProcessOptions struct {
	// Command is the executable followed by its arguments.
	Command []string
	// Dir is the working directory, defaulting to the current one.
	Dir string
	// Env is appended to the current environment.
	Env []string
	// Object is the interpreter-side runner object.
	Object string
}

// Start launches the interpreter bridge and returns a session over its
// standard streams. Closing the session waits for the process to exit.
func Start(ctx context.Context, opts ProcessOptions, logger logging.Logger) (*Session, error) {
	if len(opts.Command) == 0 || opts.Command[0] == "" {
		return nil, ErrNoCommand
	}
	if logger == nil {
		logger = logging.Nop()
	}

	cmd := exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open interpreter stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open interpreter stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start interpreter %s: %w", opts.Command[0], err)
	}
	logger.Info("interpreter started", "command", opts.Command, "pid", cmd.Process.Pid)

	return NewSession(stdout, stdin,
		WithObject(opts.Object),
		WithLogger(logger),
		withCloser(func() error {
			err := cmd.Wait()
			logger.Info("interpreter exited", "pid", cmd.Process.Pid, "error", err)
			if err != nil {
				return fmt.Errorf("interpreter exited: %w", err)
			}
			return nil
		}),
	), nil
}
