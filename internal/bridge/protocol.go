package bridge

import (
	"fmt"
	"strconv"
)

// Request operations.
const (
	opInvoke  = "invoke"
	opCommand = "command"
	opRelease = "release"
	opClose   = "close"
)

// Response statuses.
const (
	statusOK      = "ok"
	statusHandle  = "handle"
	statusFailure = "failure"
	statusError   = "error"
)

// request is one line written to the interpreter.
type request struct {
	ID      int64         `json:"id"`
	Op      string        `json:"op"`
	Object  string        `json:"object,omitempty"`
	Method  string        `json:"method,omitempty"`
	Args    []interface{} `json:"args,omitempty"`
	Command string        `json:"command,omitempty"`
	Handle  string        `json:"handle,omitempty"`
}

// response is one line read from the interpreter.
type response struct {
	ID      int64             `json:"id"`
	Status  string            `json:"status"`
	Handle  string            `json:"handle,omitempty"`
	Lines   map[string]string `json:"lines,omitempty"`
	Message string            `json:"message,omitempty"`

	failure map[float64]string
}

// failureLines converts the string keys of a failure payload to numbers.
func (r *response) failureLines() (map[float64]string, error) {
	lines := make(map[float64]string, len(r.Lines))
	for key, line := range r.Lines {
		k, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid failure key %q: %w", key, err)
		}
		lines[k] = line
	}
	return lines, nil
}
