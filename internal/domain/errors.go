package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateTest is returned when a test name repeats within a test case.
var ErrDuplicateTest = errors.New("duplicate test name")

// ParserError reports malformed or ambiguous test definition source.
type ParserError struct {
	FileName string
	Line     int
	Reason   string
	Err      error
}

func (e *ParserError) Error() string {
	var b strings.Builder
	b.WriteString(e.FileName)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParserError) Unwrap() error { return e.Err }

// PmlError is an error raised by the PML interpreter, either thrown by a call
// or synthesized from a structured failure payload.
type PmlError struct {
	Message string
	Lines   []string
}

// NewPmlError builds an error from ordered payload lines. The message is the
// concatenation of all lines, each terminated by a newline.
func NewPmlError(lines []string) *PmlError {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return &PmlError{Message: b.String(), Lines: lines}
}

func (e *PmlError) Error() string { return e.Message }
