package parser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"pmlunit/internal/domain"
)

// locationPattern matches the "(line,column)   message" prefix of a PML error.
var locationPattern = regexp.MustCompile(`^\s*\((\d+),(\d+)\)\s*(.*)$`)

// PMLParser parses PML interpreter error output
type PMLParser struct{}

// NewPMLParser creates a new PMLParser
func NewPMLParser() *PMLParser {
	return &PMLParser{}
}

// ParseFailure builds the failure record of a failed test. It returns false
// for tests that passed or were never executed.
func (p *PMLParser) ParseFailure(test *domain.Test) (domain.TestFailure, bool) {
	result := test.Result()
	if result == nil || result.Passed() {
		return domain.TestFailure{}, false
	}

	failure := domain.TestFailure{
		TestCase:   test.TestCase().Name(),
		TestName:   test.Name(),
		FilePath:   test.FileName(),
		Line:       test.LineNumber(),
		StackTrace: []string{},
	}

	lines := errorLines(result.Error())
	if len(lines) == 0 {
		return failure, true
	}

	first, trace := lines[0], lines[1:]
	if match := locationPattern.FindStringSubmatch(first); match != nil {
		failure.Line, _ = strconv.Atoi(match[1])
		failure.Column, _ = strconv.Atoi(match[2])
		failure.Message = strings.TrimSpace(match[3])
	} else {
		failure.Message = strings.TrimSpace(first)
	}

	for _, line := range trace {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			failure.StackTrace = append(failure.StackTrace, trimmed)
		}
	}
	return failure, true
}

// errorLines returns the non-empty lines of err, preferring the payload
// lines of a PML error.
func errorLines(err error) []string {
	var raw []string
	var pmlErr *domain.PmlError
	if errors.As(err, &pmlErr) && len(pmlErr.Lines) > 0 {
		raw = pmlErr.Lines
	} else {
		raw = strings.Split(err.Error(), "\n")
	}

	// Leading blank lines carry no information.
	for len(raw) > 0 && strings.TrimSpace(raw[0]) == "" {
		raw = raw[1:]
	}
	return raw
}
