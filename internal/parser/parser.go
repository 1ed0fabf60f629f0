package parser

import "pmlunit/internal/domain"

// Parser turns failed test results into failure records
type Parser interface {
	ParseFailure(test *domain.Test) (domain.TestFailure, bool)
}

// ParseFailures collects the failures of all failed tests, in order
func ParseFailures(p Parser, tests []*domain.Test) []domain.TestFailure {
	failures := []domain.TestFailure{}
	for _, test := range tests {
		if failure, ok := p.ParseFailure(test); ok {
			failures = append(failures, failure)
		}
	}
	return failures
}
