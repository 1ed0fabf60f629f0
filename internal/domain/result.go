package domain

import "time"

// TestStatus is the display state of a test.
type TestStatus int

const (
	StatusNotExecuted TestStatus = iota
	StatusPassed
	StatusFailed
)

func (s TestStatus) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	default:
		return "not executed"
	}
}

// TestResult is the outcome of one execution attempt. It is never mutated
// after construction.
type TestResult struct {
	duration time.Duration
	err      error
}

// NewTestResult creates a result. A nil error means the test passed.
func NewTestResult(duration time.Duration, err error) *TestResult {
	return &TestResult{duration: duration, err: err}
}

// Duration is the elapsed clock time, passed through unclamped.
func (r *TestResult) Duration() time.Duration { return r.duration }

// Error is the failure, or nil on success.
func (r *TestResult) Error() error { return r.err }

// Passed reports whether the execution succeeded.
func (r *TestResult) Passed() bool { return r.err == nil }

// StoredResult is the persisted outcome of one test of a run.
type StoredResult struct {
	TestCase        string  `json:"test_case"`
	Test            string  `json:"test"`
	FileName        string  `json:"file_name"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// TestResultsMeta contains metadata about a test run
type TestResultsMeta struct {
	RunID           string  `json:"run_id"`
	TotalTests      int     `json:"total_tests"`
	PassedTests     int     `json:"passed_tests"`
	FailedTests     int     `json:"failed_tests"`
	NotExecuted     int     `json:"not_executed_tests"`
	TestCases       int     `json:"test_cases"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Aborted         string  `json:"aborted,omitempty"`
	Timestamp       string  `json:"timestamp"`
}

// TestResultsOutput is the complete output structure for test results
type TestResultsOutput struct {
	Meta    TestResultsMeta `json:"meta"`
	Results []StoredResult  `json:"results"`
	Details []TestFailure   `json:"details"`
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
