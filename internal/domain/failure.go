package domain

// TestFailure represents a failed test as shown by the failures viewer
type TestFailure struct {
	TestCase   string   `json:"test_case"`
	TestName   string   `json:"test_name"`
	FilePath   string   `json:"file_path"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Message    string   `json:"message"`
	StackTrace []string `json:"stack_trace"`
	Resolved   bool     `json:"resolved,omitempty"` // Track if the failure is marked as resolved
}
