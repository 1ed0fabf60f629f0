package domain

import (
	"fmt"
	"sync/atomic"
)

// TestCase is the set of tests discovered from one PML object definition.
type TestCase struct {
	name        string
	fileName    string
	hasSetUp    bool
	hasTearDown bool
	tests       []*Test
	index       map[string]*Test
}

// NewTestCase creates an empty TestCase. The file name is stored verbatim.
func NewTestCase(name, fileName string, hasSetUp, hasTearDown bool) *TestCase {
	return &TestCase{
		name:        name,
		fileName:    fileName,
		hasSetUp:    hasSetUp,
		hasTearDown: hasTearDown,
		index:       make(map[string]*Test),
	}
}

// Name returns the name of the object definition.
func (tc *TestCase) Name() string { return tc.name }

// FileName returns the file name the test case was parsed from.
func (tc *TestCase) FileName() string { return tc.fileName }

// HasSetUp reports whether the object defines a zero-argument setUp method.
func (tc *TestCase) HasSetUp() bool { return tc.hasSetUp }

// HasTearDown reports whether the object defines a zero-argument tearDown method.
func (tc *TestCase) HasTearDown() bool { return tc.hasTearDown }

// Tests returns the tests in catalog order. The returned slice must not be modified.
func (tc *TestCase) Tests() []*Test { return tc.tests }

// Len returns the number of tests.
func (tc *TestCase) Len() int { return len(tc.tests) }

// Test looks up a test by its case-sensitive name.
func (tc *TestCase) Test(name string) (*Test, bool) {
	t, ok := tc.index[name]
	return t, ok
}

// AddTest appends a new test. Names are unique within a test case.
func (tc *TestCase) AddTest(name string, lineNumber int) (*Test, error) {
	if _, exists := tc.index[name]; exists {
		return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateTest, tc.name, name)
	}
	t := &Test{testCase: tc, name: name, lineNumber: lineNumber}
	tc.tests = append(tc.tests, t)
	tc.index[name] = t
	return t, nil
}

// Test is one recognized test method of a TestCase.
type Test struct {
	testCase   *TestCase
	name       string
	lineNumber int
	result     atomic.Pointer[TestResult]
}

// Name returns the test method name.
func (t *Test) Name() string { return t.name }

// TestCase returns the owning test case.
func (t *Test) TestCase() *TestCase { return t.testCase }

// FileName returns the file name of the owning test case.
func (t *Test) FileName() string { return t.testCase.fileName }

// LineNumber returns the 1-based line of the method definition, or 0 when unknown.
func (t *Test) LineNumber() int { return t.lineNumber }

// FullName returns "<TestCase>.<test>".
func (t *Test) FullName() string { return t.testCase.name + "." + t.name }

// Result returns the last result, or nil when the test has not been executed.
func (t *Test) Result() *TestResult { return t.result.Load() }

// SetResult publishes a result; re-running overwrites. It has two writers:
// the execution engine, and Catalog.Restore, which loads the statuses of a
// stored run before anything executes.
func (t *Test) SetResult(result *TestResult) { t.result.Store(result) }

// Status derives the display status from the current result.
func (t *Test) Status() TestStatus {
	r := t.Result()
	switch {
	case r == nil:
		return StatusNotExecuted
	case r.Passed():
		return StatusPassed
	default:
		return StatusFailed
	}
}

// TestCaseBuilder assembles a TestCase, mostly for tests and restored catalogs.
type TestCaseBuilder struct {
	Name        string
	FileName    string
	HasSetUp    bool
	HasTearDown bool
	tests       []string
}

// NewTestCaseBuilder starts a builder for the named test case.
func NewTestCaseBuilder(name string) *TestCaseBuilder {
	return &TestCaseBuilder{Name: name, FileName: name + ".pmlobj"}
}

// AddTest queues a test name.
func (b *TestCaseBuilder) AddTest(name string) *TestCaseBuilder {
	b.tests = append(b.tests, name)
	return b
}

// Build creates the TestCase, failing on duplicate test names.
func (b *TestCaseBuilder) Build() (*TestCase, error) {
	tc := NewTestCase(b.Name, b.FileName, b.HasSetUp, b.HasTearDown)
	for _, name := range b.tests {
		if _, err := tc.AddTest(name, 0); err != nil {
			return nil, err
		}
	}
	return tc, nil
}
