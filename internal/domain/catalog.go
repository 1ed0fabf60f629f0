package domain

import (
	"fmt"
	"sort"
)

// Grouping selects how a catalog is grouped for display.
type Grouping string

const (
	GroupByTestCase Grouping = "testcase"
	GroupByResult   Grouping = "result"
)

// Selection names a subset of a catalog to run.
type Selection string

const (
	SelectAll         Selection = "all"
	SelectFailed      Selection = "failed"
	SelectPassed      Selection = "passed"
	SelectNotExecuted Selection = "not-executed"
)

// ParseSelection validates a selection name.
func ParseSelection(name string) (Selection, error) {
	switch s := Selection(name); s {
	case SelectAll, SelectFailed, SelectPassed, SelectNotExecuted:
		return s, nil
	default:
		return "", fmt.Errorf("invalid selection %q: expected all, failed, passed or not-executed", name)
	}
}

// Group is a titled list of tests.
type Group struct {
	Title string
	Tests []*Test
}

// Catalog is a read-only view over discovered test cases.
type Catalog struct {
	TestCases []*TestCase
}

// NewCatalog creates a catalog over the given test cases.
func NewCatalog(testCases []*TestCase) *Catalog {
	return &Catalog{TestCases: testCases}
}

// AllTests returns every test in catalog order.
func (c *Catalog) AllTests() []*Test {
	var tests []*Test
	for _, tc := range c.TestCases {
		tests = append(tests, tc.Tests()...)
	}
	return tests
}

// WithStatus returns the tests whose current status matches.
func (c *Catalog) WithStatus(status TestStatus) []*Test {
	var tests []*Test
	for _, t := range c.AllTests() {
		if t.Status() == status {
			tests = append(tests, t)
		}
	}
	return tests
}

// PassedTests returns tests whose last result passed.
func (c *Catalog) PassedTests() []*Test { return c.WithStatus(StatusPassed) }

// FailedTests returns tests whose last result failed.
func (c *Catalog) FailedTests() []*Test { return c.WithStatus(StatusFailed) }

// NotExecutedTests returns tests without a result.
func (c *Catalog) NotExecutedTests() []*Test { return c.WithStatus(StatusNotExecuted) }

// Select returns the tests named by a selection. Unknown selections select all.
func (c *Catalog) Select(s Selection) []*Test {
	switch s {
	case SelectFailed:
		return c.FailedTests()
	case SelectPassed:
		return c.PassedTests()
	case SelectNotExecuted:
		return c.NotExecutedTests()
	default:
		return c.AllTests()
	}
}

// Find looks up a test by test case and test name.
func (c *Catalog) Find(testCase, test string) (*Test, bool) {
	for _, tc := range c.TestCases {
		if tc.Name() == testCase {
			return tc.Test(test)
		}
	}
	return nil, false
}

// Restore assigns stored results to matching tests, so that status-based
// selections work across invocations. It returns the number of matches.
func (c *Catalog) Restore(results []StoredResult) int {
	restored := 0
	for _, sr := range results {
		t, ok := c.Find(sr.TestCase, sr.Test)
		if !ok {
			continue
		}
		switch sr.Status {
		case StatusPassed.String():
			t.SetResult(NewTestResult(secondsToDuration(sr.DurationSeconds), nil))
		case StatusFailed.String():
			t.SetResult(NewTestResult(secondsToDuration(sr.DurationSeconds), &PmlError{Message: "failed in a previous run"}))
		default:
			continue
		}
		restored++
	}
	return restored
}

// Groups groups the catalog. Test case groups are sorted by name and include
// test cases without tests; result groups are ordered failed, passed, not
// executed and empty groups are omitted.
func (c *Catalog) Groups(g Grouping) []Group {
	if g == GroupByResult {
		return GroupTests(c.AllTests(), g)
	}

	groups := make([]Group, 0, len(c.TestCases))
	for _, tc := range c.TestCases {
		groups = append(groups, Group{Title: tc.Name(), Tests: tc.Tests()})
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Title < groups[j].Title })
	return groups
}

// GroupTests groups an arbitrary selection of tests, keeping their order
// within each group. Empty groups are omitted.
func GroupTests(tests []*Test, g Grouping) []Group {
	if g == GroupByResult {
		var groups []Group
		for _, s := range []TestStatus{StatusFailed, StatusPassed, StatusNotExecuted} {
			var matching []*Test
			for _, t := range tests {
				if t.Status() == s {
					matching = append(matching, t)
				}
			}
			if len(matching) > 0 {
				groups = append(groups, Group{Title: s.String(), Tests: matching})
			}
		}
		return groups
	}

	var groups []Group
	index := make(map[*TestCase]int)
	for _, t := range tests {
		i, ok := index[t.TestCase()]
		if !ok {
			i = len(groups)
			index[t.TestCase()] = i
			groups = append(groups, Group{Title: t.TestCase().Name()})
		}
		groups[i].Tests = append(groups[i].Tests, t)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Title < groups[j].Title })
	return groups
}
