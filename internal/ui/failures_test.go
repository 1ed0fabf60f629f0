package ui

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"pmlunit/internal/domain"
)

func TestFormatFailureDetails(t *testing.T) {
	trace := make([]string, 12)
	for i := range trace {
		trace[i] = fmt.Sprintf("Called from line %d", i+1)
	}
	failure := domain.TestFailure{
		TestCase:   "AccountTest",
		TestName:   "testWithdraw",
		FilePath:   "pmllib/accounttest.pmlobj",
		Line:       61,
		Column:     123,
		Message:    "FM: Form FOOBAR not found",
		StackTrace: trace,
	}

	details := formatFailureDetails(failure)

	assert.Contains(t, details, "✗ Test: AccountTest.testWithdraw")
	assert.Contains(t, details, "File: pmllib/accounttest.pmlobj")
	assert.Contains(t, details, "Location: line 61, column 123")
	assert.Contains(t, details, "FM: Form FOOBAR not found")
	assert.Contains(t, details, "Called from line 10\n")
	assert.NotContains(t, details, "Called from line 11")
	assert.Contains(t, details, "... and 2 more lines")
}

func TestFormatFailureStats(t *testing.T) {
	assert.Contains(t, formatFailureStats(domain.TestFailure{FilePath: "a.pmlobj", Line: 4, TestCase: "A"}), "a.pmlobj:4")
	assert.Contains(t, formatFailureStats(domain.TestFailure{}), "Unknown path")
}

func TestListItemText(t *testing.T) {
	failure := domain.TestFailure{TestCase: "AccountTest", TestName: "testWithdraw"}
	assert.Equal(t, "[yellow]1.[white] AccountTest.testWithdraw", listItemText(failure, 0, false))
	assert.Equal(t, "[gray]✓ [yellow]3.[gray] AccountTest.testWithdraw[white]", listItemText(failure, 2, true))
	assert.Equal(t, "[yellow]2.[white] Test 2", listItemText(domain.TestFailure{}, 1, false))
}

func TestEditorCommand(t *testing.T) {
	failure := domain.TestFailure{FilePath: "a.pmlobj", Line: 12}
	assert.Equal(t, []string{"code", "--wait", "+12", "a.pmlobj"}, editorCommand("code --wait", failure))
	assert.Equal(t, []string{"vi", "a.pmlobj"}, editorCommand("", domain.TestFailure{FilePath: "a.pmlobj"}))
}
