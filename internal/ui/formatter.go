package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"

	"pmlunit/internal/config"
	"pmlunit/internal/domain"
)

// Formatter formats and displays output
type Formatter struct {
	config *config.Config
	out    io.Writer
}

// NewFormatter creates a new Formatter writing to out
func NewFormatter(cfg *config.Config, out io.Writer) *Formatter {
	return &Formatter{
		config: cfg,
		out:    out,
	}
}

func (f *Formatter) line(c func(format string, a ...interface{}) string, format string, a ...interface{}) {
	fmt.Fprintln(f.out, c(format, a...))
}

func plain(format string, a ...interface{}) string { return fmt.Sprintf(format, a...) }

// PrintCatalog prints the discovered tests grouped by test case or result.
// With showTests the tests of every group are listed below it.
func (f *Formatter) PrintCatalog(catalog *domain.Catalog, grouping domain.Grouping, showTests bool) {
	f.PrintGroups(catalog.Groups(grouping), grouping, showTests)
}

// PrintGroups prints grouped tests, see PrintCatalog.
func (f *Formatter) PrintGroups(groups []domain.Group, grouping domain.Grouping, showTests bool) {
	testCases := make(map[string]struct{})
	total := 0
	for _, group := range groups {
		if grouping == domain.GroupByTestCase {
			testCases[group.Title] = struct{}{}
		}
		for _, test := range group.Tests {
			testCases[test.TestCase().Name()] = struct{}{}
		}
		total += len(group.Tests)
	}
	f.line(color.GreenString, "Found %d test case(s) with %d test(s):\n", len(testCases), total)

	for i, group := range groups {
		isLastGroup := i == len(groups)-1
		branch, indent := "├── ", "│   "
		if isLastGroup {
			branch, indent = "└── ", "    "
		}

		f.line(color.CyanString, "%s%s%s", branch, group.Title, f.groupSuffix(group, grouping))
		if !showTests {
			continue
		}

		if len(group.Tests) == 0 {
			f.line(plain, "%s└── %s", indent, color.RedString("(no tests found)"))
		}
		for j, test := range group.Tests {
			prefix := indent + "├── "
			if j == len(group.Tests)-1 {
				prefix = indent + "└── "
			}
			name := test.Name()
			if grouping == domain.GroupByResult {
				name = test.FullName()
			}
			f.line(plain, "%s%s%s", prefix, color.YellowString(name), statusMarker(test))
		}

		// Add spacing between groups (except for the last one)
		if !isLastGroup {
			fmt.Fprintln(f.out)
		}
	}
}

func (f *Formatter) groupSuffix(group domain.Group, grouping domain.Grouping) string {
	suffix := fmt.Sprintf(" (%d)", len(group.Tests))
	if grouping != domain.GroupByTestCase || len(group.Tests) == 0 {
		return suffix
	}
	file := f.relativePath(group.Tests[0].FileName())
	suffix = " " + color.WhiteString(file) + suffix
	for _, test := range group.Tests {
		if test.Status() == domain.StatusFailed {
			return suffix + " " + color.RedString("[F]")
		}
	}
	return suffix
}

func statusMarker(test *domain.Test) string {
	switch test.Status() {
	case domain.StatusPassed:
		return " " + color.GreenString("[P]")
	case domain.StatusFailed:
		return " " + color.RedString("[F]")
	default:
		return ""
	}
}

// relativePath returns path relative to the project for cleaner display
func (f *Formatter) relativePath(path string) string {
	if f.config == nil || !filepath.IsAbs(path) {
		return path
	}
	projectPath, err := filepath.Abs(f.config.ProjectPath)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(projectPath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// PrintProblems prints the files that could not be loaded
func (f *Formatter) PrintProblems(problems []error) {
	if len(problems) == 0 {
		return
	}
	fmt.Fprintln(f.out)
	f.line(color.RedString, "✗ %d file(s) could not be loaded:", len(problems))
	for _, err := range problems {
		f.line(color.RedString, "  %v", err)
	}
}

// PrintRunError reports a run that stopped early, as opposed to failing tests
func (f *Formatter) PrintRunError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(f.out)
	f.line(color.MagentaString, "⚠ Run stopped before all tests were executed: %v", err)
}

// PrintStats displays the statistics of a run
func (f *Formatter) PrintStats(output *domain.TestResultsOutput) {
	meta := output.Meta

	// Print header
	fmt.Fprint(f.out, "\n")
	f.line(color.CyanString, "╔═══════════════════════════════════════════════════════════════╗")
	f.line(color.CyanString, "║                    Test Execution Statistics                  ║")
	f.line(color.CyanString, "╚═══════════════════════════════════════════════════════════════╝\n")

	separator := "├─────────────────────────────────┼─────────────────────────────┤"
	row := func(label string, c func(string, ...interface{}) string, value string) {
		fmt.Fprintf(f.out, "│ %-31s │ %s\n", label, c("%-27s │", value))
	}

	fmt.Fprintln(f.out, "┌─────────────────────────────────┬─────────────────────────────┐")
	row("Test Cases", color.WhiteString, fmt.Sprint(meta.TestCases))
	fmt.Fprintln(f.out, separator)
	row("Total Tests", color.WhiteString, fmt.Sprint(meta.TotalTests))
	fmt.Fprintln(f.out, separator)
	row("Passed Tests", color.GreenString, fmt.Sprint(meta.PassedTests))
	fmt.Fprintln(f.out, separator)
	row("Failed Tests", color.RedString, fmt.Sprint(meta.FailedTests))
	fmt.Fprintln(f.out, separator)
	row("Not Executed", color.YellowString, fmt.Sprint(meta.NotExecuted))
	fmt.Fprintln(f.out, separator)
	row("Duration", color.WhiteString, fmt.Sprintf("%.2fs", meta.DurationSeconds))
	fmt.Fprintln(f.out, separator)
	row("Run", color.WhiteString, shortID(meta.RunID))
	fmt.Fprintln(f.out, separator)
	row("Timestamp", color.WhiteString, meta.Timestamp)
	fmt.Fprintln(f.out, "└─────────────────────────────────┴─────────────────────────────┘")

	// Print summary line
	fmt.Fprintln(f.out)
	switch {
	case meta.FailedTests == 0 && meta.Aborted != "":
		f.line(color.YellowString, "%d test(s) passed, %d not executed", meta.PassedTests, meta.NotExecuted)
	case meta.FailedTests == 0:
		f.line(color.GreenString, "✓ All tests passed!")
	default:
		f.line(color.RedString, "✗ %d test(s) failed", meta.FailedTests)
		fmt.Fprintln(f.out)
		f.PrintFailedTestsTree(output.Details)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// PrintFailedTestsTree prints failures grouped by file and test case
func (f *Formatter) PrintFailedTestsTree(failures []domain.TestFailure) {
	if len(failures) == 0 {
		return
	}

	byFile := make(map[string][]domain.TestFailure)
	for _, failure := range failures {
		byFile[failure.FilePath] = append(byFile[failure.FilePath], failure)
	}
	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		fileFailures := byFile[file]
		f.line(color.YellowString, "%s", f.relativePath(file))
		for i, failure := range fileFailures {
			connector := "  |_"
			if i == len(fileFailures)-1 {
				connector = "   |_"
			}
			location := ""
			if failure.Line > 0 {
				location = fmt.Sprintf(" (%d,%d)", failure.Line, failure.Column)
			}
			f.line(color.RedString, "%s%s.%s%s", connector, failure.TestCase, failure.TestName, location)
			if failure.Message != "" {
				f.line(plain, "      %s", failure.Message)
			}
		}
	}
}

// PrintHistory lists stored runs, newest first
func (f *Formatter) PrintHistory(runs []domain.TestResultsMeta) {
	if len(runs) == 0 {
		f.line(color.YellowString, "No runs recorded yet")
		return
	}
	f.line(color.CyanString, "%-10s %-25s %7s %7s %7s %9s", "RUN", "TIMESTAMP", "TOTAL", "PASSED", "FAILED", "DURATION")
	for _, run := range runs {
		status := color.GreenString("%7d", run.FailedTests)
		if run.FailedTests > 0 {
			status = color.RedString("%7d", run.FailedTests)
		}
		f.line(plain, "%-10s %-25s %7d %7d %s %8.2fs", shortID(run.RunID), run.Timestamp, run.TotalTests, run.PassedTests, status, run.DurationSeconds)
		if run.Aborted != "" {
			f.line(color.MagentaString, "           ⚠ aborted: %s", run.Aborted)
		}
	}
}
