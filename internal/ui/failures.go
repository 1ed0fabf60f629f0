package ui

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"pmlunit/internal/domain"
	"pmlunit/internal/logging"
	"pmlunit/internal/storage"
)

// maxTraceLines bounds the stack trace shown in the details pane
const maxTraceLines = 10

// FailureViewer displays test failures in an interactive TUI
type FailureViewer struct {
	storage storage.Storage
	logger  logging.Logger
}

// NewFailureViewer creates a new FailureViewer
func NewFailureViewer(st storage.Storage, logger logging.Logger) *FailureViewer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &FailureViewer{
		storage: st,
		logger:  logger,
	}
}

// View displays test failures in an interactive TUI
func (fv *FailureViewer) View(results *domain.TestResultsOutput) error {
	if len(results.Details) == 0 {
		color.Green("✓ No test failures found!")
		return nil
	}

	// Track resolved failures (by index) - load from storage
	resolved := make(map[int]bool)
	for i, failure := range results.Details {
		if failure.Resolved {
			resolved[i] = true
		}
	}

	saveResolvedStatus := func() {
		for i := range results.Details {
			results.Details[i].Resolved = resolved[i]
		}
		if err := fv.storage.Save(context.Background(), results); err != nil {
			fv.logger.Warn("failed to save resolved status", "error", err)
		}
	}

	// Create the application
	app := tview.NewApplication()

	// Create list for failed tests (left side)
	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)

	updateListItem := func(index int) {
		if index < 0 || index >= list.GetItemCount() {
			return
		}
		list.SetItemText(index, listItemText(results.Details[index], index, resolved[index]), "")
	}

	for i, failure := range results.Details {
		list.AddItem(listItemText(failure, i, resolved[i]), "", 0, nil)
	}

	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan).
		SetSecondaryTextColor(tview.Styles.SecondaryTextColor)

	// Stats header above the details (location of the failure)
	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetWordWrap(false)

	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)

	detailsContainer := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(detailsView, 0, 1, false).
		AddItem(tview.NewBox(), 2, 0, false)

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(detailsContainer, 0, 1, false)

	// list on left (1/3), details on right (2/3)
	flex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)

	updateHeader := func() {
		unresolved := 0
		for i := range results.Details {
			if !resolved[i] {
				unresolved++
			}
		}
		headerView.SetText(fmt.Sprintf(" Test Failures (%d total, %d unresolved) | ↑↓ navigate, [yellow]R[white] mark resolved, [yellow]O[white] open in editor, → details, ← back, Ctrl+C exit ", len(results.Details), unresolved))
	}
	updateHeader()

	updateDetails := func() {
		index := list.GetCurrentItem()
		if index >= 0 && index < len(results.Details) {
			failure := results.Details[index]
			statsView.SetText(formatFailureStats(failure))
			detailsView.SetText(formatFailureDetails(failure))
		}
	}

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyUp, tcell.KeyDown:
			return event
		case tcell.KeyEnter, tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		case tcell.KeyRune:
			index := list.GetCurrentItem()
			if index < 0 || index >= len(results.Details) {
				return event
			}
			switch event.Rune() {
			case 'r', 'R':
				resolved[index] = !resolved[index]
				updateListItem(index)
				updateHeader()
				updateDetails()
				saveResolvedStatus()
				return nil
			case 'o', 'O':
				failure := results.Details[index]
				app.Suspend(func() {
					if err := openInEditor(failure); err != nil {
						fv.logger.Warn("failed to open editor", "file", failure.FilePath, "error", err)
					}
				})
				return nil
			}
		}
		return event
	})

	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(list)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})

	list.SetChangedFunc(func(index int, mainText string, secondaryText string, shortcut rune) {
		updateDetails()
	})
	updateDetails()

	mainLayout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(flex, 0, 1, true)

	if err := app.SetRoot(mainLayout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func listItemText(failure domain.TestFailure, index int, resolved bool) string {
	name := failure.TestName
	if name == "" {
		name = fmt.Sprintf("Test %d", index+1)
	}
	if failure.TestCase != "" {
		name = failure.TestCase + "." + name
	}
	name = tview.Escape(name)
	if resolved {
		return fmt.Sprintf("[gray]✓ [yellow]%d.[gray] %s[white]", index+1, name)
	}
	return fmt.Sprintf("[yellow]%d.[white] %s", index+1, name)
}

// formatFailureDetails formats a test failure for display using tview color tags ([red], [cyan], etc.)
func formatFailureDetails(failure domain.TestFailure) string {
	var builder strings.Builder
	w := tabwriter.NewWriter(&builder, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "[red]✗ Test: %s[white]\n\n", tview.Escape(failure.TestCase+"."+failure.TestName))
	fmt.Fprintf(w, "[cyan]File: %s[white]\n", tview.Escape(failure.FilePath))
	if failure.Line > 0 {
		fmt.Fprintf(w, "[yellow]Location: line %d, column %d[white]\n", failure.Line, failure.Column)
	}
	fmt.Fprintf(w, "\n")

	if failure.Message != "" {
		fmt.Fprintf(w, "[yellow]Message:[white]\n%s\n\n", tview.Escape(failure.Message))
	}

	if len(failure.StackTrace) > 0 {
		fmt.Fprintf(w, "[yellow]Stack Trace:[white]\n")
		for i, trace := range failure.StackTrace {
			if i < maxTraceLines {
				fmt.Fprintf(w, "  %s\n", tview.Escape(trace))
			}
		}
		if len(failure.StackTrace) > maxTraceLines {
			fmt.Fprintf(w, "  [gray]... and %d more lines[white]\n", len(failure.StackTrace)-maxTraceLines)
		}
	}

	w.Flush()
	return builder.String()
}

// formatFailureStats formats the stats header for a test failure
func formatFailureStats(failure domain.TestFailure) string {
	path := failure.FilePath
	if path == "" {
		path = "Unknown path"
	}
	location := ""
	if failure.Line > 0 {
		location = fmt.Sprintf(":%d", failure.Line)
	}
	return fmt.Sprintf("[cyan]path:[white] [yellow]%s%s[white] [cyan]object:[white] [yellow]%s[white]\n",
		tview.Escape(path), location, tview.Escape(failure.TestCase))
}

// editorCommand builds the command line that opens the failure location.
// Most terminal editors accept "+line file".
func editorCommand(editor string, failure domain.TestFailure) []string {
	args := strings.Fields(editor)
	if len(args) == 0 {
		args = []string{"vi"}
	}
	if failure.Line > 0 {
		args = append(args, fmt.Sprintf("+%d", failure.Line))
	}
	return append(args, failure.FilePath)
}

func openInEditor(failure domain.TestFailure) error {
	if failure.FilePath == "" {
		return fmt.Errorf("failure has no file")
	}
	args := editorCommand(os.Getenv("EDITOR"), failure)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
