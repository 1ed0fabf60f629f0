package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"pmlunit/internal/domain"
	"pmlunit/internal/execution"
	"pmlunit/internal/parser"
	"pmlunit/internal/storage"
	"pmlunit/internal/ui"
)

// ErrTestsFailed is returned when a run finishes with failing tests
var ErrTestsFailed = errors.New("tests failed")

// RunCommand handles the run command
type RunCommand struct {
	deps *Dependencies
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(deps *Dependencies) *RunCommand {
	return &RunCommand{deps: deps}
}

// Execute runs the command
func (rc *RunCommand) Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d := rc.deps
	cfg := d.Config

	// Discover tests
	loaded := d.Provider.Load(cfg.GetTestPaths())
	d.Formatter.PrintProblems(loaded.Errors)
	catalog := loaded.Catalog()

	previous := rc.loadPrevious(ctx, catalog)

	selection, err := domain.ParseSelection(cfg.GetSelection())
	if err != nil {
		return err
	}
	tests := d.Filter.FilterTests(catalog.Select(selection), cfg.Flags.NameFilter)
	if len(tests) == 0 {
		fmt.Fprintln(d.Out, color.YellowString("No tests to execute"))
		return nil
	}

	session, err := d.StartSession(ctx, cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to start interpreter: %w", err)
	}
	runner, err := execution.NewRunner(session, session, d.Clock, d.Logger)
	if err != nil {
		session.Close()
		return err
	}

	progress := ui.NewProgressBar(len(tests), d.Out)
	async, err := execution.NewAsyncRunner(ctx, runner, execution.Events{
		TestCompleted: progress.TestCompleted,
		RunCompleted: func(run *execution.Run) {
			d.Logger.Debug("run completed", "run", run.ID, "completed", run.Completed(), "error", run.Err())
		},
	}, d.Logger)
	if err != nil {
		runner.Close()
		return err
	}
	defer func() {
		if err := async.Close(); err != nil {
			d.Logger.Warn("failed to close interpreter session", "error", err)
		}
	}()

	if cfg.Flags.Refresh {
		rc.refresh(ctx, async, tests)
	}

	// Execute tests
	start := d.Clock.Now()
	run, err := async.RunAsync(tests)
	if err != nil {
		return err
	}
	select {
	case <-run.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	progress.Finish()
	duration := d.Clock.Now().Sub(start)

	// Parse failures
	failures := parser.ParseFailures(d.Parser, tests)
	failures = storage.CarryOver(previous, failures, tests, catalog)

	// Save results
	output := storage.BuildOutput(storage.Run{
		ID:        run.ID,
		Tests:     catalog.AllTests(),
		Failures:  failures,
		Duration:  duration,
		Aborted:   run.Err(),
		Timestamp: start,
	})
	if err := d.Storage.Save(ctx, output); err != nil {
		return fmt.Errorf("failed to save test results: %w", err)
	}
	if cfg.Flags.History {
		rc.saveHistory(ctx, output)
	}

	// Print stats
	d.Formatter.PrintStats(output)
	d.Formatter.PrintRunError(run.Err())

	failed := 0
	for _, test := range tests {
		if test.Status() == domain.StatusFailed {
			failed++
		}
	}
	if cfg.Flags.OpenFailures && len(output.Details) > 0 {
		if err := d.Viewer.View(output); err != nil {
			return err
		}
	}

	if run.Err() != nil {
		return fmt.Errorf("run aborted after %d of %d test(s): %w", run.Completed(), len(tests), run.Err())
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrTestsFailed, failed, len(tests))
	}
	return nil
}

// loadPrevious restores the statuses of the last run, so that status based
// selections and the carried over failures refer to it.
func (rc *RunCommand) loadPrevious(ctx context.Context, catalog *domain.Catalog) *domain.TestResultsOutput {
	previous, err := rc.deps.Storage.Load(ctx)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			rc.deps.Logger.Warn("ignoring previous results", "error", err)
		}
		return nil
	}
	restored := catalog.Restore(previous.Results)
	rc.deps.Logger.Debug("restored previous results", "run", previous.Meta.RunID, "tests", restored)
	return previous
}

// refresh rebuilds the interpreter index and reloads every selected test
// case. Failures are reported and the run goes on with what is loaded.
func (rc *RunCommand) refresh(ctx context.Context, async *execution.AsyncRunner, tests []*domain.Test) {
	d := rc.deps
	if err := async.RefreshIndex(ctx); err != nil {
		d.Logger.Warn("failed to refresh index", "error", err)
		fmt.Fprintln(d.Out, color.YellowString("⚠ Could not refresh the interpreter index: %v", err))
		return
	}

	seen := make(map[*domain.TestCase]bool)
	for _, test := range tests {
		testCase := test.TestCase()
		if seen[testCase] {
			continue
		}
		seen[testCase] = true
		if err := async.Reload(ctx, testCase); err != nil {
			d.Logger.Warn("failed to reload test case", "test_case", testCase.Name(), "error", err)
			fmt.Fprintln(d.Out, color.YellowString("⚠ Could not reload %s: %v", testCase.Name(), err))
		}
	}
}

// saveHistory records the run in the history store. The JSON result file
// is already written, so a history failure only warns.
func (rc *RunCommand) saveHistory(ctx context.Context, output *domain.TestResultsOutput) {
	d := rc.deps
	history, err := d.OpenHistory(ctx, d.Config, d.Logger)
	if err != nil {
		d.Logger.Warn("results history unavailable", "error", err)
		fmt.Fprintln(d.Out, color.YellowString("⚠ Run not recorded in history: %v", err))
		return
	}
	defer history.Close()

	if err := history.Save(ctx, output); err != nil {
		d.Logger.Warn("failed to record run", "run", output.Meta.RunID, "error", err)
		fmt.Fprintln(d.Out, color.YellowString("⚠ Run not recorded in history: %v", err))
		return
	}
	d.Logger.Info("run recorded in history", "run", output.Meta.RunID)
}
