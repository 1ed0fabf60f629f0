package storage

import (
	"context"
	"time"

	"pmlunit/internal/config"
	"pmlunit/internal/domain"
)

// Storage persists and loads test run results (e.g. for the failures viewer).
type Storage interface {
	Save(ctx context.Context, output *domain.TestResultsOutput) error
	Load(ctx context.Context) (*domain.TestResultsOutput, error)
}

// JSONStorage stores results in a JSON file under the configured output path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON path.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}

// Run describes a finished run to persist.
type Run struct {
	ID        string
	Tests     []*domain.Test
	Failures  []domain.TestFailure
	Duration  time.Duration
	Aborted   error
	Timestamp time.Time
}

// BuildOutput summarizes a run. Tests carries every test of the catalog, so
// the stored status of tests outside the run is kept.
func BuildOutput(run Run) *domain.TestResultsOutput {
	output := &domain.TestResultsOutput{
		Meta: domain.TestResultsMeta{
			RunID:           run.ID,
			TotalTests:      len(run.Tests),
			Duration:        run.Duration.String(),
			DurationSeconds: run.Duration.Seconds(),
			Timestamp:       run.Timestamp.Format(time.RFC3339),
		},
		Results: make([]domain.StoredResult, 0, len(run.Tests)),
		Details: run.Failures,
	}
	if output.Details == nil {
		output.Details = []domain.TestFailure{}
	}
	if run.Aborted != nil {
		output.Meta.Aborted = run.Aborted.Error()
	}

	testCases := make(map[*domain.TestCase]struct{})
	for _, test := range run.Tests {
		testCases[test.TestCase()] = struct{}{}
		status := test.Status()
		switch status {
		case domain.StatusPassed:
			output.Meta.PassedTests++
		case domain.StatusFailed:
			output.Meta.FailedTests++
		default:
			output.Meta.NotExecuted++
		}

		stored := domain.StoredResult{
			TestCase: test.TestCase().Name(),
			Test:     test.Name(),
			FileName: test.FileName(),
			Status:   status.String(),
		}
		if result := test.Result(); result != nil {
			stored.DurationSeconds = result.Duration().Seconds()
		}
		output.Results = append(output.Results, stored)
	}
	output.Meta.TestCases = len(testCases)
	return output
}

// CarryOver keeps the failure details of a previous run for tests that were
// not executed this time and are still failing.
func CarryOver(previous *domain.TestResultsOutput, current []domain.TestFailure, executed []*domain.Test, catalog *domain.Catalog) []domain.TestFailure {
	merged := append([]domain.TestFailure{}, current...)
	if previous == nil {
		return merged
	}

	ran := make(map[string]struct{}, len(executed))
	for _, test := range executed {
		ran[test.FullName()] = struct{}{}
	}
	for _, failure := range previous.Details {
		if _, ok := ran[failure.TestCase+"."+failure.TestName]; ok {
			continue
		}
		test, ok := catalog.Find(failure.TestCase, failure.TestName)
		if !ok || test.Status() != domain.StatusFailed {
			continue
		}
		merged = append(merged, failure)
	}
	return merged
}
