package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"pmlunit/internal/domain"
	"pmlunit/internal/logging"
)

// ErrNoRuns is returned by Load when the history is empty.
var ErrNoRuns = errors.New("no runs recorded")

const runColumns = `
	SELECT id, run_at, total_tests, passed_tests, failed_tests,
		not_executed_tests, test_cases, duration_seconds, aborted
	FROM test_runs`

// runRow is a row of test_runs
type runRow struct {
	ID              string         `db:"id"`
	RunAt           time.Time      `db:"run_at"`
	TotalTests      int            `db:"total_tests"`
	PassedTests     int            `db:"passed_tests"`
	FailedTests     int            `db:"failed_tests"`
	NotExecuted     int            `db:"not_executed_tests"`
	TestCases       int            `db:"test_cases"`
	DurationSeconds float64        `db:"duration_seconds"`
	Aborted         sql.NullString `db:"aborted"`
}

// resultRow is a row of test_results
type resultRow struct {
	RunID           string         `db:"run_id"`
	TestCase        string         `db:"test_case"`
	Test            string         `db:"test"`
	FileName        string         `db:"file_name"`
	Status          string         `db:"status"`
	DurationSeconds float64        `db:"duration_seconds"`
	Message         sql.NullString `db:"message"`
	Line            int            `db:"line_number"`
	Column          int            `db:"column_number"`
}

// MySQLStorage keeps every run in a MySQL results history.
type MySQLStorage struct {
	db     *sqlx.DB
	logger logging.Logger
}

// OpenMySQL connects to the history database.
func OpenMySQL(ctx context.Context, dsn string, logger logging.Logger) (*MySQLStorage, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	return NewMySQLStorage(db, logger), nil
}

// NewMySQLStorage wraps an open database.
func NewMySQLStorage(db *sqlx.DB, logger logging.Logger) *MySQLStorage {
	if logger == nil {
		logger = logging.Nop()
	}
	return &MySQLStorage{db: db, logger: logger}
}

// Close closes the database.
func (s *MySQLStorage) Close() error {
	return s.db.Close()
}

// Save records the run and its results in one transaction.
func (s *MySQLStorage) Save(ctx context.Context, output *domain.TestResultsOutput) error {
	run, results, err := toRows(output)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO test_runs (
			id, run_at, total_tests, passed_tests, failed_tests,
			not_executed_tests, test_cases, duration_seconds, aborted
		) VALUES (
			:id, :run_at, :total_tests, :passed_tests, :failed_tests,
			:not_executed_tests, :test_cases, :duration_seconds, :aborted
		)`, run)
	if err != nil {
		s.logger.Error("Failed to save run", "run", run.ID, "error", err)
		return fmt.Errorf("failed to save run: %w", err)
	}

	if len(results) > 0 {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO test_results (
				run_id, test_case, test, file_name, status, duration_seconds, message, line_number, column_number
			) VALUES (
				:run_id, :test_case, :test, :file_name, :status, :duration_seconds, :message, :line_number, :column_number
			)`, results)
		if err != nil {
			s.logger.Error("Failed to save results", "run", run.ID, "error", err)
			return fmt.Errorf("failed to save results: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("run saved to history", "run", run.ID, "results", len(results))
	return nil
}

// Load returns the most recent run.
func (s *MySQLStorage) Load(ctx context.Context) (*domain.TestResultsOutput, error) {
	var run runRow
	err := s.db.GetContext(ctx, &run, runColumns+` ORDER BY run_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last run: %w", err)
	}

	var results []resultRow
	err = s.db.SelectContext(ctx, &results, `
		SELECT run_id, test_case, test, file_name, status, duration_seconds, message, line_number, column_number
		FROM test_results
		WHERE run_id = ?
		ORDER BY id`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results of run %s: %w", run.ID, err)
	}
	return fromRows(run, results), nil
}

// History returns the metadata of the latest runs, newest first.
func (s *MySQLStorage) History(ctx context.Context, limit int) ([]domain.TestResultsMeta, error) {
	var runs []runRow
	err := s.db.SelectContext(ctx, &runs, runColumns+` ORDER BY run_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load run history: %w", err)
	}
	metas := make([]domain.TestResultsMeta, 0, len(runs))
	for _, run := range runs {
		metas = append(metas, run.meta())
	}
	return metas, nil
}

func toRows(output *domain.TestResultsOutput) (runRow, []resultRow, error) {
	meta := output.Meta
	runAt, err := time.Parse(time.RFC3339, meta.Timestamp)
	if err != nil {
		return runRow{}, nil, fmt.Errorf("invalid run timestamp %q: %w", meta.Timestamp, err)
	}

	run := runRow{
		ID:              meta.RunID,
		RunAt:           runAt.UTC(),
		TotalTests:      meta.TotalTests,
		PassedTests:     meta.PassedTests,
		FailedTests:     meta.FailedTests,
		NotExecuted:     meta.NotExecuted,
		TestCases:       meta.TestCases,
		DurationSeconds: meta.DurationSeconds,
		Aborted:         sql.NullString{String: meta.Aborted, Valid: meta.Aborted != ""},
	}

	failures := make(map[string]domain.TestFailure, len(output.Details))
	for _, f := range output.Details {
		failures[f.TestCase+"."+f.TestName] = f
	}

	results := make([]resultRow, 0, len(output.Results))
	for _, r := range output.Results {
		row := resultRow{
			RunID:           meta.RunID,
			TestCase:        r.TestCase,
			Test:            r.Test,
			FileName:        r.FileName,
			Status:          r.Status,
			DurationSeconds: r.DurationSeconds,
		}
		if f, ok := failures[r.TestCase+"."+r.Test]; ok {
			row.Message = sql.NullString{String: f.Message, Valid: true}
			row.Line = f.Line
			row.Column = f.Column
		}
		results = append(results, row)
	}
	return run, results, nil
}

func fromRows(run runRow, results []resultRow) *domain.TestResultsOutput {
	output := &domain.TestResultsOutput{
		Meta:    run.meta(),
		Results: make([]domain.StoredResult, 0, len(results)),
		Details: []domain.TestFailure{},
	}
	for _, r := range results {
		output.Results = append(output.Results, domain.StoredResult{
			TestCase:        r.TestCase,
			Test:            r.Test,
			FileName:        r.FileName,
			Status:          r.Status,
			DurationSeconds: r.DurationSeconds,
		})
		if r.Message.Valid {
			output.Details = append(output.Details, domain.TestFailure{
				TestCase:   r.TestCase,
				TestName:   r.Test,
				FilePath:   r.FileName,
				Line:       r.Line,
				Column:     r.Column,
				Message:    r.Message.String,
				StackTrace: []string{},
			})
		}
	}
	return output
}

func (r runRow) meta() domain.TestResultsMeta {
	duration := time.Duration(r.DurationSeconds * float64(time.Second))
	return domain.TestResultsMeta{
		RunID:           r.ID,
		TotalTests:      r.TotalTests,
		PassedTests:     r.PassedTests,
		FailedTests:     r.FailedTests,
		NotExecuted:     r.NotExecuted,
		TestCases:       r.TestCases,
		Duration:        duration.String(),
		DurationSeconds: r.DurationSeconds,
		Aborted:         r.Aborted.String,
		Timestamp:       r.RunAt.UTC().Format(time.RFC3339),
	}
}
