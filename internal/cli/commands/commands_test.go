package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pmlunit/internal/cli"
	"pmlunit/internal/config"
	"pmlunit/internal/discovery"
	"pmlunit/internal/domain"
	"pmlunit/internal/execution"
	"pmlunit/internal/logging"
	"pmlunit/internal/parser"
	"pmlunit/internal/storage"
	"pmlunit/internal/ui"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const (
	accountSource = `define object AccountTest
endobject

define method .setUp()
endmethod

define method .testDeposit(!assert is PmlAssert)
endmethod

define method .testWithdraw(!assert is PmlAssert)
endmethod
`
	ledgerSource = `define object LedgerTest
endobject

define method .testPost(!assert is PmlAssert)
endmethod
`
)

// fakeSession answers invocations from a table keyed by test name. Tests
// missing from the table pass.
type fakeSession struct {
	mu       sync.Mutex
	outcomes map[string]outcome
	invoked  []string
	commands []string
	closed   int
}

type outcome struct {
	value execution.Value
	err   error
}

func (s *fakeSession) Invoke(_ context.Context, method string, args ...interface{}) (execution.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := args[0].(string) + "." + args[1].(string)
	s.invoked = append(s.invoked, name)
	if o, ok := s.outcomes[args[1].(string)]; ok {
		return o.value, o.err
	}
	return execution.Empty{}, nil
}

func (s *fakeSession) Command(_ context.Context, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, command)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSession) Invoked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.invoked...)
}

type fakeHistory struct {
	saved  []*domain.TestResultsOutput
	runs   []domain.TestResultsMeta
	err    error
	closed bool
}

func (h *fakeHistory) Save(_ context.Context, output *domain.TestResultsOutput) error {
	if h.err != nil {
		return h.err
	}
	h.saved = append(h.saved, output)
	return nil
}

func (h *fakeHistory) Load(context.Context) (*domain.TestResultsOutput, error) {
	return nil, storage.ErrNoRuns
}

func (h *fakeHistory) History(_ context.Context, limit int) ([]domain.TestResultsMeta, error) {
	if limit < len(h.runs) {
		return h.runs[:limit], nil
	}
	return h.runs, nil
}

func (h *fakeHistory) Close() error {
	h.closed = true
	return nil
}

type fakeViewer struct {
	viewed *domain.TestResultsOutput
}

func (v *fakeViewer) View(results *domain.TestResultsOutput) error {
	v.viewed = results
	return nil
}

type mockMigrator struct {
	mock.Mock
}

func (m *mockMigrator) Run(ctx context.Context, fresh bool) error {
	return m.Called(ctx, fresh).Error(0)
}

type fixture struct {
	deps    *Dependencies
	out     *bytes.Buffer
	session *fakeSession
	history *fakeHistory
	viewer  *fakeViewer
	starts  int
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	cfg := config.New()
	cfg.ProjectPath = dir
	cfg.TestPaths = []string{dir}

	f := &fixture{
		out:     &bytes.Buffer{},
		session: &fakeSession{outcomes: map[string]outcome{}},
		history: &fakeHistory{},
		viewer:  &fakeViewer{},
	}

	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := execution.ClockFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	})

	logger := logging.Nop()
	f.deps = &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Out:       f.out,
		Provider:  discovery.NewProvider(discovery.NewScanner(cfg.PathsToIgnore, cfg.Extension), discovery.NewParser(), logger),
		Filter:    discovery.NewFilter(),
		Parser:    parser.NewPMLParser(),
		Storage:   storage.NewJSONStorage(cfg),
		Formatter: ui.NewFormatter(cfg, f.out),
		Viewer:    f.viewer,
		Clock:     clock,
		StartSession: func(context.Context, *config.Config, logging.Logger) (Session, error) {
			f.starts++
			return f.session, nil
		},
		OpenHistory: func(context.Context, *config.Config, logging.Logger) (History, error) {
			return f.history, nil
		},
	}
	return f
}

func defaultFiles() map[string]string {
	return map[string]string{
		"account.pmlobj": accountSource,
		"ledger.pmlobj":  ledgerSource,
	}
}

func (f *fixture) lastResults(t *testing.T) *domain.TestResultsOutput {
	t.Helper()
	output, err := f.deps.Storage.Load(context.Background())
	require.NoError(t, err)
	return output
}

func TestRunCommand_AllPass(t *testing.T) {
	f := newFixture(t, defaultFiles())

	err := NewRunCommand(f.deps).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"AccountTest.testDeposit", "AccountTest.testWithdraw", "LedgerTest.testPost"}, f.session.Invoked())
	assert.Equal(t, 1, f.session.closed)

	output := f.lastResults(t)
	assert.Equal(t, 3, output.Meta.TotalTests)
	assert.Equal(t, 3, output.Meta.PassedTests)
	assert.Equal(t, 2, output.Meta.TestCases)
	assert.Empty(t, output.Details)
	assert.Contains(t, f.out.String(), "✓ All tests passed!")
}

func TestRunCommand_Failures(t *testing.T) {
	f := newFixture(t, defaultFiles())
	f.session.outcomes["testWithdraw"] = outcome{value: execution.StructuredFailure{Lines: map[float64]string{
		1: "(12,4)   Expected 10 but was 5",
		2: "In method .testWithdraw",
	}}}
	f.session.outcomes["testPost"] = outcome{err: errors.New("(3,1) Object LEDGER not found")}

	err := NewRunCommand(f.deps).Execute(context.Background())
	require.ErrorIs(t, err, ErrTestsFailed)
	assert.Contains(t, err.Error(), "2 of 3")

	output := f.lastResults(t)
	assert.Equal(t, 1, output.Meta.PassedTests)
	assert.Equal(t, 2, output.Meta.FailedTests)
	require.Len(t, output.Details, 2)
	assert.Equal(t, domain.TestFailure{
		TestCase:   "AccountTest",
		TestName:   "testWithdraw",
		FilePath:   filepath.Join(f.deps.Config.ProjectPath, "account.pmlobj"),
		Line:       12,
		Column:     4,
		Message:    "Expected 10 but was 5",
		StackTrace: []string{"In method .testWithdraw"},
	}, output.Details[0])
	assert.Equal(t, "Object LEDGER not found", output.Details[1].Message)
	assert.Contains(t, f.out.String(), "✗ 2 test(s) failed")
	assert.Nil(t, f.viewer.viewed)
}

func TestRunCommand_OnlyFailedCarriesOverOtherFailures(t *testing.T) {
	f := newFixture(t, defaultFiles())
	f.session.outcomes["testWithdraw"] = outcome{err: errors.New("withdraw broken")}
	f.session.outcomes["testPost"] = outcome{err: errors.New("post broken")}
	require.Error(t, NewRunCommand(f.deps).Execute(context.Background()))

	// The second run only selects the failed tests, and only one of them
	// is selected by name.
	f.session.invoked = nil
	delete(f.session.outcomes, "testWithdraw")
	f.deps.Config.Flags.Only = string(domain.SelectFailed)
	f.deps.Config.Flags.NameFilter = "AccountTest.*"

	err := NewRunCommand(f.deps).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AccountTest.testWithdraw"}, f.session.Invoked())

	output := f.lastResults(t)
	assert.Equal(t, 2, output.Meta.PassedTests)
	assert.Equal(t, 1, output.Meta.FailedTests)
	require.Len(t, output.Details, 1)
	assert.Equal(t, "post broken", output.Details[0].Message)
}

func TestRunCommand_Aborted(t *testing.T) {
	f := newFixture(t, defaultFiles())
	f.session.outcomes["testWithdraw"] = outcome{err: &execution.InfrastructureError{Op: "read", Err: io.ErrUnexpectedEOF}}

	err := NewRunCommand(f.deps).Execute(context.Background())
	require.Error(t, err)
	assert.True(t, execution.IsInfrastructure(err))
	assert.NotErrorIs(t, err, ErrTestsFailed)
	assert.Contains(t, err.Error(), "after 1 of 3")

	output := f.lastResults(t)
	assert.Equal(t, 1, output.Meta.PassedTests)
	assert.Equal(t, 2, output.Meta.NotExecuted)
	assert.Contains(t, output.Meta.Aborted, "unexpected EOF")
	assert.Contains(t, f.out.String(), "⚠ Run stopped before all tests were executed")
}

func TestRunCommand_NoTests(t *testing.T) {
	f := newFixture(t, defaultFiles())
	f.deps.Config.Flags.NameFilter = "*Missing*"

	require.NoError(t, NewRunCommand(f.deps).Execute(context.Background()))
	assert.Contains(t, f.out.String(), "No tests to execute")
	assert.Zero(t, f.starts)
}

func TestRunCommand_StartFailure(t *testing.T) {
	f := newFixture(t, defaultFiles())
	startErr := errors.New("no interpreter")
	f.deps.StartSession = func(context.Context, *config.Config, logging.Logger) (Session, error) {
		return nil, startErr
	}

	err := NewRunCommand(f.deps).Execute(context.Background())
	assert.ErrorIs(t, err, startErr)
}

func TestRunCommand_Refresh(t *testing.T) {
	f := newFixture(t, defaultFiles())
	f.deps.Config.Flags.Refresh = true

	require.NoError(t, NewRunCommand(f.deps).Execute(context.Background()))
	assert.Equal(t, []string{
		"pml rehash all",
		"pml reload object AccountTest",
		"pml reload object LedgerTest",
	}, f.session.commands)
}

func TestRunCommand_History(t *testing.T) {
	t.Run("records the run", func(t *testing.T) {
		f := newFixture(t, defaultFiles())
		f.deps.Config.Flags.History = true

		require.NoError(t, NewRunCommand(f.deps).Execute(context.Background()))
		require.Len(t, f.history.saved, 1)
		assert.Equal(t, f.lastResults(t).Meta.RunID, f.history.saved[0].Meta.RunID)
		assert.True(t, f.history.closed)
	})

	t.Run("failure only warns", func(t *testing.T) {
		f := newFixture(t, defaultFiles())
		f.deps.Config.Flags.History = true
		f.history.err = errors.New("connection refused")

		require.NoError(t, NewRunCommand(f.deps).Execute(context.Background()))
		assert.Contains(t, f.out.String(), "Run not recorded in history: connection refused")
	})
}

func TestRunCommand_OpenFailures(t *testing.T) {
	f := newFixture(t, defaultFiles())
	f.deps.Config.Flags.OpenFailures = true
	f.session.outcomes["testPost"] = outcome{err: errors.New("boom")}

	require.ErrorIs(t, NewRunCommand(f.deps).Execute(context.Background()), ErrTestsFailed)
	require.NotNil(t, f.viewer.viewed)
	assert.Len(t, f.viewer.viewed.Details, 1)
}

func TestListCommand(t *testing.T) {
	files := defaultFiles()
	files["broken.pmlobj"] = "define method .testA(!assert is PmlAssert)\nendmethod\n"

	tests := []struct {
		name     string
		filter   string
		grouping string
		contains []string
		excludes []string
	}{
		{
			name:     "whole catalog",
			grouping: "testcase",
			contains: []string{"Found 2 test case(s) with 3 test(s):", "├── AccountTest", "└── LedgerTest", "testDeposit", "could not be loaded"},
		},
		{
			name:     "filtered",
			filter:   "*.testPost",
			grouping: "testcase",
			contains: []string{"Found 1 test case(s) with 1 test(s):", "└── LedgerTest"},
			excludes: []string{"AccountTest"},
		},
		{
			name:     "by result",
			grouping: "result",
			contains: []string{"└── not executed (3)", "AccountTest.testWithdraw"},
		},
		{
			name:     "nothing matches",
			filter:   "nothing",
			grouping: "testcase",
			contains: []string{"No tests found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, files)
			f.deps.Config.Grouping = tt.grouping
			f.deps.Config.Flags.NameFilter = tt.filter
			f.deps.Config.Flags.TestCases = true

			require.NoError(t, NewListCommand(f.deps).Execute(context.Background()))
			for _, want := range tt.contains {
				assert.Contains(t, f.out.String(), want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, f.out.String(), unwanted)
			}
		})
	}
}

func TestFailuresCommand(t *testing.T) {
	t.Run("no saved results", func(t *testing.T) {
		f := newFixture(t, defaultFiles())
		require.NoError(t, NewFailuresCommand(f.deps).Execute(context.Background()))
		assert.Contains(t, f.out.String(), "No saved results found")
		assert.Nil(t, f.viewer.viewed)
	})

	t.Run("opens the last run", func(t *testing.T) {
		f := newFixture(t, defaultFiles())
		f.session.outcomes["testDeposit"] = outcome{err: errors.New("boom")}
		require.Error(t, NewRunCommand(f.deps).Execute(context.Background()))

		require.NoError(t, NewFailuresCommand(f.deps).Execute(context.Background()))
		require.NotNil(t, f.viewer.viewed)
		assert.Equal(t, "testDeposit", f.viewer.viewed.Details[0].TestName)
	})
}

func TestMigrateCommand(t *testing.T) {
	f := newFixture(t, defaultFiles())
	migrator := &mockMigrator{}
	migrator.On("Run", mock.Anything, true).Return(nil).Once()
	f.deps.Migrator = migrator
	f.deps.Config.Flags.Fresh = true

	require.NoError(t, NewMigrateCommand(f.deps).Execute(context.Background()))
	migrator.AssertExpectations(t)
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(t, defaultFiles())
	f.history.runs = []domain.TestResultsMeta{
		{RunID: "0f8fad5b-d9cb-469f-a165-70867728950e", TotalTests: 3, PassedTests: 3, Timestamp: "2026-03-01T12:00:00Z"},
		{RunID: "7c9e6679-7425-40de-944b-e07fc1f90ae7", TotalTests: 3, PassedTests: 1, FailedTests: 2, Timestamp: "2026-02-28T12:00:00Z"},
	}

	require.NoError(t, NewHistoryCommand(f.deps).Execute(context.Background(), 1))
	assert.Contains(t, f.out.String(), "0f8fad5b")
	assert.NotContains(t, f.out.String(), "7c9e6679")
	assert.True(t, f.history.closed)

	assert.Error(t, NewHistoryCommand(f.deps).Execute(context.Background(), 0))
}

func TestDependencies_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte("bridge:\n  command: [pml-bridge, --quiet]\n"), 0644))

	var deps Dependencies
	require.NoError(t, deps.Load(config.Flags{ProjectPath: dir}))
	assert.Equal(t, []string{"pml-bridge", "--quiet"}, deps.Config.Bridge.Command)
	assert.NotNil(t, deps.Provider)
	assert.NotNil(t, deps.Storage)
	assert.NotNil(t, deps.Migrator)
	assert.NotNil(t, deps.StartSession)

	assert.Error(t, deps.Load(config.Flags{ProjectPath: dir, Grouping: "size"}))
}

func TestCommands_Register(t *testing.T) {
	root := &cobra.Command{Use: "pmlunit"}
	var flags cli.Flags
	NewCommands(&Dependencies{}).Register(root, &flags)

	for _, name := range []string{"run", "list", "migrate", "failures", "history"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	for _, flag := range []string{"test-path", "filter", "only", "bridge", "refresh", "history", "open-failures"} {
		assert.NotNil(t, run.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("project"))
}
