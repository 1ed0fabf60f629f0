package commands

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pmlunit/internal/bridge"
	"pmlunit/internal/cli"
	"pmlunit/internal/config"
	"pmlunit/internal/discovery"
	"pmlunit/internal/domain"
	"pmlunit/internal/execution"
	"pmlunit/internal/logging"
	"pmlunit/internal/migration"
	"pmlunit/internal/parser"
	"pmlunit/internal/storage"
	"pmlunit/internal/ui"
)

// Session is a live interpreter session: invocations plus commands.
type Session interface {
	execution.Proxy
	execution.Commander
}

// History is the results history store.
type History interface {
	storage.Storage
	History(ctx context.Context, limit int) ([]domain.TestResultsMeta, error)
	Close() error
}

// SessionStarter launches the interpreter session for a run.
type SessionStarter func(ctx context.Context, cfg *config.Config, logger logging.Logger) (Session, error)

// HistoryOpener connects to the results history store.
type HistoryOpener func(ctx context.Context, cfg *config.Config, logger logging.Logger) (History, error)

// Dependencies are shared by all commands. They are built once the
// configuration is loaded, before any command runs.
type Dependencies struct {
	Config    *config.Config
	Logger    logging.Logger
	Out       io.Writer
	Provider  *discovery.Provider
	Filter    *discovery.Filter
	Parser    parser.Parser
	Storage   storage.Storage
	Formatter *ui.Formatter
	Viewer    ui.Viewer
	Migrator  migration.Migrator
	Clock     execution.Clock

	StartSession SessionStarter
	OpenHistory  HistoryOpener
}

// Load loads the configuration and wires the dependencies from it
func (d *Dependencies) Load(flags config.Flags) error {
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel)
	scanner := discovery.NewScanner(cfg.PathsToIgnore, cfg.Extension)
	jsonStorage := storage.NewJSONStorage(cfg)
	dbManager := migration.NewDatabaseManager(cfg)

	*d = Dependencies{
		Config:       cfg,
		Logger:       logger,
		Out:          os.Stdout,
		Provider:     discovery.NewProvider(scanner, discovery.NewParser(), logger),
		Filter:       discovery.NewFilter(),
		Parser:       parser.NewPMLParser(),
		Storage:      jsonStorage,
		Formatter:    ui.NewFormatter(cfg, os.Stdout),
		Viewer:       ui.NewFailureViewer(jsonStorage, logger),
		Migrator:     migration.NewSchemaMigrator(cfg, dbManager, logger),
		Clock:        execution.SystemClock{},
		StartSession: StartBridge,
		OpenHistory:  OpenMySQLHistory,
	}
	logger.Debug("configuration loaded", "project", cfg.ProjectPath, "paths", cfg.GetTestPaths(), "bridge", cfg.Bridge.Command)
	return nil
}

// StartBridge launches the configured interpreter bridge process.
func StartBridge(ctx context.Context, cfg *config.Config, logger logging.Logger) (Session, error) {
	session, err := bridge.Start(ctx, bridge.ProcessOptions{
		Command: cfg.Bridge.Command,
		Dir:     cfg.ProjectPath,
		Object:  cfg.Bridge.Object,
	}, logger)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// OpenMySQLHistory connects to the configured MySQL history database.
func OpenMySQLHistory(ctx context.Context, cfg *config.Config, logger logging.Logger) (History, error) {
	st, err := storage.OpenMySQL(ctx, cfg.DSN(true), logger)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Commands holds all CLI commands
type Commands struct {
	deps *Dependencies

	Run      *RunCommand
	List     *ListCommand
	Migrate  *MigrateCommand
	Failures *FailuresCommand
	History  *HistoryCommand
}

// NewCommands creates all commands over deps. The dependencies may be
// populated later, as long as it happens before a command executes.
func NewCommands(deps *Dependencies) *Commands {
	return &Commands{
		deps:     deps,
		Run:      NewRunCommand(deps),
		List:     NewListCommand(deps),
		Migrate:  NewMigrateCommand(deps),
		Failures: NewFailuresCommand(deps),
		History:  NewHistoryCommand(deps),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags) {
	rootCmd.PersistentFlags().StringVar(&flags.ProjectPath, "project", "", "Project directory holding .pmlunit.yaml and .env (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return c.deps.Load(flags.ToConfigFlags())
	}

	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run PML unit tests",
		Long:  "Discover PML test cases and execute them through the interpreter bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run.Execute(cmd.Context())
		},
	}
	runCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Path to the folder where test detection should start (default: PMLLIB)")
	runCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter tests by name pattern (supports wildcards, e.g., 'Account*' or '*.testLogin*')")
	runCmd.Flags().StringVar(&flags.Only, "only", "", "Run only tests that are: all, failed, passed or not-executed (status from the last run)")
	runCmd.Flags().StringVar(&flags.Bridge, "bridge", "", "Interpreter bridge command line (overrides PMLUNIT_BRIDGE)")
	runCmd.Flags().BoolVar(&flags.Refresh, "refresh", false, "Refresh the interpreter index and reload the test cases before running")
	runCmd.Flags().BoolVar(&flags.History, "history", false, "Also record the run in the MySQL results history")
	runCmd.Flags().BoolVar(&flags.OpenFailures, "open-failures", false, "Open the failures viewer when the run finishes with failures")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered tests",
		Long:  "Scan and list all PML test cases without executing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.List.Execute(cmd.Context())
		},
	}
	listCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter tests by name pattern (supports wildcards, e.g., 'Account*' or '*.testLogin*')")
	listCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Path to the folder where test detection should start (default: PMLLIB)")
	listCmd.Flags().BoolVarP(&flags.TestCases, "tests", "c", false, "List the tests of every group")
	listCmd.Flags().StringVarP(&flags.Grouping, "group", "g", "", "Group by testcase or result")
	rootCmd.AddCommand(listCmd)

	// Migrate command
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the results history schema",
		Long:  "Create the MySQL database and tables that record test runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Migrate.Execute(cmd.Context())
		},
	}
	migrateCmd.Flags().BoolVar(&flags.Fresh, "fresh", false, "Drop the history tables before migrating")
	rootCmd.AddCommand(migrateCmd)

	// Failures command
	failuresCmd := &cobra.Command{
		Use:   "failures",
		Short: "View test failures interactively",
		Long:  "Display test failures from the last test run in an interactive viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Failures.Execute(cmd.Context())
		},
	}
	rootCmd.AddCommand(failuresCmd)

	// History command
	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long:  "List the latest runs recorded in the MySQL results history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History.Execute(cmd.Context(), limit)
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
