package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jmoiron/sqlx"
	"github.com/schollz/progressbar/v3"

	"pmlunit/internal/config"
	"pmlunit/internal/logging"
)

// Migration is one versioned schema change
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// Migrations is the history schema, in version order
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create test_runs",
		Statements: []string{`
			CREATE TABLE IF NOT EXISTS test_runs (
				id CHAR(36) NOT NULL PRIMARY KEY,
				run_at DATETIME NOT NULL,
				total_tests INT NOT NULL,
				passed_tests INT NOT NULL,
				failed_tests INT NOT NULL,
				not_executed_tests INT NOT NULL,
				test_cases INT NOT NULL,
				duration_seconds DOUBLE NOT NULL,
				aborted TEXT NULL,
				INDEX idx_test_runs_run_at (run_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
	},
	{
		Version: 2,
		Name:    "create test_results",
		Statements: []string{`
			CREATE TABLE IF NOT EXISTS test_results (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				run_id CHAR(36) NOT NULL,
				test_case VARCHAR(255) NOT NULL,
				test VARCHAR(255) NOT NULL,
				file_name VARCHAR(1024) NOT NULL,
				status VARCHAR(16) NOT NULL,
				duration_seconds DOUBLE NOT NULL,
				message TEXT NULL,
				line_number INT NOT NULL DEFAULT 0,
				column_number INT NOT NULL DEFAULT 0,
				INDEX idx_test_results_run (run_id),
				INDEX idx_test_results_test (test_case, test),
				CONSTRAINT fk_test_results_run FOREIGN KEY (run_id) REFERENCES test_runs (id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
	},
}

// dropOrder lists the tables removed by a fresh migration
var dropOrder = []string{"test_results", "test_runs", "schema_migrations"}

const createVersionsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		applied_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// SchemaMigrator implements Migrator for the MySQL results history
type SchemaMigrator struct {
	config          *config.Config
	databaseManager *DatabaseManager
	migrations      []Migration
	logger          logging.Logger
	out             io.Writer
}

// NewSchemaMigrator creates a new SchemaMigrator
func NewSchemaMigrator(cfg *config.Config, dbManager *DatabaseManager, logger logging.Logger) *SchemaMigrator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SchemaMigrator{
		config:          cfg,
		databaseManager: dbManager,
		migrations:      Migrations,
		logger:          logger,
		out:             os.Stderr,
	}
}

// Run creates the database if needed and applies pending migrations. With
// fresh, the history tables are dropped first.
func (sm *SchemaMigrator) Run(ctx context.Context, fresh bool) error {
	color.Cyan("\n╔════════════════════════════════════════════════════════════╗")
	color.Cyan("║               Migrating Results History                    ║")
	color.Cyan("╚════════════════════════════════════════════════════════════╝\n")

	created, err := sm.databaseManager.EnsureDatabase(ctx)
	if err != nil {
		return fmt.Errorf("failed to check database: %w", err)
	}
	if created {
		color.White("Created database %s\n", sm.config.Database.Name)
	}

	db, err := sqlx.Open("mysql", sm.config.DSN(true))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if fresh {
		for _, table := range dropOrder {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table)); err != nil {
				return fmt.Errorf("failed to drop %s: %w", table, err)
			}
		}
		sm.logger.Info("dropped history tables")
	}

	if _, err := db.ExecContext(ctx, createVersionsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var versions []int
	if err := db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	pending := pendingMigrations(sm.migrations, versions)
	if len(pending) == 0 {
		color.Green("✓ Nothing to migrate\n")
		return nil
	}

	color.White("Pending migrations: %d\n\n", len(pending))
	bar := newMigrationBar(sm.out, len(pending))
	startTime := time.Now()

	for i, m := range pending {
		if err := sm.apply(ctx, db, m); err != nil {
			bar.Finish()
			color.Red("✗ Migration %d (%s) failed: %v\n", m.Version, m.Name, err)
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		bar.Set(i + 1)
		bar.Describe(color.CyanString("Migrating: ") +
			color.GreenString("[completed: %d/%d]", i+1, len(pending)))
	}
	bar.Finish()

	fmt.Print("\n")
	color.Green("✓ Applied %d migration(s)\n", len(pending))
	color.White("Duration: %s\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// apply runs one migration and records its version. MySQL commits DDL
// implicitly, so the statements are not wrapped in a transaction.
func (sm *SchemaMigrator) apply(ctx context.Context, db *sqlx.DB, m Migration) error {
	for _, stmt := range m.Statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record version: %w", err)
	}
	sm.logger.Debug("migration applied", "version", m.Version, "name", m.Name)
	return nil
}

// pendingMigrations returns the migrations whose version is not applied, in order.
func pendingMigrations(all []Migration, applied []int) []Migration {
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var pending []Migration
	for _, m := range all {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending
}

func newMigrationBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(
			color.CyanString("Migrating: ")+
				color.GreenString("[completed: 0/%d]", total),
		),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}
