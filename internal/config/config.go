package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"pmlunit/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath string
	TestPaths   []string
	Extension   string

	// Output settings
	OutputJSONFile string
	OutputJSONDir  string

	// Interpreter bridge
	Bridge BridgeConfig

	// Diagnostics
	LogLevel string

	// List settings
	Grouping string

	// Results history
	Database DatabaseConfig

	// Paths to ignore when scanning
	PathsToIgnore []string

	// Command flags
	Flags Flags
}

// BridgeConfig describes the interpreter process
type BridgeConfig struct {
	Command []string `yaml:"command"`
	Object  string   `yaml:"object"`
}

// DatabaseConfig holds the MySQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Flags holds command-line flags
type Flags struct {
	ProjectPath  string
	TestPath     string
	NameFilter   string
	TestCases    bool
	Grouping     string
	Only         string
	Bridge       string
	Refresh      bool
	History      bool
	OpenFailures bool
	LogLevel     string
	Fresh        bool
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:    DefaultProjectPath,
		TestPaths:      []string{DefaultTestPath},
		Extension:      DefaultExtension,
		OutputJSONFile: DefaultOutputJSONFile,
		OutputJSONDir:  DefaultOutputJSONDir,
		LogLevel:       DefaultLogLevel,
		Grouping:       DefaultGrouping,
		Database: DatabaseConfig{
			Host:     DefaultDBHost,
			Port:     DefaultDBPort,
			Username: DefaultDBUsername,
			Name:     DefaultDBName,
		},
	}
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load layers defaults, the project file, the .env file, the environment and
// the flags, in that order.
func Load(flags Flags) (*Config, error) {
	cfg := New()
	if flags.ProjectPath != "" {
		cfg.ProjectPath = flags.ProjectPath
	}

	if err := cfg.loadFile(filepath.Join(cfg.ProjectPath, ConfigFileName)); err != nil {
		return nil, err
	}

	// .env might not exist, that's okay - use environment variables
	dotenv, err := godotenv.Read(filepath.Join(cfg.ProjectPath, EnvFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", EnvFileName, err)
	}
	cfg.applyEnv(lookup(dotenv))

	cfg.applyFlags(flags)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// lookup resolves a variable from the process environment first and the
// .env values second, the way godotenv.Load would.
func lookup(dotenv map[string]string) func(string) string {
	return func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return dotenv[key]
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	if pmllib := getenv("PMLLIB"); pmllib != "" {
		var roots []string
		for _, root := range filepath.SplitList(pmllib) {
			if root = strings.TrimSpace(root); root != "" {
				roots = append(roots, root)
			}
		}
		if len(roots) > 0 {
			c.TestPaths = roots
		}
	}
	if bridge := getenv("PMLUNIT_BRIDGE"); bridge != "" {
		c.Bridge.Command = strings.Fields(bridge)
	}
	if level := getenv("PMLUNIT_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}

	setIf := func(dst *string, key string) {
		if value := getenv(key); value != "" {
			*dst = value
		}
	}
	setIf(&c.Database.Host, "DB_HOST")
	setIf(&c.Database.Port, "DB_PORT")
	setIf(&c.Database.Username, "DB_USERNAME")
	setIf(&c.Database.Password, "DB_PASSWORD")
	setIf(&c.Database.Name, "DB_DATABASE")
}

func (c *Config) applyFlags(flags Flags) {
	c.Flags = flags
	if flags.Bridge != "" {
		c.Bridge.Command = strings.Fields(flags.Bridge)
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.Grouping != "" {
		c.Grouping = flags.Grouping
	}
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch domain.Grouping(c.Grouping) {
	case domain.GroupByTestCase, domain.GroupByResult:
	default:
		return fmt.Errorf("invalid grouping %q: expected testcase or result", c.Grouping)
	}
	if _, err := domain.ParseSelection(c.GetSelection()); err != nil {
		return err
	}
	return nil
}

// GetTestPaths returns the discovery roots, using the flag if provided.
// Relative roots are resolved against the project path.
func (c *Config) GetTestPaths() []string {
	if c.Flags.TestPath != "" {
		return []string{c.resolve(c.Flags.TestPath)}
	}
	paths := make([]string, 0, len(c.TestPaths))
	for _, p := range c.TestPaths {
		paths = append(paths, c.resolve(p))
	}
	return paths
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectPath, p)
}

// GetOutputPath returns the full path to the output JSON file (under project so run and failures use the same file).
// Resolves to an absolute path so run and failures always read/write the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetGrouping returns the list grouping
func (c *Config) GetGrouping() domain.Grouping {
	return domain.Grouping(c.Grouping)
}

// GetSelection returns which tests the run command executes
func (c *Config) GetSelection() string {
	if c.Flags.Only != "" {
		return c.Flags.Only
	}
	return DefaultSelection
}

// DSN returns the MySQL data source name. Without a database the DSN points
// at the server, which is what schema creation needs.
func (c *Config) DSN(withDatabase bool) string {
	dsn := mysql.NewConfig()
	dsn.User = c.Database.Username
	dsn.Passwd = c.Database.Password
	dsn.Net = "tcp"
	dsn.Addr = c.Database.Host + ":" + c.Database.Port
	dsn.ParseTime = true
	dsn.MultiStatements = false
	if withDatabase {
		dsn.DBName = c.Database.Name
	}
	return dsn.FormatDSN()
}
