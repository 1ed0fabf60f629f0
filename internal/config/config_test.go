package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmlunit/internal/domain"
)

var environment = []string{
	"PMLLIB", "PMLUNIT_BRIDGE", "PMLUNIT_LOG_LEVEL",
	"DB_HOST", "DB_PORT", "DB_USERNAME", "DB_PASSWORD", "DB_DATABASE",
}

// clearEnv blanks every variable Load reads, so the host environment does
// not leak into the tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range environment {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestConfig_GetTestPaths(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected []string
	}{
		{
			name: "default path",
			config: &Config{
				ProjectPath: ".",
				TestPaths:   []string{"."},
			},
			expected: []string{"."},
		},
		{
			name: "with test path flag",
			config: &Config{
				ProjectPath: "/project",
				TestPaths:   []string{"."},
				Flags:       Flags{TestPath: "tests"},
			},
			expected: []string{"/project/tests"},
		},
		{
			name: "absolute test path",
			config: &Config{
				ProjectPath: "/project",
				TestPaths:   []string{"."},
				Flags:       Flags{TestPath: "/absolute/path"},
			},
			expected: []string{"/absolute/path"},
		},
		{
			name: "several roots",
			config: &Config{
				ProjectPath: "/project",
				TestPaths:   []string{"pmllib/tests", "/shared/pmllib"},
			},
			expected: []string{"/project/pmllib/tests", "/shared/pmllib"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.GetTestPaths())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(Flags{ProjectPath: dir})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectPath)
	assert.Equal(t, []string{dir}, cfg.GetTestPaths())
	assert.Equal(t, DefaultExtension, cfg.Extension)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, domain.GroupByTestCase, cfg.GetGrouping())
	assert.Equal(t, DefaultSelection, cfg.GetSelection())
	assert.Equal(t, DefaultPathsToIgnore, cfg.PathsToIgnore)
	assert.Empty(t, cfg.Bridge.Command)
	assert.Equal(t, filepath.Join(dir, DefaultOutputJSONDir, DefaultOutputJSONFile), cfg.GetOutputPath())
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
}

func TestLoad_ProjectFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, `
test_paths:
  - pmllib/tests
extension: .pmlfrm
ignore: [archive]
output:
  dir: out
  file: last-run.json
bridge:
  command: [aveva-bridge, --tty]
  object: MyRunner
log_level: debug
grouping: result
database:
  host: db.local
  name: history
`)

	cfg, err := Load(Flags{ProjectPath: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "pmllib/tests")}, cfg.GetTestPaths())
	assert.Equal(t, ".pmlfrm", cfg.Extension)
	assert.Equal(t, []string{"archive"}, cfg.PathsToIgnore)
	assert.Equal(t, filepath.Join(dir, "out", "last-run.json"), cfg.GetOutputPath())
	assert.Equal(t, []string{"aveva-bridge", "--tty"}, cfg.Bridge.Command)
	assert.Equal(t, "MyRunner", cfg.Bridge.Object)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, domain.GroupByResult, cfg.GetGrouping())
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, DefaultDBPort, cfg.Database.Port)
	assert.Equal(t, "history", cfg.Database.Name)
}

func TestLoad_InvalidProjectFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "test_paths: [unterminated")

	_, err := Load(Flags{ProjectPath: dir})
	assert.ErrorContains(t, err, "error parsing project config")
}

func TestLoad_EnvFileAndEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, EnvFileName, "DB_HOST=from-dotenv\nDB_USERNAME=tester\nPMLUNIT_BRIDGE=bridge --quiet\n")
	t.Setenv("DB_USERNAME", "from-env")

	cfg, err := Load(Flags{ProjectPath: dir})
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.Database.Host)
	assert.Equal(t, "from-env", cfg.Database.Username, "the environment wins over .env")
	assert.Equal(t, []string{"bridge", "--quiet"}, cfg.Bridge.Command)
}

func TestLoad_PMLLIBSearchPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "test_paths: [ignored]\n")
	sep := string(os.PathListSeparator)
	t.Setenv("PMLLIB", "/pml/one"+sep+sep+"/pml/two")

	cfg, err := Load(Flags{ProjectPath: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"/pml/one", "/pml/two"}, cfg.GetTestPaths())
}

func TestLoad_FlagsWin(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "grouping: result\nlog_level: info\nbridge:\n  command: [from-file]\n")
	t.Setenv("PMLUNIT_LOG_LEVEL", "error")

	cfg, err := Load(Flags{
		ProjectPath: dir,
		Grouping:    "testcase",
		LogLevel:    "debug",
		Bridge:      "from-flag --x",
		Only:        "failed",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.GroupByTestCase, cfg.GetGrouping())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"from-flag", "--x"}, cfg.Bridge.Command)
	assert.Equal(t, "failed", cfg.GetSelection())
}

func TestLoad_RejectsInvalidEnumerations(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(Flags{ProjectPath: dir, Grouping: "alphabetical"})
	assert.ErrorContains(t, err, "invalid grouping")

	_, err = Load(Flags{ProjectPath: dir, Only: "flaky"})
	assert.ErrorContains(t, err, "invalid selection")
}

func TestConfig_DSN(t *testing.T) {
	cfg := New()
	cfg.Database = DatabaseConfig{Host: "db", Port: "3307", Username: "root", Password: "secret", Name: "history"}

	withDB := cfg.DSN(true)
	assert.True(t, strings.HasPrefix(withDB, "root:secret@tcp(db:3307)/history"), withDB)
	assert.Contains(t, withDB, "parseTime=true")

	server := cfg.DSN(false)
	assert.True(t, strings.HasPrefix(server, "root:secret@tcp(db:3307)/"), server)
	assert.NotContains(t, server, "history")
}
