package config

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultTestPath is the default test path
	DefaultTestPath = "."
	// DefaultExtension is the file extension of PML test case definitions
	DefaultExtension = ".pmlobj"
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "test-results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = ".pmlunit"
	// DefaultLogLevel is the default diagnostic log level
	DefaultLogLevel = "warn"
	// DefaultGrouping is the default grouping of the test list
	DefaultGrouping = "testcase"
	// DefaultSelection is the default set of tests to run
	DefaultSelection = "all"

	// ConfigFileName is the project configuration file
	ConfigFileName = ".pmlunit.yaml"
	// EnvFileName is the dotenv file read from the project path
	EnvFileName = ".env"
)

// Database defaults for the results history
const (
	DefaultDBHost     = "127.0.0.1"
	DefaultDBPort     = "3306"
	DefaultDBUsername = "root"
	DefaultDBName     = "pmlunit"
)

// DefaultPathsToIgnore are the default directories to ignore when scanning for tests
var DefaultPathsToIgnore = []string{
	".git",
	".svn",
	".pmlunit",
	"backup",
	"node_modules",
}
