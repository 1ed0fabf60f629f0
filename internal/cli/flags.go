package cli

import "pmlunit/internal/config"

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

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		ProjectPath:  f.ProjectPath,
		TestPath:     f.TestPath,
		NameFilter:   f.NameFilter,
		TestCases:    f.TestCases,
		Grouping:     f.Grouping,
		Only:         f.Only,
		Bridge:       f.Bridge,
		Refresh:      f.Refresh,
		History:      f.History,
		OpenFailures: f.OpenFailures,
		LogLevel:     f.LogLevel,
		Fresh:        f.Fresh,
	}
}
