package main

import (
	"fmt"
	"os"

	"pmlunit/internal/cli"
	"pmlunit/internal/cli/commands"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:           "pmlunit",
		Short:         "PML unit test runner",
		Long:          `Discover PML test cases and run them in a live interpreter session, one test at a time, with results saved for the failures viewer and an optional MySQL history.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Create flags struct (will be populated by command flags)
	var flags cli.Flags

	// Dependencies are populated once the configuration is loaded
	var deps commands.Dependencies
	cmds := commands.NewCommands(&deps)

	// Register all commands
	cmds.Register(rootCmd, &flags)

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
