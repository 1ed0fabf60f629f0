package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"pmlunit/internal/domain"
)

// ListCommand handles the list command
type ListCommand struct {
	deps *Dependencies
}

// NewListCommand creates a new ListCommand
func NewListCommand(deps *Dependencies) *ListCommand {
	return &ListCommand{deps: deps}
}

// Execute runs the command
func (lc *ListCommand) Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d := lc.deps
	cfg := d.Config

	loaded := d.Provider.Load(cfg.GetTestPaths())
	catalog := loaded.Catalog()
	if previous, err := d.Storage.Load(ctx); err == nil {
		catalog.Restore(previous.Results)
	}
	defer d.Formatter.PrintProblems(loaded.Errors)

	grouping := cfg.GetGrouping()
	if cfg.Flags.NameFilter == "" {
		if len(catalog.TestCases) == 0 {
			fmt.Fprintln(d.Out, color.YellowString("No tests found"))
			return nil
		}
		d.Formatter.PrintCatalog(catalog, grouping, cfg.Flags.TestCases)
		return nil
	}

	// Filter tests
	tests := d.Filter.FilterTests(catalog.AllTests(), cfg.Flags.NameFilter)
	if len(tests) == 0 {
		fmt.Fprintln(d.Out, color.YellowString("No tests found"))
		return nil
	}
	d.Formatter.PrintGroups(domain.GroupTests(tests, grouping), grouping, cfg.Flags.TestCases)
	return nil
}
