package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
)

// FailuresCommand handles the failures command
type FailuresCommand struct {
	deps *Dependencies
}

// NewFailuresCommand creates a new FailuresCommand
func NewFailuresCommand(deps *Dependencies) *FailuresCommand {
	return &FailuresCommand{deps: deps}
}

// Execute runs the command
func (fc *FailuresCommand) Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	results, err := fc.deps.Storage.Load(ctx)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(fc.deps.Out, color.YellowString("No saved results found, run the tests first"))
		return nil
	}
	if err != nil {
		return err
	}

	return fc.deps.Viewer.View(results)
}
