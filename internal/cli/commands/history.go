package commands

import (
	"context"
	"fmt"
)

// HistoryCommand handles the history command
type HistoryCommand struct {
	deps *Dependencies
}

// NewHistoryCommand creates a new HistoryCommand
func NewHistoryCommand(deps *Dependencies) *HistoryCommand {
	return &HistoryCommand{deps: deps}
}

// Execute lists the latest limit runs
func (hc *HistoryCommand) Execute(ctx context.Context, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		return fmt.Errorf("invalid limit %d: must be positive", limit)
	}
	d := hc.deps
	history, err := d.OpenHistory(ctx, d.Config, d.Logger)
	if err != nil {
		return fmt.Errorf("results history unavailable: %w", err)
	}
	defer history.Close()

	runs, err := history.History(ctx, limit)
	if err != nil {
		return err
	}
	d.Formatter.PrintHistory(runs)
	return nil
}
