package commands

import "context"

// MigrateCommand handles the migrate command
type MigrateCommand struct {
	deps *Dependencies
}

// NewMigrateCommand creates a new MigrateCommand
func NewMigrateCommand(deps *Dependencies) *MigrateCommand {
	return &MigrateCommand{deps: deps}
}

// Execute runs the command
func (mc *MigrateCommand) Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return mc.deps.Migrator.Run(ctx, mc.deps.Config.Flags.Fresh)
}
