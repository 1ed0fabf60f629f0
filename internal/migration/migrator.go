package migration

import "context"

// Migrator brings the results history schema up to date
type Migrator interface {
	Run(ctx context.Context, fresh bool) error
}
