package bootstrap

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Seeder loads or repairs reference data once migrations are applied.
type Seeder interface {
	Name() string
	Seed(ctx context.Context, db *sqlx.DB) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc struct {
	Label string
	Fn    func(ctx context.Context, db *sqlx.DB) error
}

// Name identifies the seeder in logs.
func (f SeederFunc) Name() string {
	return f.Label
}

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, db *sqlx.DB) error {
	return f.Fn(ctx, db)
}

// Modules groups optional bootstrapping hooks.
type Modules struct {
	Seeders []Seeder
}
