package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/flexyframe/artbot/core/config"
	coredatabase "github.com/flexyframe/artbot/core/database"
)

func testOptions(t *testing.T, seeders ...Seeder) Options {
	t.Helper()
	return Options{
		Config: &coreconfig.Config{},
		Database: coredatabase.Config{
			Path:          filepath.Join(t.TempDir(), "boot.db"),
			MigrationsDir: "../../migrations",
		},
		Modules:    Modules{Seeders: seeders},
		LoggerInit: func(*coreconfig.Config) error { return nil },
	}
}

func TestRunMigratesAndSeeds(t *testing.T) {
	var order []string
	seed := func(name string) Seeder {
		return SeederFunc{Label: name, Fn: func(ctx context.Context, db *sqlx.DB) error {
			var n int
			if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM orders`); err != nil {
				return err
			}
			order = append(order, name)
			return nil
		}}
	}

	res, err := Run(context.Background(), testOptions(t, seed("first"), seed("second")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.DB.Close() })

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRunFailsOnSeederError(t *testing.T) {
	boom := SeederFunc{Label: "broken", Fn: func(context.Context, *sqlx.DB) error {
		return errors.New("boom")
	}}

	res, err := Run(context.Background(), testOptions(t, boom))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "broken")
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)
}
