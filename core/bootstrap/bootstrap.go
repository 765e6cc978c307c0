package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/flexyframe/artbot/core/config"
	coredatabase "github.com/flexyframe/artbot/core/database"
	"github.com/flexyframe/artbot/core/logger"
)

// Options configure Run. The function fields default to the core
// implementations and exist so tests can swap them.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Modules  Modules

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(*sqlx.DB, coredatabase.Config) error
}

type Result struct {
	DB *sqlx.DB
}

// Run starts the logger, opens the database, migrates it and runs the
// seeders in order. On any failure the database is closed again.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	initLogger, connect, migrate := opts.LoggerInit, opts.Connect, opts.Migrate
	if initLogger == nil {
		initLogger = logger.InitLogger
	}
	if connect == nil {
		connect = coredatabase.Connect
	}
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}

	if err := initLogger(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	if err := migrate(db, opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations: %w", err)
	}
	for _, s := range opts.Modules.Seeders {
		if err := seed(ctx, db, s); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: seeder %s: %w", s.Name(), err)
		}
	}
	return &Result{DB: db}, nil
}

func seed(ctx context.Context, db *sqlx.DB, s Seeder) error {
	start := time.Now()
	err := s.Seed(ctx, db)
	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("seeder", s.Name()),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.LogEvent(ctx, logger.SEED, level, "seed", attrs...)
	return err
}
