package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"

	"github.com/flexyframe/artbot/core/logger"
)

// ErrDirty means an earlier migration failed halfway. golang-migrate will
// not continue until the schema is repaired and the version forced.
var ErrDirty = errors.New("database: schema is dirty")

// RunMigrations brings the schema up to the newest file in
// cfg.MigrationsDir. The migrator is left open on purpose: closing it
// closes db too.
func RunMigrations(db *sqlx.DB, cfg Config) error {
	if db == nil {
		return errors.New("run migrations: nil db")
	}
	ctx := context.Background()
	cfg = cfg.WithDefaults()
	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(dir), driverName, driver)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", dir, err)
	}

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		return fmt.Errorf("%w at version %d", ErrDirty, from)
	}

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate",
			slog.String("status", "failed"),
			slog.Uint64("from_ver", uint64(from)),
			slog.Duration("duration", time.Since(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}
	to, _, _ := m.Version()

	applied := upFiles(dir, uint64(from), uint64(to))
	preview, truncated := logger.SummarizeStrings(applied, 6)
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "db.migrate",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// upFiles names the *.up.sql files with a version in (from, to], in order.
func upFiles(dir string, from, to uint64) []string {
	entries, err := os.ReadDir(dir)
	if err != nil || to <= from {
		return nil
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		if v, err := strconv.ParseUint(prefix, 10, 64); err == nil && v > from && v <= to {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
