package database

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/flexyframe/artbot/core/logger"
)

const driverName = "sqlite"

// Connect opens the SQLite file and checks it answers. The pool is kept
// at MaxConnections (one by default): SQLite has a single writer, and
// queueing writers in-process beats SQLITE_BUSY retries.
func Connect(cfg Config) (*sqlx.DB, error) {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driverName, buildDSN(cfg))
	attrs := []slog.Attr{
		slog.String("driver", driverName),
		slog.String("db", cfg.Path),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect",
			append(attrs, slog.String("status", "failed"), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(0)
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
		append(attrs,
			slog.String("status", "ok"),
			slog.Int("pool_open", cfg.MaxConnections),
			slog.Duration("busy_timeout", cfg.busyTimeout()),
		)...)
	return db, nil
}

func buildDSN(cfg Config) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + cfg.Path + "?" + q.Encode()
}
