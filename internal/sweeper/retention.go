package sweeper

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flexyframe/artbot/core/logger"
)

// Archiver moves old orders to cold storage.
type Archiver interface {
	ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionPruner deletes idle sessions.
type SessionPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention archives old orders and prunes idle sessions.
type Retention struct {
	orders      Archiver
	sessions    SessionPruner
	orderMaxAge time.Duration
	sessionIdle time.Duration
	now         func() time.Time
}

// NewRetention builds the retention task.
func NewRetention(orders Archiver, sessions SessionPruner, orderMaxAge, sessionIdle time.Duration, now func() time.Time) *Retention {
	if now == nil {
		now = time.Now
	}
	return &Retention{orders: orders, sessions: sessions, orderMaxAge: orderMaxAge, sessionIdle: sessionIdle, now: now}
}

// Report counts the rows touched by one pass.
type Report struct {
	Archived        int64
	SessionsDeleted int64
}

// Run executes both sub-tasks independently; a failure in one does not stop the other.
func (r *Retention) Run(ctx context.Context) (Report, error) {
	now := r.now()
	var (
		rep Report
		g   errgroup.Group
	)
	g.Go(func() error {
		n, err := r.orders.ArchiveBefore(ctx, now.Add(-r.orderMaxAge))
		if err != nil {
			logger.LogEvent(ctx, logger.SWEEP, slog.LevelError, "retention.archive",
				slog.String("status", "failed"), slog.String("err", err.Error()))
			return err
		}
		rep.Archived = n
		return nil
	})
	g.Go(func() error {
		n, err := r.sessions.Prune(ctx, now.Add(-r.sessionIdle))
		if err != nil {
			logger.LogEvent(ctx, logger.SWEEP, slog.LevelError, "retention.sessions",
				slog.String("status", "failed"), slog.String("err", err.Error()))
			return err
		}
		rep.SessionsDeleted = n
		return nil
	})
	err := g.Wait()
	return rep, err
}

// Task adapts Run to a Job task.
func (r *Retention) Task() Task {
	return func(ctx context.Context) ([]slog.Attr, error) {
		rep, err := r.Run(ctx)
		return []slog.Attr{
			slog.Int64("archived", rep.Archived),
			slog.Int64("sessions_deleted", rep.SessionsDeleted),
		}, err
	}
}
