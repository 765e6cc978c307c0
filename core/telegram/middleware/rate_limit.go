package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
)

const pruneEvery = time.Minute

// RateLimitOptions configures the per-user throttle.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds (see UpdateKind) that are never throttled.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Now defaults to time.Now.
	Now func() time.Time
}

// UpdateKind classifies an update for throttling and logs.
func UpdateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Query != nil:
		return "inline_query"
	case u.Message != nil:
		return "message"
	default:
		return "other"
	}
}

type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[int64]time.Time
	prunedAt time.Time
}

// allow reports whether userID's update came at least interval after the
// last accepted one. Rejected updates do not extend the window.
func (t *throttle) allow(userID int64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.prunedAt) >= pruneEvery {
		for id, seen := range t.last {
			if now.Sub(seen) >= t.interval {
				delete(t.last, id)
			}
		}
		t.prunedAt = now
	}
	if seen, ok := t.last[userID]; ok && now.Sub(seen) < t.interval {
		return false
	}
	t.last[userID] = now
	return true
}

// RateLimitMiddleware drops updates a user sends faster than opts.Interval,
// which also absorbs double taps on order and payment buttons.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	th := &throttle{interval: opts.Interval, last: make(map[int64]time.Time)}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if th.allow(user.ID, now()) {
				return next(c)
			}

			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}
