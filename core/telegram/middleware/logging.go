package middleware

import (
	"log/slog"
	"maps"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/core/telegram/callbacks"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
)

// seenUpdates remembers recently logged update ids. LoggerMiddleware runs
// both globally and on command routes, and each update is logged once.
type seenUpdates struct {
	mu  sync.Mutex
	ttl time.Duration
	at  map[int]time.Time
}

func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.DeleteFunc(s.at, func(_ int, t time.Time) bool { return now.Sub(t) > s.ttl })
	if _, ok := s.at[id]; ok {
		return false
	}
	s.at[id] = now
	return true
}

var receipts = &seenUpdates{ttl: 10 * time.Second, at: make(map[int]time.Time)}

// LoggerMiddleware opens the update's logging context and writes a sampled
// debug receipt for it.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() && receipts.first(c.Update().ID, time.Now()) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("kind", UpdateKind(upd)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		attrs = append(attrs,
			slog.String("username", logger.SanitizeLimit(user.Username, 64)),
			slog.String("lang", user.LanguageCode),
		)
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
	}
	return attrs
}
