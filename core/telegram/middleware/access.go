package middleware

import (
	"log/slog"

	"github.com/flexyframe/artbot/core/logger"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether the sender is the configured operator. Without an
// operator nobody is.
func (o AdminOptions) IsAdmin(c tele.Context) bool {
	return o.AdminID != 0 && c.Sender() != nil && c.Sender().ID == o.AdminID
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.IsAdmin(c) {
				logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "admin.reject",
					slog.String("status", "rejected"),
					slog.Bool("admin_configured", opts.AdminID != 0),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
