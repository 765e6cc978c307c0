package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
)

const logContextKey = "log_ctx"

// BuildContext returns the logging context of the current update: request
// id plus update, user and chat ids. It is built once and cached on c, so
// every line logged for one update shares the rid.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(logContextKey).(context.Context); ok {
		return ctx
	}
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	ctx := logger.WithRID(context.Background(), logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	c.Set(logContextKey, ctx)
	return ctx
}

// WithHandler tags the update's context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler != "" {
		ctx = logger.WithHandler(ctx, handler)
		c.Set(logContextKey, ctx)
	}
	return ctx
}
