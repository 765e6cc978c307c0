package middleware

import (
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ReplyTallyMiddleware gives every update a fresh reply tally, read back by
// the handler summary line.
func ReplyTallyMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		tghelpers.TrackReplies(c)
		return next(c)
	}
}
