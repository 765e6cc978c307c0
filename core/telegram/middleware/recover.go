package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
)

// ErrPanic is returned for an update whose handler panicked.
var ErrPanic = errors.New("telegram: handler panicked")

// RecoverMiddleware turns a handler panic into ErrPanic and logs the stack
// under the update's request id.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelError, "tg.panic",
				slog.String("status", "fail"),
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
			err = ErrPanic
		}()
		return next(c)
	}
}
