package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/flexyframe/artbot/core/telegram"
	"github.com/flexyframe/artbot/core/telegram/callbacks"
	"github.com/flexyframe/artbot/core/telegram/middleware"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + handlerName(key)

		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			h = reg.CallbackNotFound()
			if h == nil {
				h = opts.NotFound
			}
			if h == nil {
				h = func(tele.Context) error { return nil }
			}
			return run(c, name, h, slog.String("cb_key", key), slog.String("reason", "not_found"))
		}

		err := run(c, name, h, slog.String("cb_key", key))
		if !callbacks.Answered(c) {
			_ = callbacks.Answer(c, "")
		}
		return err
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
