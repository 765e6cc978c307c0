package router

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/flexyframe/artbot/core/telegram"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
	"github.com/flexyframe/artbot/core/telegram/middleware"
)

// SessionDispatcher routes an update to the handler bound to the sender's
// session state; handled is false when no state applies.
type SessionDispatcher interface {
	Dispatch(c tele.Context) (handled bool, err error)
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing. Session states
// take precedence over commands typed as plain text.
func TextRoutes(sessions SessionDispatcher, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		text := c.Text()
		if !isCommand(text) {
			if handled, err := dispatchSession(c, sessions, "session"); handled {
				return err
			}
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return run(c, handlerName(key), cmd.Handler)
			}
		}
		return runOrSkip(c, "unknown_text", opts.UnknownText)
	}

	docHandler := func(c tele.Context) error {
		if handled, err := dispatchSession(c, sessions, "session_document"); handled {
			return err
		}
		return runOrSkip(c, "unexpected_document", opts.UnknownDocument)
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}

// dispatchSession hands the update to the sender's session handler. A
// dispatch error counts as handled.
func dispatchSession(c tele.Context, sessions SessionDispatcher, name string) (bool, error) {
	if sessions == nil {
		return false, nil
	}
	start := time.Now()
	handled, err := sessions.Dispatch(c)
	if !handled && err == nil {
		return false, nil
	}
	summarize(tghelpers.WithHandler(c, name), c, name, start, outcome{}, err)
	return true, err
}

func runOrSkip(c tele.Context, name string, h tele.HandlerFunc) error {
	if h != nil {
		return run(c, name, h)
	}
	summarize(tghelpers.WithHandler(c, name), c, name, time.Now(), skipped, nil)
	return nil
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}
