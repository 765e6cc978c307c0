package router

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/logger"
	tg "github.com/flexyframe/artbot/core/telegram"
	"github.com/flexyframe/artbot/core/telegram/middleware"
)

// CommandRouteOptions configures the operator guard on commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command. Each one gets a request id,
// panic recovery and a summary line; operator commands are guarded inside
// the logging layer so refusals carry the request id too.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	guard := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	operatorOnly := 0
	for endpoint, def := range cmds {
		name := handlerName(endpoint)
		handler := def.Handler
		h := func(c tele.Context) error { return run(c, name, handler) }
		if def.AdminOnly {
			h = guard(h)
			operatorOnly++
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: h})
	}

	logger.LogEvent(context.Background(), logger.TWire, slog.LevelInfo, "tg.wire",
		slog.String("status", "ok"),
		slog.Int("commands", len(cmds)),
		slog.Int("operator_commands", operatorOnly),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
