package telegram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/flexyframe/artbot/core/config"
	"github.com/flexyframe/artbot/core/logger"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
	"github.com/flexyframe/artbot/core/telegram/netutil"
	tgsender "github.com/flexyframe/artbot/core/telegram/sender"
)

const defaultLongPollTimeout = 10 * time.Second

// Middleware is installed on the whole bot with bot.Use, in slice order.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint: a command, a tele.On* event
// or a callback unique.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions is everything RunTelegram needs. Bot and Dispatcher are built
// from Config when nil.
type RunOptions struct {
	Config     *coreconfig.Config
	Registry   *Registry
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// OnStart runs after routes are installed and before updates flow.
	OnStart func(ctx context.Context, rt Runtime) error
	// OnStop runs once the poller has stopped.
	OnStop func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to the lifecycle hooks.
type Runtime struct {
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram installs the middlewares and routes, publishes the command
// menus and serves updates until ctx is cancelled. Cancellation is a clean
// stop, not an error.
func RunTelegram(ctx context.Context, opts RunOptions) (err error) {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	cfg := opts.Config
	rt := Runtime{Dispatcher: opts.Dispatcher, Registry: cmp.Or(opts.Registry, NewRegistry())}

	bot := opts.Bot
	var built time.Duration
	if bot == nil {
		start := time.Now()
		if bot, err = NewBot(cfg); err != nil {
			return err
		}
		built = time.Since(start)
	}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(tgsender.Options{})
	}
	tghelpers.SetDispatcher(rt.Dispatcher)
	defer func() {
		rt.Dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	announceMode(ctx, bot, built)
	if _, longpoll := bot.Poller.(*tele.LongPoller); longpoll {
		dropWebhook(ctx, bot)
	}

	mws, routes := install(bot, opts.Middlewares, opts.Routes)
	logger.LogEvent(ctx, logger.TWire, slog.LevelDebug, "tg.install",
		slog.String("status", "ok"),
		slog.Int("middlewares", mws),
		slog.Int("routes", routes),
	)
	InitBotCommands(bot, rt.Registry, cfg.Telegram.AdminID)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	serve(ctx, bot)

	if opts.OnStop != nil {
		return opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	return nil
}

// serve blocks until the poller exits on its own or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
	}
}

func install(bot *tele.Bot, mws []Middleware, routes []Route) (int, int) {
	used, bound := 0, 0
	for _, mw := range mws {
		if mw.Use != nil {
			bot.Use(mw.Use)
			used++
		}
	}
	for _, r := range routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
			bound++
		}
	}
	return used, bound
}

func announceMode(ctx context.Context, bot *tele.Bot, built time.Duration) {
	attrs := []slog.Attr{slog.String("status", "ok"), slog.Duration("duration", built)}
	switch p := bot.Poller.(type) {
	case *tele.Webhook:
		attrs = append(attrs, slog.String("mode", coreconfig.RunModeWebhook), slog.String("listen", p.Listen))
		if p.Endpoint != nil {
			attrs = append(attrs, slog.String("public_url", p.Endpoint.PublicURL))
		}
	case *tele.LongPoller:
		attrs = append(attrs, slog.String("mode", coreconfig.RunModeLongpoll), slog.Duration("timeout", p.Timeout))
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "tg.mode", attrs...)
}

// dropWebhook clears a webhook left by a previous deployment; Telegram
// refuses getUpdates while one is set. Pending updates are kept.
func dropWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "tg.webhook.delete",
			slog.String("status", "failed"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "tg.webhook.delete", slog.String("status", "ok"))
}

// NewBot builds a bot with the configured poller and a retrying HTTP client.
// Offline skips the getMe call so tests and CLI tasks need no network.
func NewBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, errors.New("telegram: nil config provided")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:     cfg.Telegram.Token,
		Poller:    newPoller(cfg),
		Client:    netutil.NewHTTPClient(netutil.ClientOptions{}),
		ParseMode: tele.ModeHTML,
		Offline:   cfg.Telegram.Offline,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

// newPoller expects a normalized config: RunMode is one of the two modes.
func newPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	timeout := defaultLongPollTimeout
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		timeout = time.Duration(s) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}
