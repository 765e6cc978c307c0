// Package app wires storage, the order service, the bot, the HTTP API and
// the maintenance jobs into one runnable process.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/bootstrap"
	"github.com/flexyframe/artbot/core/buildinfo"
	corecmd "github.com/flexyframe/artbot/core/cmd"
	"github.com/flexyframe/artbot/core/logger"
	tg "github.com/flexyframe/artbot/core/telegram"
	"github.com/flexyframe/artbot/core/telegram/router"
	tgsender "github.com/flexyframe/artbot/core/telegram/sender"
	"github.com/flexyframe/artbot/core/telegram/state"
	"github.com/flexyframe/artbot/core/telegram/ui"
	"github.com/flexyframe/artbot/internal/bot"
	"github.com/flexyframe/artbot/internal/catalog"
	"github.com/flexyframe/artbot/internal/config"
	"github.com/flexyframe/artbot/internal/httpapi"
	"github.com/flexyframe/artbot/internal/notify"
	"github.com/flexyframe/artbot/internal/payment"
	"github.com/flexyframe/artbot/internal/repository"
	"github.com/flexyframe/artbot/internal/service"
	"github.com/flexyframe/artbot/internal/sweeper"
)

// Job names as shown to the operator and in logs.
const (
	JobExpiry    = "expiry"
	JobRetention = "retention"
)

// App is the assembled process.
type App struct {
	cfg        *config.Config
	db         *sqlx.DB
	store      *repository.Store
	teleBot    *tele.Bot
	dispatcher *tgsender.Dispatcher
	sessions   state.Manager
	orders     *service.Orders
	handlers   *bot.Bot
	registry   *tg.Registry
	api        *httpapi.Server
	jobs       map[string]*sweeper.Job
	online     atomic.Bool
}

// Bootstrap initialises logging, opens the database, applies migrations and
// backfills order numbers for legacy rows.
func Bootstrap(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Modules: bootstrap.Modules{Seeders: []bootstrap.Seeder{
			bootstrap.SeederFunc{Label: "order_numbers", Fn: backfillOrderNumbers},
		}},
	})
	if err != nil {
		return nil, err
	}
	return res.DB, nil
}

func backfillOrderNumbers(ctx context.Context, db *sqlx.DB) error {
	n, err := repository.New(db).BackfillOrderNumbers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.LogEvent(ctx, logger.SEED, slog.LevelInfo, "seed.order_numbers",
			slog.String("status", "ok"),
			slog.Int("count", n),
		)
	}
	return nil
}

// New bootstraps storage and wires every component. Nothing runs until the
// services are started.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := Bootstrap(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a, err := wire(ctx, cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func wire(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*App, error) {
	cat, err := catalog.Load(cfg.Shop.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	allow, err := payment.NewAllowlist(cfg.Payment.WebhookAllow, cfg.Payment.TrustForwarded)
	if err != nil {
		return nil, fmt.Errorf("webhook allow-list: %w", err)
	}
	teleBot, err := tg.NewBot(cfg.CoreConfig())
	if err != nil {
		return nil, err
	}
	botUsername := cfg.Shop.BotUsername
	if botUsername == "" && teleBot.Me != nil {
		botUsername = teleBot.Me.Username
	}

	a := &App{
		cfg:        cfg,
		db:         db,
		store:      repository.New(db),
		teleBot:    teleBot,
		dispatcher: tgsender.NewDispatcher(tgsender.Options{}),
		registry:   tg.NewRegistry(),
	}
	a.sessions = state.NewManager(state.WithPersister(sessionPersister{store: a.store}))

	notifier := notify.New(notify.BotSender{Bot: teleBot}, a.dispatcher, a.store, cfg.Telegram.AdminID)
	gateway := payment.NewClient(cfg.Payment, cfg.Shop.SiteURL, nil)
	a.orders = service.New(a.store, gateway, notifier, cat, service.Options{
		PaymentWindow: cfg.Sweeper.PaymentWindow,
		SweepBatch:    cfg.Sweeper.BatchSize,
	})

	retention := sweeper.NewRetention(a.store, a.sessions, cfg.Sweeper.OrderRetention, cfg.Sweeper.SessionIdle, nil)
	a.jobs = map[string]*sweeper.Job{
		JobExpiry:    sweeper.NewJob(JobExpiry, cfg.Sweeper.ExpiryInterval, expiryTask(a.orders)),
		JobRetention: sweeper.NewJob(JobRetention, cfg.Sweeper.RetentionInterval, retention.Task()),
	}

	a.handlers = bot.New(a.orders, a.store, cat, a.sessions, bot.Options{
		AdminID:            cfg.Telegram.AdminID,
		SiteURL:            cfg.Shop.SiteURL,
		BotUsername:        botUsername,
		ManualInstructions: cfg.Shop.ManualInstructions,
		ImagesDir:          cfg.Shop.ImagesDir,
		Sweepers:           []bot.Sweeper{a.jobs[JobExpiry], a.jobs[JobRetention]},
	})
	if err := a.handlers.Register(a.registry); err != nil {
		a.dispatcher.Close()
		return nil, fmt.Errorf("register handlers: %w", err)
	}

	a.api = httpapi.New(a.orders, cat, a.store, allow, httpapi.Options{
		Addr:           cfg.HTTP.Addr(),
		SiteURL:        cfg.Shop.SiteURL,
		CORSOrigin:     cfg.HTTP.CORSOrigin,
		BotUsername:    botUsername,
		Version:        buildinfo.Version,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		BotOnline:      a.online.Load,
		Notifications: func() (uint64, uint64) {
			return a.dispatcher.ErrorCount() + notifier.Dropped(), a.dispatcher.UnreachableCount()
		},
	})

	logger.LogEvent(ctx, logger.L, slog.LevelInfo, "app.wired",
		slog.String("component", "app"),
		slog.Bool("payment_gateway", gateway.Configured()),
		slog.Bool("carrier", cfg.Delivery.CarrierConfigured()),
		slog.Bool("admin", cfg.Telegram.AdminID != 0),
		slog.Int("paintings", len(cat.All())),
	)
	return a, nil
}

func expiryTask(orders *service.Orders) sweeper.Task {
	return func(ctx context.Context) ([]slog.Attr, error) {
		rep, err := orders.SweepExpired(ctx)
		return []slog.Attr{
			slog.Int("count", rep.Scanned),
			slog.Int("expired", rep.Expired),
			slog.Int("cancelled", rep.Cancelled),
			slog.Int("reconciled", rep.Reconciled),
			slog.Int("skipped", rep.Skipped),
			slog.Int("failed", rep.Failed),
		}, err
	}
}

// TelegramRunOptions assembles the bot runtime: middlewares, routes and the
// hooks that rehydrate sessions and flag the bot online.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	var fb ui.Fallbacks = a.handlers
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: fb.RejectAdmin,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{NotFound: fb.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(a.sessions, a.registry, router.TextOptions{
		UnknownText:     fb.UnknownText(),
		UnknownDocument: fb.UnknownDocument(),
	})...)
	routes = append(routes, a.handlers.Routes()...)

	mws := tg.DefaultMiddlewares(a.cfg.CoreConfig(), fb.RateLimited)
	mws = append(mws, tg.Middleware{Name: "session", Use: state.WithSession(a.sessions)})

	return tg.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    a.registry,
		Bot:         a.teleBot,
		Dispatcher:  a.dispatcher,
		Middlewares: mws,
		Routes:      routes,
		OnStart: func(ctx context.Context, _ tg.Runtime) error {
			// Conversations resume without their stored state if this fails.
			if _, err := a.sessions.Rehydrate(ctx, time.Now().Add(-a.cfg.Sweeper.SessionIdle)); err != nil {
				logger.LogEvent(ctx, logger.SESS, slog.LevelWarn, "session.rehydrate",
					slog.String("status", "failed"),
					slog.String("err", err.Error()),
				)
			}
			a.online.Store(true)
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			a.online.Store(false)
			return nil
		},
	}, nil
}

// Services returns the HTTP API and the sweepers, run next to the bot.
func (a *App) Services() []corecmd.Service {
	return []corecmd.Service{
		{Name: "http", Run: a.api.Run},
		{Name: "sweepers", Run: a.runJobs},
	}
}

func (a *App) runJobs(ctx context.Context) error {
	for _, j := range a.jobs {
		j.Start(ctx)
	}
	<-ctx.Done()
	for _, j := range a.jobs {
		j.Stop()
	}
	return nil
}

// RunJob runs one sweeper pass now, for the CLI.
func (a *App) RunJob(ctx context.Context, name string) error {
	j, ok := a.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	_, err := j.RunNow(ctx)
	return err
}

// Close flushes queued notifications and closes the database.
func (a *App) Close() error {
	a.dispatcher.Close()
	return a.db.Close()
}

// sessionPersister stores bot sessions in the sessions table.
type sessionPersister struct {
	store *repository.Store
}

func (p sessionPersister) SaveSession(ctx context.Context, rec state.Record) error {
	return p.store.SaveSession(ctx, repository.SessionRecord(rec))
}

func (p sessionPersister) DeleteSession(ctx context.Context, userID int64) error {
	return p.store.DeleteSession(ctx, userID)
}

func (p sessionPersister) LoadSessions(ctx context.Context, since time.Time) ([]state.Record, error) {
	rows, err := p.store.LoadSessions(ctx, since)
	if err != nil {
		return nil, err
	}
	out := make([]state.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, state.Record(r))
	}
	return out, nil
}

func (p sessionPersister) PruneSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	return p.store.PruneSessions(ctx, cutoff)
}
