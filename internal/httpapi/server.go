// Package httpapi serves the storefront JSON API and the payment webhook.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/internal/catalog"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/payment"
	"github.com/flexyframe/artbot/internal/service"
)

// OrderService is the subset of the order service the API drives.
type OrderService interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
	Place(ctx context.Context, req service.PlaceRequest) (service.Checkout, error)
	ConfirmPaid(ctx context.Context, id int64) (bool, error)
	ApplyGatewayEvent(ctx context.Context, ev payment.Event) (service.EventOutcome, error)
	GatewayConfigured() bool
}

// Catalog lists paintings.
type Catalog interface {
	All() []catalog.Painting
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the server.
type Options struct {
	Addr           string
	SiteURL        string
	// CORSOrigin defaults to SiteURL.
	CORSOrigin     string
	BotUsername    string
	Version        string
	RequestTimeout time.Duration
	// BotOnline reports whether the Telegram side is running.
	BotOnline      func() bool
	// Notifications reports failed and unreachable message deliveries.
	Notifications func() (failed, unreachable uint64)
}

// Server exposes the HTTP API.
type Server struct {
	orders   OrderService
	catalog  Catalog
	db       Pinger
	allow    *payment.Allowlist
	validate *validatorv10.Validate
	opts     Options
}

const (
	defaultRequestTimeout = 15 * time.Second
	shutdownTimeout       = 10 * time.Second
	maxBodyBytes          = 64 << 10
)

// New builds the server. allow gates the payment webhook.
func New(orders OrderService, cat Catalog, db Pinger, allow *payment.Allowlist, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = opts.SiteURL
	}
	if opts.BotOnline == nil {
		opts.BotOnline = func() bool { return true }
	}
	if opts.Notifications == nil {
		opts.Notifications = func() (uint64, uint64) { return 0, 0 }
	}
	return &Server{
		orders:   orders,
		catalog:  cat,
		db:       db,
		allow:    allow,
		validate: validatorv10.New(),
		opts:     opts,
	}
}

// Routes returns the chi router with all endpoints mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestContext)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(cors(s.opts.CORSOrigin))

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/paintings", s.listPaintings)
		r.Get("/bot-status", s.botStatus)

		r.Route("/order", func(r chi.Router) {
			r.Post("/create", s.createOrder)
			r.Get("/{id}", s.getOrder)
			r.Get("/{id}/status", s.getOrderStatus)
			r.Post("/{id}/paid", s.markPaid)
		})

		r.Post("/webhook/yookassa", s.paymentWebhook)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.opts.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogEvent(ctx, logger.HTTP, slog.LevelInfo, "http.start",
			slog.String("status", "ok"),
			slog.String("listen", s.opts.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.LogEvent(ctx, logger.HTTP, slog.LevelError, "http.start",
				slog.String("status", "failed"),
				slog.String("listen", s.opts.Addr),
				slog.String("err", err.Error()),
			)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogEvent(ctx, logger.HTTP, slog.LevelWarn, "http.stop",
			slog.String("status", "failed"),
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.LogEvent(ctx, logger.HTTP, slog.LevelInfo, "http.stop", slog.String("status", "ok"))
	return nil
}
