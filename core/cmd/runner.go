package cmd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/flexyframe/artbot/core/config"
	"github.com/flexyframe/artbot/core/logger"
	coretelegram "github.com/flexyframe/artbot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// Service runs next to the bot until ctx is done.
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
	// Services are started with the bot; the first to stop stops the rest.
	Services() []Service
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// ResolveConfigPath picks the explicit path, then the env variable
// (CONFIG_PATH unless ConfigEnvVar says otherwise), then the default.
func (o Options) ResolveConfigPath() string {
	return cmp.Or(o.ConfigPath, os.Getenv(cmp.Or(o.ConfigEnvVar, "CONFIG_PATH")), o.DefaultConfigPath)
}

// Run loads configuration, bootstraps the app and runs the bot next to its
// services until SIGINT or SIGTERM.
func Run(opts Options) error {
	switch {
	case opts.LoadConfig == nil:
		return errors.New("cmd: LoadConfig is required")
	case opts.Bootstrap == nil:
		return errors.New("cmd: Bootstrap is required")
	}

	startedAt := time.Now()
	cfgPath := opts.ResolveConfigPath()
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: load config %s: %w", cfgPath, err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	announceLifecycle(&runOpts, cfgPath, startedAt)

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	services := append([]Service{{Name: "telegram", Run: func(ctx context.Context) error {
		return run(ctx, runOpts)
	}}}, application.Services()...)
	return RunServices(ctx, services)
}

// announceLifecycle logs readiness after the app's own OnStart hook and the
// shutdown before its OnStop hook.
func announceLifecycle(opts *coretelegram.RunOptions, cfgPath string, startedAt time.Time) {
	onStart, onStop := opts.OnStart, opts.OnStop
	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.LogEvent(ctx, logger.L, slog.LevelInfo, "app.ready",
			slog.String("component", "app"),
			slog.String("config", cfgPath),
			slog.Duration("startup", time.Since(startedAt)),
		)
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.LogEvent(ctx, logger.L, slog.LevelInfo, "app.shutdown", slog.String("component", "app"))
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
}

// RunServices runs every service until ctx is done or one of them returns.
// The first error is returned.
func RunServices(ctx context.Context, services []Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range services {
		if s.Run == nil {
			continue
		}
		g.Go(func() error {
			defer cancel()
			if err := s.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", s.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
