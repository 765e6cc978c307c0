package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flexyframe/artbot/core/buildinfo"
	corecmd "github.com/flexyframe/artbot/core/cmd"
	"github.com/flexyframe/artbot/core/logger"
	"github.com/flexyframe/artbot/internal/app"
	"github.com/flexyframe/artbot/internal/config"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "artbot",
		Short:         "Telegram storefront for paintings",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (overrides $"+configEnvVar+")")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runnerOptions() corecmd.Options {
	return corecmd.Options{
		ConfigPath:        configPath,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.New(ctx, cfg.(*config.Config))
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the HTTP API and the sweepers",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(*cobra.Command, []string) error {
	return corecmd.Run(runnerOptions())
}

// loadOffline loads configuration for one-shot tasks that need no Telegram session.
func loadOffline() (*config.Config, error) {
	cfg, err := config.Load(runnerOptions().ResolveConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.Telegram.Offline = true
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and backfill order numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadOffline()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			db, err := app.Bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", cfg.Database.Path)
			return db.Close()
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sweep {" + app.JobExpiry + "|" + app.JobRetention + "}",
		Short:     "Run one maintenance pass and exit",
		Long:      "expiry closes unpaid orders past the payment window; retention archives old orders and drops idle sessions.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{app.JobExpiry, app.JobRetention},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOffline()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if err := a.RunJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: done\n", args[0])
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}
