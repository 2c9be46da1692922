package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/chatterbox/internal/app"
	"github.com/vovakirdan/chatterbox/internal/config"
	applog "github.com/vovakirdan/chatterbox/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "chatterbox",
		Short:         "Multi-room chat relay over server-sent events",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, overrides)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to config file")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&overrides.Redis.Addr, "redis-addr", "", "Redis address")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}

func run(parent context.Context, configPath string, overrides config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLogger := applog.New("info", "console")
	cfg, path, err := config.Load(bootLogger, configPath)
	if err != nil {
		bootLogger.Error().Err(err).Msg("failed to load config")
		return err
	}
	cfg.UpdateFrom(overrides)
	if err := cfg.Validate(); err != nil {
		bootLogger.Error().Err(err).Str("config", path).Msg("invalid config")
		return err
	}

	logger := applog.New(cfg.LogLevel, cfg.LogFormat)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize app")
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Str("config", path).
		Int("rate_limit", cfg.RateLimit.Limit).
		Dur("rate_window", cfg.RateLimit.Window).
		Msg("starting chatterbox server")

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
