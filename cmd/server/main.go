package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wireboard-server/internal/app"
	"github.com/vovakirdan/wireboard-server/internal/config"
	applog "github.com/vovakirdan/wireboard-server/internal/log"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wireboard-server: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:   "wireboard-server",
		Short: "Shared whiteboard session server",
		Long: `Runs one shared drawing session over WebSocket.

Configuration is read from defaults, then the YAML file, then WIREBOARD_*
environment variables, then the flags below.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, overrides)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ./config.yaml)")
	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}

func run(parent context.Context, configPath string, overrides config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLogger := applog.New("info")
	cfg, resolved, err := config.Load(bootLogger, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(overrides)

	logger := applog.New(cfg.LogLevel)
	logger.Info().Str("config", resolved).Msg("configuration loaded")

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting wireboard server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
