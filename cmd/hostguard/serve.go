package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/simman/hostguard/internal/config"
	"github.com/simman/hostguard/internal/server"
	"github.com/simman/hostguard/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Long: `Run the gateway. allowed_hosts is read once at startup; edits to routes
in the config file are applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().Bool("no-watch", false, "Do not reload routes when the config file changes")
	return cmd
}

func loggerOptions(cfg config.LoggingConfig) logger.Options {
	return logger.Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	}
}

func loadConfig(cmd *cobra.Command) (string, *config.Config, error) {
	flagPath, _ := cmd.Flags().GetString("config")
	path, err := config.ResolvePath(flagPath)
	if err != nil {
		return "", nil, err
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return path, cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	noWatch, _ := cmd.Flags().GetBool("no-watch")

	configPath, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logger.InitLogger(loggerOptions(cfg.Logging)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Info().
		Str("version", appVersion).
		Str("config", configPath).
		Strs("allowed_hosts", cfg.AllowedHosts).
		Msg("starting hostguard")

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if !noWatch {
		watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) error {
			if err := logger.Reconfigure(loggerOptions(cfg.Logging), loggerOptions(newCfg.Logging)); err != nil {
				return fmt.Errorf("failed to apply logging config: %w", err)
			}
			if err := srv.Reload(newCfg); err != nil {
				return fmt.Errorf("failed to reload server: %w", err)
			}
			cfg = newCfg
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to start config watcher: %w", err)
		}
		defer watcher.Stop()
	}

	log.Info().Msg("hostguard is ready")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
		return err
	}

	log.Info().Msg("hostguard stopped gracefully")
	return nil
}
