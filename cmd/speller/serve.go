package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/speller/internal/config"
	"github.com/raaihank/speller/internal/server"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Serve corrections over HTTP with a live WebSocket event stream",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configPath)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP port")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	loader, cfg, log, err := setup(cmd, configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	svc, err := initializeServices(cfg, log)
	if err != nil {
		log.Error("Failed to initialize services", zap.Error(err))
		return err
	}
	defer svc.cleanup()

	deps := server.Deps{Checker: svc.client, Version: version}
	if svc.store != nil {
		deps.Audit = svc.store
	}
	srv := server.New(cfg, log, deps)

	if loader.ConfigFile() != "" {
		loader.Watch(func(updated *config.Config) {
			if err := log.SetLevel(updated.Logging.Level); err != nil {
				log.Warn("Ignoring invalid log level", zap.Error(err))
				return
			}
			log.Info("Configuration reloaded", zap.String("log_level", updated.Logging.Level))
		}, func(err error) {
			log.Warn("Ignoring invalid configuration change", zap.Error(err))
		})
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("Server failed", zap.Error(err))
		}
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}

	log.Info("Server stopped")
	return nil
}
