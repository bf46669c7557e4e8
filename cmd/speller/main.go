package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/speller/internal/config"
	"github.com/raaihank/speller/internal/etl"
	"github.com/raaihank/speller/internal/logger"
	"github.com/raaihank/speller/internal/patch"
	"github.com/raaihank/speller/internal/speller"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "speller FILE",
		Short: "Spellcheck the text column of a news dataset",
		Long: `Reads semicolon-separated records (id;title;text;cluster;time;publisher),
sends their texts to a spellchecking service in batches and writes the
records back with the suggested corrections applied.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorrect(cmd, configPath, args[0])
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Configuration file path")
	pf.String("lang", "", "Language tag sent to the service")
	pf.String("provider", "", "Spellchecking provider (yandex or languagetool)")
	pf.Int("batch-size", 0, "Texts per service request")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")

	f := root.Flags()
	f.StringP("output", "o", "spelled.csv", "Output file")
	f.StringP("log", "l", "", "Write a log of applied corrections to this file")
	f.IntP("number", "n", 0, "Process only the first N records (0 or less = all)")
	f.BoolP("filter", "f", false, "Process only records that belong to a cluster")

	root.AddCommand(
		newServeCmd(&configPath),
		newStatsCmd(&configPath),
		newCacheCmd(&configPath),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "speller", version)
		},
	}
}

// setup loads configuration and creates the logger shared by every command
func setup(cmd *cobra.Command, configPath string) (*config.Loader, *config.Config, *logger.Logger, error) {
	loader, err := config.NewLoader(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if cfg.Logging.File.Enabled {
		logCfg.File = &logger.FileConfig{Enabled: true, Path: cfg.Logging.File.Path}
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return loader, cfg, log, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runCorrect(cmd *cobra.Command, configPath, inputPath string) error {
	_, cfg, log, err := setup(cmd, configPath)
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

	out := cmd.OutOrStdout()
	progress := speller.MultiProgress(
		speller.TerminalProgress(out),
		speller.LogProgress(log.WithComponent("speller").Logger),
	)

	pipeline := etl.NewPipeline(
		svc.client,
		patch.NewApplier(nil),
		svc.recorder(),
		progress,
		log.WithComponent("etl").Logger,
	)

	result, err := pipeline.ProcessFile(ctx, inputPath, cfg.Run)
	if err != nil {
		log.Error("Correction run failed", zap.String("input", inputPath), zap.Error(err))
		return err
	}

	stats := svc.client.GetStats()
	log.Info("Speller usage",
		zap.String("run_id", result.RunID),
		zap.Int64("requests", stats.Requests),
		zap.Int64("cache_hits", stats.CacheHits),
		zap.Duration("avg_latency", stats.AvgLatency))

	if result.RecordsChecked > 0 {
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "Done.")
	return nil
}
