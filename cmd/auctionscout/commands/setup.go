package commands

import (
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/config"
	"auctionscout/internal/pipeline"
	"auctionscout/internal/transport"
	"auctionscout/lib/restyutil"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

func initSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
}

// loadConfig reads the file given with --config. Without it, the closest
// auctionscout.json5 in the working directory or its parents is used, and the
// defaults when there is none.
func loadConfig() (config.Config, error) {
	if rootCmd.PersistentFlags().Changed("config") {
		return config.Load(configPath)
	}

	cfg, files, err := config.Find(".")
	if err == nil {
		slog.Debug("loaded config", "files", files)
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, err
	}

	slog.Debug("no config file found, using defaults", "name", config.DefaultPath)
	cfg, err = config.WithDefaults(config.Config{})
	if err != nil {
		return config.Config{}, err
	}
	return cfg, cfg.Validate()
}

// setupTelemetry installs the otlp exporters of cfg, the returned function flushes
// and stops them.
func setupTelemetry(ctx context.Context, cfg config.Config) (func(), error) {
	providers, err := telemetry.Setup(ctx, "auctionscout", cfg.Otlp)
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	}, nil
}

func logPhase(event pipeline.PhaseEvent) {
	slog.Debug("phase", "run", event.RunID, "term", event.Term, "phase", event.Phase)
}

func newOrchestrator(cfg config.Config, tel telemetry.API) (*pipeline.Orchestrator, error) {
	pc := cfg.Pipeline()

	opts := []transport.Option{transport.WithTelemetry(tel)}
	if dumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(dumpDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithDump(out))
	}

	return pipeline.New(
		pc,
		pipeline.WithTelemetry(tel),
		pipeline.WithFetcher(transport.New(pc.Transport, opts...)),
		pipeline.WithPhaseHook(logPhase),
	)
}
