package commands

import (
	"auctionscout/internal/components/chrono"
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/pipeline"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var (
	watchOpts runFlags
	watchNow  bool
)

func init() {
	addRunFlags(watchCmd, &watchOpts)
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Run once immediately instead of waiting for the first tick.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [--now]",
	Short: "Searches every term on the configured schedule until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg, err = applyFlags(cmd, watchOpts, cfg)
		if err != nil {
			return err
		}
		if cfg.Watch.Schedule == "" {
			return fmt.Errorf("watch needs a schedule in %s", configPath)
		}

		ctx := cmd.Context()
		shutdown, err := setupTelemetry(ctx, cfg)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		defer shutdown()

		tel := telemetry.SlogAPI{}
		telemetry.InstrumentPerfStats(ctx, tel, 15*time.Second)

		orchestrator, err := newOrchestrator(cfg, tel)
		if err != nil {
			return err
		}

		search := func() {
			result := orchestrator.Run(ctx, cfg.Terms)
			if ctx.Err() != nil {
				return
			}
			err := writeResult(cmd, watchOpts, result)
			if err != nil {
				slog.Error("failed to write result", "err", err)
			}
			if result.Outcome == pipeline.OutcomeNoData {
				slog.Warn("no listings could be retrieved", "run", result.Stats.RunID)
			}
		}

		cron := chrono.NewStandardCron(tel)
		err = watch(ctx, cron, cfg.Watch.Schedule, watchNow, search)
		if err != nil {
			return err
		}
		slog.Info("stopped watching")
		return nil
	},
}

// watch schedules search on cron until ctx is done, then waits a bounded time for
// the running search. With now, a first search completes before the schedule
// starts, so it never overlaps a tick.
func watch(ctx context.Context, cron chrono.CronAPI, schedule string, now bool, search func()) error {
	if now {
		search()
		if ctx.Err() != nil {
			cron.Stop()
			return nil
		}
	}

	err := cron.Cron(schedule, search)
	if err != nil {
		cron.Stop()
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	slog.Info("watching", "schedule", schedule)

	<-ctx.Done()
	stopped := cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(10 * time.Second):
		slog.Warn("gave up waiting for the running search")
	}
	return nil
}

