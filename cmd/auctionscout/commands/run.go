package commands

import (
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/config"
	"auctionscout/internal/pipeline"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type runFlags struct {
	terms      []string
	maxResults int
	threshold  float64
	budget     time.Duration
	json       bool
	out        string
}

var runOpts runFlags

func init() {
	addRunFlags(runCmd, &runOpts)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringArrayVarP(&f.terms, "term", "t", nil, "A search term, repeat for several. Replaces the configured terms.")
	cmd.Flags().IntVar(&f.maxResults, "max-results", 0, "Cap the number of listings, 0 means unlimited.")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "The minimum relevance score in [0, 1].")
	cmd.Flags().DurationVar(&f.budget, "budget", 0, "The time budget of a run, 0 means unbounded.")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the result as JSON instead of a table.")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Also write the result as JSON to this file.")
}

// applyFlags overrides cfg with every flag set on cmd.
func applyFlags(cmd *cobra.Command, f runFlags, cfg config.Config) (config.Config, error) {
	if len(f.terms) > 0 {
		cfg.Terms = f.terms
	}
	if cmd.Flags().Changed("max-results") {
		maxResults := f.maxResults
		cfg.MaxResults = &maxResults
	}
	if cmd.Flags().Changed("threshold") {
		threshold := f.threshold
		cfg.Relevance.Threshold = &threshold
	}
	if cmd.Flags().Changed("budget") {
		budget := config.Duration(f.budget)
		cfg.RunBudget = &budget
	}
	return cfg, cfg.Validate()
}

var runCmd = &cobra.Command{
	Use:   "run [--term <term>]... [--json] [--out <result.json>]",
	Short: "Searches every term once and prints the listings that passed scoring.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg, err = applyFlags(cmd, runOpts, cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		shutdown, err := setupTelemetry(ctx, cfg)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		defer shutdown()

		orchestrator, err := newOrchestrator(cfg, telemetry.SlogAPI{})
		if err != nil {
			return err
		}

		slog.Info("searching", "terms", len(cfg.Terms), "budget", cfg.Pipeline().RunBudget)
		result := orchestrator.Run(ctx, cfg.Terms)
		err = writeResult(cmd, runOpts, result)
		if err != nil {
			return err
		}
		if result.Outcome == pipeline.OutcomeNoData {
			renderFallback(cmd.ErrOrStderr(), cfg.SearchURL, cfg.Terms)
			return exitError{code: 3, reason: "no listings could be retrieved"}
		}
		return nil
	},
}

// writeResult writes result in the format asked for by f.
func writeResult(cmd *cobra.Command, f runFlags, result pipeline.Result) error {
	if f.out != "" {
		contents, err := marshalResult(result)
		if err != nil {
			return err
		}
		err = os.WriteFile(f.out, contents, 0o644)
		if err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		slog.Info("wrote result", "path", f.out)
	}

	w := cmd.OutOrStdout()
	if f.json {
		contents, err := marshalResult(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(contents))
		return nil
	}
	renderResult(w, result, time.Now())
	return nil
}
