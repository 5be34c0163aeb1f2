package commands

import (
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/extract"
	"auctionscout/internal/listing"
	"auctionscout/internal/relevance"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var strategiesBase string

func init() {
	strategiesCmd.Flags().StringVar(&strategiesBase, "base", "https://www.ebay.com/sch/i.html", "The url relative links of a saved page are resolved against.")
	rootCmd.AddCommand(strategiesCmd)
}

func renderStrategies(w io.Writer, strategies []extract.Strategy) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Name", "Container", "Title", "Price", "Skip"})
	for i, s := range strategies {
		t.AppendRow(table.Row{
			i + 1,
			s.Name,
			s.Container,
			len(s.Title),
			len(s.Price),
			strings.Join(s.Skip, ", "),
		})
	}
	t.Render()
}

func renderReport(w io.Writer, report extract.Report) {
	if report.Miss {
		fmt.Fprintln(w, "No strategy matched the page.")
		return
	}
	fmt.Fprintf(
		w,
		"strategy %s: %d containers, %d skipped, %d dropped, %d parse failures\n",
		report.Strategy, report.Containers, report.Skipped, report.Dropped, report.ParseFailures,
	)
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies [saved-search-page.html]",
	Short: "Lists the extraction strategies, or checks them against a saved search page.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pc := cfg.Pipeline()
		tel := telemetry.SlogAPI{}

		extractor, err := extract.New(pc.Extract, tel)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(args) == 0 {
			renderStrategies(w, extractor.Strategies())
			return nil
		}

		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		candidates, report := extractor.Extract(listing.FetchResult{
			Term:   args[0],
			URL:    strategiesBase,
			Body:   body,
			Status: http.StatusOK,
		}, 0)
		renderReport(w, report)
		if len(candidates) == 0 {
			return nil
		}

		scorer, err := relevance.New(pc.Relevance, tel)
		if err != nil {
			return err
		}
		for i, c := range candidates {
			candidates[i] = c.WithConfidence(scorer.Score(c))
		}
		renderListings(w, candidates, time.Now())
		return nil
	},
}
