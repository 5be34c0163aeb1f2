package commands

import (
	"auctionscout/internal/listing"
	"auctionscout/internal/pipeline"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxTitleWidth = 60

func marshalResult(result pipeline.Result) ([]byte, error) {
	contents, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return contents, nil
}

func formatPrice(f listing.Field[float64]) string {
	price, ok := f.Get()
	if !ok {
		return "?"
	}
	return fmt.Sprintf("$%.2f", price)
}

func formatBids(f listing.Field[int]) string {
	bids, ok := f.Get()
	if !ok {
		return "?"
	}
	return strconv.Itoa(bids)
}

// formatEnds renders the time left as the local time the auction ends at.
func formatEnds(f listing.Field[time.Duration], now time.Time) string {
	left, ok := f.Get()
	if !ok {
		if f.Raw() == "" {
			return "?"
		}
		return f.Raw()
	}
	ends := now.Add(left)
	if left < 24*time.Hour {
		return fmt.Sprintf("%s (%s)", ends.Format(time.Kitchen), left.Round(time.Minute))
	}
	return ends.Format("Jan 2 3:04PM")
}

func renderListings(w io.Writer, listings []listing.Candidate, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Title", "Price", "Bids", "Ends", "Score", "Link"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: maxTitleWidth},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	for i, c := range listings {
		t.AppendRow(table.Row{
			i + 1,
			c.Title,
			formatPrice(c.Price),
			formatBids(c.Bids),
			formatEnds(c.TimeLeft, now),
			fmt.Sprintf("%.2f", c.Score()),
			c.DetailURL,
		})
	}
	t.Render()
}

func renderStats(w io.Writer, stats pipeline.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("run %s", stats.RunID)
	t.AppendRows([]table.Row{
		{"terms", stats.Terms},
		{"requests", fmt.Sprintf("%d (%d failed, %d retries)", stats.RequestsIssued, stats.RequestsFailed, stats.Retries)},
		{"cache hits", stats.CacheHits},
		{"extracted", stats.CandidatesExtracted},
		{"extraction misses", stats.ExtractionMisses},
		{"parse failures", stats.ParseFailures},
		{"below threshold", stats.BelowThreshold},
		{"duplicates", stats.DuplicatesRemoved},
		{"timeouts", stats.Timeouts},
		{"results", stats.Results},
		{"elapsed", stats.Elapsed.Round(time.Millisecond)},
	})
	t.Render()
}

func renderResult(w io.Writer, result pipeline.Result, now time.Time) {
	switch result.Outcome {
	case pipeline.OutcomeResults:
		renderListings(w, result.Listings, now)
	case pipeline.OutcomeNoMatches:
		fmt.Fprintln(w, "No listing passed the relevance threshold.")
	case pipeline.OutcomeNoData:
		fmt.Fprintln(w, "No listings could be retrieved.")
	}
	renderStats(w, result.Stats)
}

// renderFallback prints the search page of every term so they can be opened by hand.
func renderFallback(w io.Writer, template string, terms []string) {
	fmt.Fprintln(w, "Search directly instead:")
	for _, term := range terms {
		fmt.Fprintf(w, "  %s: %s\n", term, pipeline.SearchURL(template, term))
	}
}
