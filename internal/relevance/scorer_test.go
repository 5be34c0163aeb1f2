package relevance

import (
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/listing"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestScorer(t *testing.T, options Options) (*Scorer, *telemetry.MemoryAPI) {
	tel := telemetry.NewMemoryAPI()
	scorer, err := New(options, tel)
	require.NoError(t, err)
	return scorer, tel
}

func titled(titles ...string) []listing.Candidate {
	out := make([]listing.Candidate, len(titles))
	for i, title := range titles {
		out[i] = listing.Candidate{Title: title, Sequence: listing.Sequence{Node: i}}
	}
	return out
}

func TestFilterThreshold(t *testing.T) {
	scorer, tel := newTestScorer(t, Options{
		Keywords:   map[string]float64{"advance": 0.6, "handheld": 0.3},
		Saturation: 1,
		Threshold:  0.5,
	})

	kept, rejected := scorer.Filter(titled("GameBoy Advance bundle", "Handheld charger cable"))

	require.Equal(t, 1, rejected)
	require.Len(t, kept, 1)
	require.Equal(t, "GameBoy Advance bundle", kept[0].Title)
	score, ok := kept[0].Confidence()
	require.True(t, ok)
	require.InDelta(t, 0.6, score, 1e-9)

	debug := tel.Find(telemetry.SeverityDebug, report_scorer_filter)
	require.Len(t, debug, 1)
	err, ok := debug[0].Params[1].(error)
	require.True(t, ok)
	require.True(t, errors.Is(err, ErrBelowThreshold))
}

func TestScore(t *testing.T) {
	scorer, _ := newTestScorer(t, DefaultOptions())

	testCases := []struct {
		title  string
		expect float64
	}{
		{title: "Nintendo Game Boy Advance AGB-001 Purple", expect: 1},
		{title: "GBA SP AGS-101 Cobalt", expect: 1},
		{title: "Nintendo   GBA  console", expect: 1},
		{title: "Retro handheld console 400 games", expect: 0.3},
		{title: "Portable gaming handheld console", expect: 0.5},
		{title: "Nintendo Switch OLED", expect: 0},
		// word boundaries
		{title: "GBAX clone", expect: 0},
		{title: "ags101", expect: 0.9},
		// exclusions win over matches
		{title: "GBA SP screen protector 2 pack", expect: 0},
		{title: "Game Boy Advance replacement  shell", expect: 0},
		{title: "", expect: 0},
	}

	for _, test := range testCases {
		require.InDelta(t, test.expect, scorer.Score(listing.Candidate{Title: test.title}), 1e-9, test.title)
	}
}

func TestScoreSaturation(t *testing.T) {
	keywords := map[string]float64{"gba": 0.9, "sp": 0.5, "console": 0.6}

	testCases := []struct {
		saturation float64
		title      string
		expect     float64
	}{
		{saturation: 1, title: "GBA SP console", expect: 1},
		{saturation: 2, title: "GBA SP console", expect: 1},
		{saturation: 2, title: "GBA console", expect: 0.75},
		{saturation: 4, title: "GBA SP", expect: 0.35},
	}

	for _, test := range testCases {
		scorer, _ := newTestScorer(t, Options{Keywords: keywords, Saturation: test.saturation})
		require.InDelta(t, test.expect, scorer.Score(listing.Candidate{Title: test.title}), 1e-9, test.title)
	}
}

func TestFilterKeepsOrder(t *testing.T) {
	scorer, _ := newTestScorer(t, DefaultOptions())

	kept, rejected := scorer.Filter(titled(
		"Game Boy Advance SP",
		"Playstation 2",
		"GBA Pokemon Ruby",
		"GBA",
	))

	require.Equal(t, 1, rejected)
	require.Equal(t, []string{"Game Boy Advance SP", "GBA Pokemon Ruby", "GBA"}, []string{
		kept[0].Title, kept[1].Title, kept[2].Title,
	})
	for _, c := range kept {
		require.GreaterOrEqual(t, c.Score(), scorer.Threshold())
	}
}

func TestNewValidates(t *testing.T) {
	tel := telemetry.NewMemoryAPI()

	testCases := []struct {
		name    string
		options Options
		message string
	}{
		{
			name:    "empty table",
			options: Options{Saturation: 1},
			message: "keyword table is empty",
		},
		{
			name:    "zero weight",
			options: Options{Keywords: map[string]float64{"gba": 0}, Saturation: 1},
			message: `weight of "gba"`,
		},
		{
			name:    "heavy weight",
			options: Options{Keywords: map[string]float64{"gba": 1.5}, Saturation: 1},
			message: `weight of "gba"`,
		},
		{
			name:    "no saturation",
			options: Options{Keywords: map[string]float64{"gba": 1}},
			message: "saturation must be positive",
		},
		{
			name:    "threshold",
			options: Options{Keywords: map[string]float64{"gba": 1}, Saturation: 1, Threshold: 2},
			message: "threshold must be within",
		},
		{
			name:    "blank phrase",
			options: Options{Keywords: map[string]float64{"  ": 1}, Saturation: 1},
			message: "phrase is empty",
		},
	}

	for _, test := range testCases {
		_, err := New(test.options, tel)
		require.ErrorContains(t, err, test.message, test.name)
	}
}
