package config

import (
	"auctionscout/internal/pipeline"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestDefaultMatchesPipelineDefaults(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	expected := pipeline.DefaultConfig()
	expected.Extract.DefaultImage = c.Extract.DefaultImage

	diff := cmp.Diff(expected, c.Pipeline())
	require.Empty(t, diff)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "auctionscout.json5", `{
		terms: ["gba+sp", "game boy advance"],
		max_results: 10,
		run_budget: "45s",
		transport: {
			concurrency: 2,
			max_retries: 0,
			backoff_base: 0.25,
			delay_max: "1s",
		},
		relevance: {
			keywords: {"gba": 1},
			threshold: 0,
		},
	}`)

	c, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"gba+sp", "game boy advance"}, c.Terms)
	require.Equal(t, 10, *c.MaxResults)
	require.Equal(t, 45*time.Second, c.RunBudget.Std())

	p := c.Pipeline()
	require.Equal(t, 2, p.Transport.Concurrency)
	require.Equal(t, 0, p.Transport.Backoff.MaxRetries)
	require.Equal(t, 250*time.Millisecond, p.Transport.Backoff.Base)
	require.Equal(t, 10*time.Second, p.Transport.Backoff.Ceiling)
	require.Equal(t, 0.1, p.Transport.Backoff.Jitter)
	require.Equal(t, time.Second, p.Transport.Delay.Max)
	require.Equal(t, 100*time.Millisecond, p.Transport.Delay.Min)
	require.Equal(t, pipeline.DefaultSearchURL, p.SearchURL)

	// a configured table replaces the default one instead of extending it
	require.Equal(t, map[string]float64{"gba": 1}, p.Relevance.Keywords)
	require.Equal(t, 0.0, p.Relevance.Threshold)
	require.Equal(t, 1.0, p.Relevance.Saturation)
	require.NotEmpty(t, p.Relevance.Exclusions)
}

func TestLoadKeepsExplicitZeros(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "auctionscout.json5", `{
		terms: ["gba"],
		max_results: 0,
		run_budget: 0,
	}`)

	c, err := Load(path)
	require.NoError(t, err)

	p := c.Pipeline()
	require.Equal(t, 0, p.MaxResults)
	require.Equal(t, time.Duration(0), p.RunBudget)

	omitted := writeConfig(t, t.TempDir(), "auctionscout.json5", `{terms: ["gba"]}`)
	c, err = Load(omitted)
	require.NoError(t, err)
	require.Equal(t, pipeline.DefaultConfig().MaxResults, c.Pipeline().MaxResults)
	require.Equal(t, pipeline.DefaultConfig().RunBudget, c.Pipeline().RunBudget)
}

func TestLoadLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "auctionscout.json5", `{max_results: 10, watch: {schedule: "@hourly"}}`)
	writeConfig(t, dir, "auctionscout.local.json5", `{max_results: 3}`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, *c.MaxResults)
	require.Equal(t, "@hourly", c.Watch.Schedule)
}

func TestLoadExample(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "auctionscout.example.json5"))
	require.NoError(t, err)
	require.Len(t, c.Terms, 4)
	require.Equal(t, 0.9, c.Relevance.Keywords["gba"])
	require.Equal(t, "@every 15m", c.Watch.Schedule)
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, DefaultPath, `{terms: ["gba sp"], max_results: 7}`)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	c, files, err := Find(nested)
	require.NoError(t, err)
	require.Equal(t, []string{path}, files)
	require.Equal(t, []string{"gba sp"}, c.Terms)
	require.Equal(t, 7, c.Pipeline().MaxResults)

	_, _, err = Find(t.TempDir())
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "auctionscout.json5"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		modify  func(c *Config)
		message string
	}{
		{
			name:    "blank term",
			modify:  func(c *Config) { c.Terms = []string{"gba", " + "} },
			message: "term 1 is blank",
		},
		{
			name:    "delay range",
			modify:  func(c *Config) { c.Transport.DelayMin = Duration(time.Second) },
			message: "delay max",
		},
		{
			name:    "schedule",
			modify:  func(c *Config) { c.Watch.Schedule = "every now and then" },
			message: "watch schedule",
		},
		{
			name:    "search url",
			modify:  func(c *Config) { c.SearchURL = "https://www.ebay.com/sch/i.html" },
			message: "placeholder",
		},
		{
			name:    "similarity",
			modify:  func(c *Config) { c.Relevance.SimilarityThreshold = 1.5 },
			message: "similarity threshold",
		},
		{
			name: "threshold",
			modify: func(c *Config) {
				threshold := 1.5
				c.Relevance.Threshold = &threshold
			},
			message: "relevance threshold",
		},
		{
			name: "negative retries",
			modify: func(c *Config) {
				retries := -1
				c.Transport.MaxRetries = &retries
			},
			message: "max retries",
		},
	}

	for _, test := range testCases {
		c := Default()
		test.modify(&c)
		require.ErrorContains(t, c.Validate(), test.message, test.name)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	testCases := []struct {
		input  string
		expect time.Duration
		err    bool
	}{
		{input: `"1m30s"`, expect: 90 * time.Second},
		{input: `'250ms'`, expect: 250 * time.Millisecond},
		{input: `2`, expect: 2 * time.Second},
		{input: `0.5`, expect: 500 * time.Millisecond},
		{input: `"soon"`, err: true},
		{input: `true`, err: true},
	}

	for _, test := range testCases {
		var d Duration
		err := d.UnmarshalJSON([]byte(test.input))
		if test.err {
			require.Error(t, err, test.input)
			continue
		}
		require.NoError(t, err, test.input)
		require.Equal(t, test.expect, d.Std(), test.input)
	}
}
