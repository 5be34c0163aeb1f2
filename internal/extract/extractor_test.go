package extract

import (
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/listing"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

const searchURL = "https://www.ebay.com/sch/i.html?_nkw=gba&LH_Auction=1"

const itemPage = `<html><body><ul class="srp-results">
<li class="s-item" data-listingid="111">
	<div class="s-item__image"><img class="s-item__image-img" src="https://i.ebayimg.com/images/g/abc/s-l140.jpg"></div>
	<a class="s-item__link" href="https://www.ebay.com/itm/111?_trkparms=x&hash=item1&var=2">
		<h3 class="s-item__title"><span class="LIGHT_HIGHLIGHT">New Listing</span>Nintendo Game Boy Advance   GBA Console</h3>
	</a>
	<span class="s-item__price">$1,049.99</span>
	<span class="s-item__bids">12 bids</span>
	<span class="s-item__time-left">2d 3h left</span>
</li>
<li class="s-item">
	<a class="s-item__link" href="https://ebay.com/itm/123456"><h3 class="s-item__title"><span role="heading">Shop on eBay</span></h3></a>
	<span class="s-item__price">$20.00</span>
</li>
<li class="s-item">
	<img src="data:image/gif;base64,R0lGODlhAQABAAAAACw=">
	<a class="s-item__link" href="/itm/Pokemon-Emerald/222#tab"><h3 class="s-item__title">Pokemon Emerald GBA</h3></a>
	<span class="s-item__price">Price unknown</span>
</li>
<li class="s-item">
	<span class="s-item__sponsored">SPONSORED</span>
	<a class="s-item__link" href="/itm/333"><h3 class="s-item__title">Game Boy Advance SP</h3></a>
</li>
</ul></body></html>`

func newTestExtractor(t *testing.T, options Options) (*Extractor, *telemetry.MemoryAPI) {
	tel := telemetry.NewMemoryAPI()
	extractor, err := New(options, tel)
	require.NoError(t, err)
	return extractor, tel
}

func mustParse(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func page(body string) listing.FetchResult {
	return listing.FetchResult{
		Term:   "gba",
		URL:    searchURL,
		Body:   []byte(body),
		Status: 200,
	}
}

func TestExtract(t *testing.T) {
	options := DefaultOptions()
	options.DefaultImage = "https://example.com/missing.png"
	extractor, tel := newTestExtractor(t, options)

	candidates, report := extractor.Extract(page(itemPage), 3)

	expected := []listing.Candidate{
		{
			ID:        "111",
			Title:     "Nintendo Game Boy Advance GBA Console",
			Price:     listing.Parsed("$1,049.99", 1049.99),
			TimeLeft:  listing.Parsed("2d 3h left", 51*time.Hour),
			Bids:      listing.Parsed("12 bids", 12),
			ImageURL:  "https://i.ebayimg.com/images/g/abc/s-l400.jpg",
			DetailURL: "https://www.ebay.com/itm/111?var=2",
			Term:      "gba",
			Strategy:  "s-item",
			Sequence:  listing.Sequence{Fetch: 3, Node: 0},
		},
		{
			ID:        "222",
			Title:     "Pokemon Emerald GBA",
			Price:     listing.Unparsed[float64]("Price unknown"),
			TimeLeft:  listing.Unparsed[time.Duration](""),
			Bids:      listing.Unparsed[int](""),
			ImageURL:  "https://example.com/missing.png",
			DetailURL: "https://www.ebay.com/itm/Pokemon-Emerald/222",
			Term:      "gba",
			Strategy:  "s-item",
			Sequence:  listing.Sequence{Fetch: 3, Node: 2},
		},
	}
	diff := cmp.Diff(expected, candidates, cmpopts.IgnoreUnexported(listing.Candidate{}))
	require.Empty(t, diff)

	require.Equal(t, Report{
		Strategy:      "s-item",
		Containers:    4,
		Skipped:       1,
		Dropped:       1,
		ParseFailures: 1,
	}, report)
	require.Len(t, tel.Find(telemetry.SeverityDebug, report_extractor_parse), 1)

	for _, c := range candidates {
		_, scored := c.Confidence()
		require.False(t, scored)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	extractor, _ := newTestExtractor(t, DefaultOptions())

	first, firstReport := extractor.Extract(page(itemPage), 0)
	second, secondReport := extractor.Extract(page(itemPage), 0)

	require.Empty(t, cmp.Diff(first, second, cmpopts.IgnoreUnexported(listing.Candidate{})))
	require.Equal(t, firstReport, secondReport)
}

func TestExtractFallbackStrategy(t *testing.T) {
	body := `<ul class="srp-results">
		<li class="s-card" data-listingid="555">
			<a class="su-link" href="https://www.ebay.com/itm/555">
				<div class="s-card__title"><span class="su-styled-text">GBA SP AGS-101</span></div>
			</a>
			<div class="s-card__price">$89.00</div>
			<img class="s-card__image" data-defer-load="https://i.ebayimg.com/images/g/x/s-l300.webp">
		</li>
	</ul>`
	extractor, _ := newTestExtractor(t, DefaultOptions())

	candidates, report := extractor.Extract(page(body), 0)

	require.Equal(t, "s-card", report.Strategy)
	require.Len(t, candidates, 1)
	require.Equal(t, "555", candidates[0].ID)
	require.Equal(t, "GBA SP AGS-101", candidates[0].Title)
	require.Equal(t, "s-card", candidates[0].Strategy)
	require.Equal(t, "https://i.ebayimg.com/images/g/x/s-l640.webp", candidates[0].ImageURL)

	price, ok := candidates[0].Price.Get()
	require.True(t, ok)
	require.Equal(t, 89.0, price)
}

func TestExtractNoStrategyMatches(t *testing.T) {
	body := `<html><body><div class="srp-save-null-search">No exact matches found</div></body></html>`
	extractor, tel := newTestExtractor(t, DefaultOptions())

	candidates, report := extractor.Extract(page(body), 0)

	require.Empty(t, candidates)
	require.True(t, report.Miss)
	warnings := tel.Find(telemetry.SeverityWarning, report_extractor_extract)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Params, ErrNoStrategy)
}

func TestExtractSkipsUnusableResults(t *testing.T) {
	extractor, tel := newTestExtractor(t, DefaultOptions())

	testCases := []struct {
		name   string
		result listing.FetchResult
	}{
		{
			name:   "failed fetch",
			result: listing.FetchResult{Term: "gba", URL: searchURL, Err: errors.New("boom")},
		},
		{
			name:   "error status",
			result: listing.FetchResult{Term: "gba", URL: searchURL, Status: 404, Body: []byte(itemPage)},
		},
		{
			name:   "empty body",
			result: page("  \n "),
		},
	}

	for _, test := range testCases {
		candidates, report := extractor.Extract(test.result, 0)
		require.Nil(t, candidates, test.name)
		require.Equal(t, Report{}, report, test.name)
	}
	require.Empty(t, tel.Reports())
}

func TestExtractMaxPerPage(t *testing.T) {
	var body strings.Builder
	body.WriteString("<ul>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(
			&body,
			`<li class="s-item"><a class="s-item__link" href="/itm/%d"><h3 class="s-item__title">GBA game %d</h3></a></li>`,
			1000+i, i,
		)
	}
	body.WriteString("</ul>")

	extractor, _ := newTestExtractor(t, DefaultOptions())
	candidates, report := extractor.Extract(page(body.String()), 0)

	require.Len(t, candidates, 20)
	require.Equal(t, 30, report.Containers)
	require.Equal(t, "1000", candidates[0].ID)
	require.Equal(t, "1019", candidates[19].ID)
	require.Equal(t, 19, candidates[19].Sequence.Node)
}

func TestCleanTitle(t *testing.T) {
	options := DefaultOptions()
	options.MaxTitleLength = 10
	extractor, _ := newTestExtractor(t, options)

	testCases := []struct {
		input  string
		expect string
	}{
		{input: "  GBA\n\tSP ", expect: "GBA SP"},
		{input: "NEW LISTING GBA", expect: "GBA"},
		{input: "GBA Opens in a new window or tab", expect: "GBA"},
		{input: "Game Boy Advance", expect: "Game Bo..."},
		{input: "Shop on eBay", expect: ""},
	}

	for _, test := range testCases {
		require.Equal(t, test.expect, extractor.cleanTitle(test.input), test.input)
	}
}

func TestMinTitleLength(t *testing.T) {
	options := DefaultOptions()
	options.MinTitleLength = 25
	extractor, _ := newTestExtractor(t, options)

	candidates, report := extractor.Extract(page(itemPage), 0)

	require.Len(t, candidates, 1)
	require.Equal(t, "111", candidates[0].ID)
	require.Equal(t, 2, report.Dropped)
}

func TestNewRejectsInvalidStrategies(t *testing.T) {
	tel := telemetry.NewMemoryAPI()

	_, err := New(Options{}, tel)
	require.Error(t, err)

	_, err = New(Options{Strategies: []Strategy{{
		Name:      "broken",
		Container: "li[",
		Title:     []string{"h3"},
		Link:      []string{"a"},
	}}}, tel)
	require.ErrorContains(t, err, "broken")

	_, err = New(Options{Strategies: []Strategy{{Name: "empty"}}}, tel)
	require.ErrorContains(t, err, "container selector is empty")
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		raw    string
		expect string
		ok     bool
	}{
		{raw: "/itm/1", expect: "https://www.ebay.com/itm/1", ok: true},
		{raw: "//i.ebayimg.com/a.jpg", expect: "https://i.ebayimg.com/a.jpg", ok: true},
		{raw: "http://example.com/x", expect: "http://example.com/x", ok: true},
		{raw: "javascript:void(0)", ok: false},
		{raw: "data:image/gif;base64,AAAA", ok: false},
		{raw: "#", ok: false},
		{raw: "  ", ok: false},
	}

	for _, test := range testCases {
		resolved, ok := resolve(mustParse(t, searchURL), test.raw)
		require.Equal(t, test.ok, ok, test.raw)
		if ok {
			require.Equal(t, test.expect, resolved.String(), test.raw)
		}
	}
}

func TestNormalizeDetailURL(t *testing.T) {
	testCases := []struct {
		raw    string
		expect string
	}{
		{
			raw:    "https://WWW.eBay.com:443/itm/1?_trksid=p1&_trkparms=a&hash=b#x",
			expect: "https://www.ebay.com/itm/1",
		},
		{
			raw:    "https://www.ebay.com/itm/1?var=2&amdata=z&itmmeta=y",
			expect: "https://www.ebay.com/itm/1?var=2",
		},
		{
			raw:    "https://www.ebay.com/itm//1?b=2&a=1",
			expect: "https://www.ebay.com/itm/1?a=1&b=2",
		},
	}

	for _, test := range testCases {
		require.Equal(t, test.expect, normalizeDetailURL(mustParse(t, test.raw)), test.raw)
	}
}

func TestIdentifierFromPath(t *testing.T) {
	testCases := []struct {
		path   string
		expect string
	}{
		{path: "https://www.ebay.com/itm/123456", expect: "123456"},
		{path: "https://www.ebay.com/itm/Game-Boy-Advance/123456", expect: "123456"},
		{path: "https://www.ebay.com/itm/123456/", expect: "123456"},
		{path: "https://www.ebay.com/p/123456", expect: ""},
		{path: "https://www.ebay.com/itm/not-a-number", expect: ""},
	}

	for _, test := range testCases {
		require.Equal(t, test.expect, identifier(nil, nil, mustParse(t, test.path)), test.path)
	}
}
