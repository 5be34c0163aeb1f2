// Package extract turns search result pages into candidate listings.
package extract

import (
	"auctionscout/internal/components/assert"
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/listing"
	"auctionscout/lib/htmlutil"
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
)

const (
	report_extractor_extract = "extractor.extract"
	report_extractor_parse   = "extractor.parse"
)

// ErrNoStrategy is reported when no strategy finds a listing container on a page.
// It is a normal outcome for blocked or empty searches, never a failure.
var ErrNoStrategy = errors.New("no selector strategy matched the page")

type Options struct {
	Strategies []Strategy
	// MinTitleLength drops listings with shorter titles, 0 disables the check.
	MinTitleLength int
	// MaxTitleLength truncates longer titles with "...", 0 disables truncation.
	MaxTitleLength int
	// MaxPerPage caps the listings yielded per page, 0 means unlimited.
	MaxPerPage int
	// ImageUpgrades replaces thumbnail size markers in image urls.
	ImageUpgrades map[string]string
	// DefaultImage is used when a listing has no usable image.
	DefaultImage string
}

func DefaultOptions() Options {
	return Options{
		Strategies:     DefaultStrategies,
		MaxTitleLength: 120,
		MaxPerPage:     20,
		ImageUpgrades: map[string]string{
			"s-l140": "s-l400",
			"s-l225": "s-l500",
			"s-l300": "s-l640",
		},
	}
}

// Report summarizes the extraction of one page.
type Report struct {
	Strategy      string
	Containers    int
	Skipped       int
	Dropped       int
	ParseFailures int
	// Miss is set when the page was readable but no strategy matched it.
	Miss bool
}

type Extractor struct {
	options  Options
	upgrades [][2]string
	tel      telemetry.API
}

func New(options Options, tel telemetry.API) (*Extractor, error) {
	assert.NotNil(tel, "telemetry")

	if len(options.Strategies) == 0 {
		return nil, errors.New("extractor: no strategies")
	}
	var errs []error
	for _, s := range options.Strategies {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("extractor: %w", errors.Join(errs...))
	}

	// sorted so that overlapping markers are always replaced in the same order
	upgrades := make([][2]string, 0, len(options.ImageUpgrades))
	for from, to := range options.ImageUpgrades {
		upgrades = append(upgrades, [2]string{from, to})
	}
	sort.Slice(upgrades, func(i, j int) bool {
		return upgrades[i][0] < upgrades[j][0]
	})

	return &Extractor{
		options:  options,
		upgrades: upgrades,
		tel:      telemetry.NewScopedAPI("extract", tel),
	}, nil
}

func (e *Extractor) Strategies() []Strategy {
	return e.options.Strategies
}

// Extract returns the candidates found in res in page order, fetchSeq becomes the
// first component of their discovery sequence. Failed fetches and unreadable
// pages yield no candidates.
func (e *Extractor) Extract(res listing.FetchResult, fetchSeq uint64) ([]listing.Candidate, Report) {
	report := Report{}
	if !res.OK() || len(bytes.TrimSpace(res.Body)) == 0 {
		return nil, report
	}

	base, err := url.Parse(res.URL)
	if err != nil {
		e.tel.ReportWarning(report_extractor_extract, res.Term, fmt.Errorf("parse base url: %w", err))
		return nil, report
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		e.tel.ReportWarning(report_extractor_extract, res.Term, fmt.Errorf("parse html: %w", err))
		return nil, report
	}

	strategy, containers, ok := e.pick(doc)
	if !ok {
		report.Miss = true
		e.tel.ReportWarning(report_extractor_extract, res.Term, ErrNoStrategy)
		return nil, report
	}
	report.Strategy = strategy.Name
	report.Containers = containers.Length()

	candidates := []listing.Candidate{}
	containers.EachWithBreak(func(i int, node *goquery.Selection) bool {
		if e.options.MaxPerPage > 0 && len(candidates) >= e.options.MaxPerPage {
			return false
		}
		if skip(node, strategy.Skip) {
			report.Skipped++
			return true
		}

		candidate, ok := e.candidate(node, strategy, base)
		if !ok {
			report.Dropped++
			return true
		}
		candidate.Term = res.Term
		candidate.Sequence = listing.Sequence{Fetch: fetchSeq, Node: i}

		for _, err := range []error{
			rawErr(candidate.Price.Raw(), candidate.Price.Err()),
			rawErr(candidate.TimeLeft.Raw(), candidate.TimeLeft.Err()),
			rawErr(candidate.Bids.Raw(), candidate.Bids.Err()),
		} {
			if err != nil {
				report.ParseFailures++
				e.tel.ReportDebug(report_extractor_parse, res.Term, candidate.Title, err)
			}
		}

		candidates = append(candidates, candidate)
		return true
	})

	return candidates, report
}

// rawErr ignores parse errors of fields that were absent from the page.
func rawErr(raw string, err error) error {
	if raw == "" {
		return nil
	}
	return err
}

func (e *Extractor) pick(doc *goquery.Document) (Strategy, *goquery.Selection, bool) {
	for _, strategy := range e.options.Strategies {
		containers := doc.Find(strategy.Container)
		if containers.Length() > 0 {
			return strategy, containers, true
		}
	}
	return Strategy{}, nil, false
}

func skip(node *goquery.Selection, selectors []string) bool {
	for _, selector := range selectors {
		if node.Is(selector) || node.Find(selector).Length() > 0 {
			return true
		}
	}
	return false
}

func (e *Extractor) candidate(node *goquery.Selection, s Strategy, base *url.URL) (listing.Candidate, bool) {
	title := e.cleanTitle(htmlutil.FirstText(node, s.Title))
	if title == "" || utf8.RuneCountInString(title) < e.options.MinTitleLength {
		return listing.Candidate{}, false
	}

	detail, ok := resolve(base, htmlutil.FirstAttr(node, s.Link, []string{"href"}))
	if !ok {
		return listing.Candidate{}, false
	}

	image := e.options.DefaultImage
	if resolved, ok := resolve(base, htmlutil.FirstAttr(node, s.Image, s.ImageAttrs)); ok {
		image = e.upgradeImage(resolved.String())
	}

	return listing.Candidate{
		ID:        identifier(node, s.IDAttrs, detail),
		Title:     title,
		Price:     listing.ParsePrice(htmlutil.FirstText(node, s.Price)),
		TimeLeft:  listing.ParseTimeLeft(htmlutil.FirstText(node, s.TimeLeft)),
		Bids:      listing.ParseBids(htmlutil.FirstText(node, s.Bids)),
		ImageURL:  image,
		DetailURL: normalizeDetailURL(detail),
		Strategy:  s.Name,
	}, true
}

var titleNoise = regexp.MustCompile(`(?i)(new listing|shop on ebay|sponsored|opens in a new window or tab)`)

func (e *Extractor) cleanTitle(title string) string {
	title = htmlutil.CleanText(titleNoise.ReplaceAllString(title, " "))
	max := e.options.MaxTitleLength
	if max > 3 && utf8.RuneCountInString(title) > max {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:max-3])) + "..."
	}
	return title
}

func (e *Extractor) upgradeImage(image string) string {
	for _, upgrade := range e.upgrades {
		image = strings.ReplaceAll(image, upgrade[0], upgrade[1])
	}
	return image
}

// resolve makes raw absolute against base, only http(s) urls are usable.
func resolve(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, false
	}
	if resolved.Host == "" {
		return nil, false
	}
	return resolved, true
}

var trackingParams = map[string]bool{
	"hash":     true,
	"amdata":   true,
	"itmmeta":  true,
	"itmprp":   true,
	"_skw":     true,
	"_from":    true,
	"epid":     true,
	"_sacat":   true,
	"mkevt":    true,
	"mkcid":    true,
	"mkrid":    true,
	"campid":   true,
	"toolid":   true,
	"customid": true,
}

func normalizeDetailURL(u *url.URL) string {
	clean := *u
	query := clean.Query()
	for key := range query {
		if trackingParams[key] || strings.HasPrefix(key, "_trk") {
			query.Del(key)
		}
	}
	clean.RawQuery = query.Encode()
	return purell.NormalizeURL(
		&clean,
		purell.FlagsSafe|
			purell.FlagRemoveDotSegments|
			purell.FlagRemoveDuplicateSlashes|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
}

var itemPath = regexp.MustCompile(`^/itm/(?:[^/]+/)?(\d+)/?$`)

func identifier(node *goquery.Selection, attrs []string, detail *url.URL) string {
	for _, attr := range attrs {
		value, ok := node.Attr(attr)
		value = strings.TrimSpace(value)
		if ok && value != "" {
			return value
		}
	}
	groups := itemPath.FindStringSubmatch(detail.Path)
	if len(groups) == 2 {
		return groups[1]
	}
	return ""
}
