// Package relevance scores listing titles against a weighted keyword table.
package relevance

import (
	"auctionscout/internal/components/assert"
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/listing"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const report_scorer_filter = "scorer.filter"

var ErrBelowThreshold = errors.New("score below threshold")

type Options struct {
	// Keywords maps a phrase to its weight in (0, 1].
	Keywords map[string]float64
	// Exclusions are phrases that force a score of 0.
	Exclusions []string
	// Saturation is the summed weight that maps to a score of 1.
	Saturation float64
	Threshold  float64
}

func DefaultOptions() Options {
	return Options{
		Keywords: map[string]float64{
			"gameboy advance":  1.0,
			"game boy advance": 1.0,
			"gba":              0.9,
			"gba sp":           1.0,
			"advance sp":       1.0,
			"nintendo gba":     0.8,
			"ags-001":          0.9,
			"ags-101":          0.9,
			"ags001":           0.9,
			"ags101":           0.9,
			"handheld console": 0.3,
			"portable gaming":  0.2,
		},
		Exclusions: []string{
			"screen protector",
			"replacement shell",
			"case only",
			"box only",
			"manual only",
		},
		Saturation: 1.0,
		Threshold:  0.5,
	}
}

type keyword struct {
	phrase  string
	weight  float64
	pattern *regexp.Regexp
}

type Scorer struct {
	keywords   []keyword
	exclusions []*regexp.Regexp
	saturation float64
	threshold  float64
	tel        telemetry.API
}

func New(options Options, tel telemetry.API) (*Scorer, error) {
	assert.NotNil(tel, "telemetry")

	var errs []error
	if len(options.Keywords) == 0 {
		errs = append(errs, errors.New("keyword table is empty"))
	}
	if options.Saturation <= 0 {
		errs = append(errs, fmt.Errorf("saturation must be positive, got %v", options.Saturation))
	}
	if options.Threshold < 0 || options.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold must be within [0, 1], got %v", options.Threshold))
	}

	keywords := make([]keyword, 0, len(options.Keywords))
	for phrase, weight := range options.Keywords {
		if weight <= 0 || weight > 1 {
			errs = append(errs, fmt.Errorf("weight of %q must be within (0, 1], got %v", phrase, weight))
			continue
		}
		pattern, err := phrasePattern(phrase)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		keywords = append(keywords, keyword{phrase: phrase, weight: weight, pattern: pattern})
	}
	// fixed order keeps the float sum identical between runs
	sort.Slice(keywords, func(i, j int) bool {
		return keywords[i].phrase < keywords[j].phrase
	})

	exclusions := make([]*regexp.Regexp, 0, len(options.Exclusions))
	for _, phrase := range options.Exclusions {
		pattern, err := phrasePattern(phrase)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		exclusions = append(exclusions, pattern)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("scorer: %w", errors.Join(errs...))
	}
	return &Scorer{
		keywords:   keywords,
		exclusions: exclusions,
		saturation: options.Saturation,
		threshold:  options.Threshold,
		tel:        telemetry.NewScopedAPI("relevance", tel),
	}, nil
}

// phrasePattern matches phrase case-insensitively on word boundaries, any run of
// whitespace in the phrase matches any run of whitespace in the title.
func phrasePattern(phrase string) (*regexp.Regexp, error) {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return nil, errors.New("phrase is empty")
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}])` + strings.Join(words, `\s+`) + `(?:$|[^\p{L}\p{N}])`)
}

func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Score returns the relevance of c's title in [0, 1].
func (s *Scorer) Score(c listing.Candidate) float64 {
	for _, exclusion := range s.exclusions {
		if exclusion.MatchString(c.Title) {
			return 0
		}
	}

	sum := 0.0
	for _, k := range s.keywords {
		if k.pattern.MatchString(c.Title) {
			sum += k.weight
		}
	}
	score := sum / s.saturation
	if score > 1 {
		return 1
	}
	return score
}

// Filter scores every candidate and keeps, in order, those at or above the threshold.
func (s *Scorer) Filter(candidates []listing.Candidate) ([]listing.Candidate, int) {
	kept := make([]listing.Candidate, 0, len(candidates))
	rejected := 0
	for _, c := range candidates {
		score := s.Score(c)
		if score < s.threshold {
			rejected++
			s.tel.ReportDebug(
				report_scorer_filter,
				c.Title,
				fmt.Errorf("%w: %.2f < %.2f", ErrBelowThreshold, score, s.threshold),
			)
			continue
		}
		kept = append(kept, c.WithConfidence(score))
	}
	return kept, rejected
}
