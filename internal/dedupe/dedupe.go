// Package dedupe collapses listings discovered more than once in a run.
package dedupe

import (
	"auctionscout/internal/components/assert"
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/listing"
	"errors"
	"fmt"
	"sort"

	"github.com/antzucaro/matchr"
)

const report_deduplicator_dedupe = "deduplicator.dedupe"

var ErrDuplicate = errors.New("duplicate listing")

type Options struct {
	// SimilarityThreshold enables the fuzzy title pass when positive, titles whose
	// Jaro-Winkler similarity reaches it are treated as the same listing.
	SimilarityThreshold float64
}

type Deduplicator struct {
	options Options
	tel     telemetry.API
}

func New(options Options, tel telemetry.API) *Deduplicator {
	assert.NotNil(tel, "telemetry")
	return &Deduplicator{
		options: options,
		tel:     telemetry.NewScopedAPI("dedupe", tel),
	}
}

// Less is the result order: confidence descending, then discovery order.
func Less(a, b listing.Candidate) bool {
	if a.Score() != b.Score() {
		return a.Score() > b.Score()
	}
	return a.Sequence.Before(b.Sequence)
}

type kept struct {
	candidate listing.Candidate
	title     string
}

// Dedupe returns the unique candidates ordered by Less along with the number removed.
// Of two duplicates the one ordered first survives.
func (d *Deduplicator) Dedupe(candidates []listing.Candidate) ([]listing.Candidate, int) {
	sorted := make([]listing.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Less(sorted[i], sorted[j])
	})

	var (
		byID     = map[string]listing.Candidate{}
		hashAny  = map[string]listing.Candidate{}
		hashNoID = map[string]listing.Candidate{}
		survived []kept
		removed  int
	)
	for _, c := range sorted {
		hash := c.ContentHash()
		title := listing.NormalizeTitle(c.Title)

		original, duplicate := d.match(c, hash, title, byID, hashAny, hashNoID, survived)
		if duplicate {
			removed++
			d.tel.ReportDebug(
				report_deduplicator_dedupe,
				fmt.Errorf("%w: %q at %s kept %q at %s", ErrDuplicate, c.Title, c.Sequence, original.Title, original.Sequence),
			)
			continue
		}

		if c.ID != "" {
			byID[c.ID] = c
		} else {
			hashNoID[hash] = c
		}
		hashAny[hash] = c
		survived = append(survived, kept{candidate: c, title: title})
	}

	out := make([]listing.Candidate, len(survived))
	for i, k := range survived {
		out[i] = k.candidate
	}
	return out, removed
}

func (d *Deduplicator) match(
	c listing.Candidate,
	hash, title string,
	byID, hashAny, hashNoID map[string]listing.Candidate,
	survived []kept,
) (listing.Candidate, bool) {
	if c.ID != "" {
		if original, ok := byID[c.ID]; ok {
			return original, true
		}
		if original, ok := hashNoID[hash]; ok {
			return original, true
		}
	} else if original, ok := hashAny[hash]; ok {
		return original, true
	}

	if d.options.SimilarityThreshold <= 0 {
		return listing.Candidate{}, false
	}
	for _, k := range survived {
		if c.ID != "" && k.candidate.ID != "" {
			continue
		}
		if c.Price.IsParsed() != k.candidate.Price.IsParsed() {
			continue
		}
		if matchr.JaroWinkler(title, k.title, false) >= d.options.SimilarityThreshold {
			return k.candidate, true
		}
	}
	return listing.Candidate{}, false
}
