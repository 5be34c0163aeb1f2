package listing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FetchResult is the outcome of fetching the search page of one term.
type FetchResult struct {
	Term     string
	URL      string
	Body     []byte
	Status   int
	Elapsed  time.Duration
	Attempts int
	Err      error
}

func (r FetchResult) OK() bool {
	return r.Err == nil && r.Status >= 200 && r.Status < 300
}

// Sequence orders candidates by discovery, Fetch is assigned when a term's fetch
// is issued and Node is the position of the listing within the page.
type Sequence struct {
	Fetch uint64 `json:"fetch"`
	Node  int    `json:"node"`
}

func (s Sequence) Before(other Sequence) bool {
	if s.Fetch != other.Fetch {
		return s.Fetch < other.Fetch
	}
	return s.Node < other.Node
}

func (s Sequence) String() string {
	return fmt.Sprintf("%d.%d", s.Fetch, s.Node)
}

// Candidate is a listing extracted from a search page that has not been accepted yet.
type Candidate struct {
	ID        string               `json:"id,omitempty"`
	Title     string               `json:"title"`
	Price     Field[float64]       `json:"price"`
	TimeLeft  Field[time.Duration] `json:"time_left"`
	Bids      Field[int]           `json:"bids"`
	ImageURL  string               `json:"image_url,omitempty"`
	DetailURL string               `json:"detail_url"`
	Term      string               `json:"term"`
	Strategy  string               `json:"strategy"`
	Sequence  Sequence             `json:"sequence"`

	confidence float64
	scored     bool
}

// Confidence returns the relevance score and whether it was assigned.
func (c Candidate) Confidence() (float64, bool) {
	return c.confidence, c.scored
}

// Score returns the relevance score, 0 if it was never assigned.
func (c Candidate) Score() float64 {
	return c.confidence
}

// WithConfidence returns a copy of c carrying the given score, it panics if c was
// already scored.
func (c Candidate) WithConfidence(score float64) Candidate {
	if c.scored {
		panic(fmt.Sprintf("candidate %q scored twice", c.Title))
	}
	c.confidence = score
	c.scored = true
	return c
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeTitle lower-cases a title and collapses its whitespace.
func NormalizeTitle(title string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), " ")
}

// ContentHash identifies a listing by its normalized title and parsed price.
func (c Candidate) ContentHash() string {
	key := NormalizeTitle(c.Title) + "|"
	if price, ok := c.Price.Get(); ok {
		key += fmt.Sprintf("%.2f", price)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (c Candidate) MarshalJSON() ([]byte, error) {
	type plain Candidate
	return json.Marshal(struct {
		plain
		Confidence float64 `json:"confidence"`
	}{plain: plain(c), Confidence: c.confidence})
}
