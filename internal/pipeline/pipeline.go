// Package pipeline runs the search terms of a run through fetching, extraction,
// scoring and deduplication.
package pipeline

import (
	"auctionscout/internal/cache"
	"auctionscout/internal/components/chrono"
	"auctionscout/internal/components/random"
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/dedupe"
	"auctionscout/internal/extract"
	"auctionscout/internal/listing"
	"auctionscout/internal/relevance"
	"auctionscout/internal/transport"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_orchestrator_run  = "orchestrator.run"
	report_orchestrator_term = "orchestrator.term"
)

var (
	tracer = otel.Tracer("auctionscout/pipeline")
	meter  = otel.Meter("auctionscout/pipeline")
)

// Fetcher retrieves the search page of a term, *transport.Transport implements it.
type Fetcher interface {
	Fetch(ctx context.Context, term, url string) listing.FetchResult
}

type Config struct {
	// SearchURL is a url template with a {term} placeholder.
	SearchURL string
	// MaxResults caps the final result set, 0 means unlimited.
	MaxResults int
	// RunBudget bounds the wall clock time of a run, 0 means unbounded.
	RunBudget     time.Duration
	CacheTTL      time.Duration
	CacheCapacity int

	Transport transport.Options
	Extract   extract.Options
	Relevance relevance.Options
	Dedupe    dedupe.Options
}

func DefaultConfig() Config {
	return Config{
		SearchURL:     DefaultSearchURL,
		MaxResults:    100,
		RunBudget:     120 * time.Second,
		CacheTTL:      5 * time.Minute,
		CacheCapacity: 1000,
		Transport:     transport.DefaultOptions(),
		Extract:       extract.DefaultOptions(),
		Relevance:     relevance.DefaultOptions(),
	}
}

func (c Config) Validate() error {
	var errs []error
	if !strings.Contains(c.SearchURL, termPlaceholder) {
		errs = append(errs, fmt.Errorf("search url %q has no %s placeholder", c.SearchURL, termPlaceholder))
	}
	if c.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("max results must not be negative, got %d", c.MaxResults))
	}
	if c.RunBudget < 0 {
		errs = append(errs, fmt.Errorf("run budget must not be negative, got %s", c.RunBudget))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL))
	}
	if c.CacheCapacity <= 0 {
		errs = append(errs, fmt.Errorf("cache capacity must be positive, got %d", c.CacheCapacity))
	}
	return errors.Join(errs...)
}

// Result is the immutable outcome of a run.
type Result struct {
	Listings []listing.Candidate `json:"listings"`
	Stats    Stats               `json:"stats"`
	Outcome  Outcome             `json:"outcome"`
}

type instruments struct {
	requests   metric.Int64Counter
	failures   metric.Int64Counter
	cacheHits  metric.Int64Counter
	candidates metric.Int64Counter
	results    metric.Int64Counter
	duration   metric.Float64Histogram
}

func newInstruments() instruments {
	requests, _ := meter.Int64Counter("pipeline.requests")
	failures, _ := meter.Int64Counter("pipeline.requests_failed")
	cacheHits, _ := meter.Int64Counter("pipeline.cache_hits")
	candidates, _ := meter.Int64Counter("pipeline.candidates")
	results, _ := meter.Int64Counter("pipeline.results")
	duration, _ := meter.Float64Histogram("pipeline.run_duration", metric.WithUnit("s"))
	return instruments{
		requests:   requests,
		failures:   failures,
		cacheHits:  cacheHits,
		candidates: candidates,
		results:    results,
		duration:   duration,
	}
}

// Orchestrator holds what every run shares: configuration, the transport and the
// stages. It is safe to call Run concurrently, each run owns its cache and counters.
type Orchestrator struct {
	config    Config
	fetcher   Fetcher
	extractor *extract.Extractor
	scorer    *relevance.Scorer
	dedupe    *dedupe.Deduplicator
	metrics   instruments

	clock chrono.API
	rand  random.API
	tel   telemetry.API
	hook  PhaseHook
}

type Option func(o *Orchestrator)

func WithClock(clock chrono.API) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

func WithRandom(r random.API) Option {
	return func(o *Orchestrator) {
		o.rand = r
	}
}

func WithTelemetry(tel telemetry.API) Option {
	return func(o *Orchestrator) {
		o.tel = tel
	}
}

// WithFetcher replaces the transport built from the configuration.
func WithFetcher(fetcher Fetcher) Option {
	return func(o *Orchestrator) {
		o.fetcher = fetcher
	}
}

func WithPhaseHook(hook PhaseHook) Option {
	return func(o *Orchestrator) {
		o.hook = hook
	}
}

func New(config Config, opts ...Option) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	o := &Orchestrator{
		config:  config,
		metrics: newInstruments(),
		clock:   chrono.NewStandardImpl(),
		rand:    random.StandardImpl{},
		tel:     telemetry.SlogAPI{},
	}
	for _, opt := range opts {
		opt(o)
	}

	var err error
	o.extractor, err = extract.New(config.Extract, o.tel)
	if err != nil {
		return nil, err
	}
	o.scorer, err = relevance.New(config.Relevance, o.tel)
	if err != nil {
		return nil, err
	}
	o.dedupe = dedupe.New(config.Dedupe, o.tel)
	if o.fetcher == nil {
		o.fetcher = transport.New(
			config.Transport,
			transport.WithClock(o.clock),
			transport.WithRandom(o.rand),
			transport.WithTelemetry(o.tel),
		)
	}
	o.tel = telemetry.NewScopedAPI("pipeline", o.tel)

	return o, nil
}

func (o *Orchestrator) Config() Config {
	return o.config
}

// run is the state of a single call to Run.
type run struct {
	id     string
	cache  *cache.Cache
	counts *counters
}

func (o *Orchestrator) transition(r *run, term string, phase Phase) {
	if o.hook != nil {
		o.hook(PhaseEvent{RunID: r.id, Term: term, Phase: phase})
	}
}

// Run searches every term concurrently and returns the deduplicated listings that
// passed scoring. Term failures are counted in the stats, never returned.
func (o *Orchestrator) Run(ctx context.Context, terms []string) Result {
	start := o.clock.Now()

	// capacity is validated in New
	c, err := cache.New(o.config.CacheCapacity, o.config.CacheTTL, o.clock, o.tel)
	if err != nil {
		panic(err)
	}
	r := &run{
		id:     random.ID(),
		cache:  c,
		counts: &counters{},
	}

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", r.id),
		attribute.Int("run.terms", len(terms)),
	))
	defer span.End()

	if o.config.RunBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.RunBudget)
		defer cancel()
	}

	o.transition(r, "", PhaseIdle)
	o.transition(r, "", PhaseFetching)
	span.AddEvent(string(PhaseFetching))

	survivors := make([][]listing.Candidate, len(terms))
	var wg sync.WaitGroup
	for i, term := range terms {
		wg.Add(1)
		go func(i int, term string) {
			defer wg.Done()
			defer func() {
				if recovered := recover(); recovered != nil {
					o.tel.ReportBroken(report_orchestrator_term, term, fmt.Errorf("panic: %v", recovered))
				}
			}()
			survivors[i] = o.runTerm(ctx, r, uint64(i), term)
		}(i, term)
	}
	wg.Wait()

	o.transition(r, "", PhaseDeduplicating)
	span.AddEvent(string(PhaseDeduplicating))

	var pool []listing.Candidate
	for _, s := range survivors {
		pool = append(pool, s...)
	}
	listings, removed := o.dedupe.Dedupe(pool)
	r.counts.duplicatesRemoved.Add(int64(removed))
	if o.config.MaxResults > 0 && len(listings) > o.config.MaxResults {
		listings = listings[:o.config.MaxResults]
	}
	r.counts.results.Add(int64(len(listings)))

	stats := r.counts.snapshot(r.id, len(terms), o.clock.Now().Sub(start))
	outcome := OutcomeResults
	switch {
	case stats.CandidatesExtracted == 0:
		outcome = OutcomeNoData
	case len(listings) == 0:
		outcome = OutcomeNoMatches
	}

	o.transition(r, "", PhaseComplete)
	span.AddEvent(string(PhaseComplete))
	span.SetAttributes(
		attribute.String("run.outcome", string(outcome)),
		attribute.Int64("run.results", stats.Results),
	)
	o.record(ctx, stats, outcome)

	return Result{
		Listings: listings,
		Stats:    stats,
		Outcome:  outcome,
	}
}

func (o *Orchestrator) record(ctx context.Context, stats Stats, outcome Outcome) {
	// the run context may already be past its budget
	ctx = context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	o.metrics.requests.Add(ctx, stats.RequestsIssued, attrs)
	o.metrics.failures.Add(ctx, stats.RequestsFailed, attrs)
	o.metrics.cacheHits.Add(ctx, stats.CacheHits, attrs)
	o.metrics.candidates.Add(ctx, stats.CandidatesExtracted, attrs)
	o.metrics.results.Add(ctx, stats.Results, attrs)
	o.metrics.duration.Record(ctx, stats.Elapsed.Seconds(), attrs)

	o.tel.ReportCount("orchestrator.results", stats.Results)
	o.tel.ReportDebug(
		report_orchestrator_run,
		"run_id", stats.RunID,
		"outcome", string(outcome),
		"requests", stats.RequestsIssued,
		"failed", stats.RequestsFailed,
		"extracted", stats.CandidatesExtracted,
		"results", stats.Results,
		"elapsed", stats.Elapsed.String(),
	)
}

// runTerm is the sub-pipeline of a single term, it returns the candidates that
// passed scoring.
func (o *Orchestrator) runTerm(ctx context.Context, r *run, seq uint64, term string) []listing.Candidate {
	ctx, span := tracer.Start(ctx, "pipeline.term", trace.WithAttributes(
		attribute.String("term", term),
		attribute.Int64("sequence", int64(seq)),
	))
	defer span.End()

	o.transition(r, term, PhaseFetching)
	url := SearchURL(o.config.SearchURL, term)
	res, hit := r.cache.GetOrFetch(term, func() listing.FetchResult {
		return o.fetcher.Fetch(ctx, term, url)
	})
	if hit {
		r.counts.cacheHits.Add(1)
		span.SetAttributes(attribute.Bool("cache.hit", true))
	} else {
		r.counts.requestsIssued.Add(int64(res.Attempts))
		if res.Attempts > 1 {
			r.counts.retries.Add(int64(res.Attempts - 1))
		}
	}
	if !res.OK() {
		if !hit {
			r.counts.requestsFailed.Add(1)
		}
		if errors.Is(res.Err, context.DeadlineExceeded) || errors.Is(res.Err, context.Canceled) {
			r.counts.timeouts.Add(1)
		}
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		o.tel.ReportWarning(report_orchestrator_term, term, res.Status, res.Err)
		return nil
	}

	o.transition(r, term, PhaseExtracting)
	candidates, report := o.extractor.Extract(res, seq)
	r.counts.candidatesExtracted.Add(int64(len(candidates)))
	r.counts.parseFailures.Add(int64(report.ParseFailures))
	if report.Miss {
		r.counts.extractionMisses.Add(1)
	}
	span.SetAttributes(
		attribute.String("extract.strategy", report.Strategy),
		attribute.Int("extract.candidates", len(candidates)),
	)

	o.transition(r, term, PhaseScoring)
	kept, rejected := o.scorer.Filter(candidates)
	r.counts.belowThreshold.Add(int64(rejected))
	span.SetAttributes(attribute.Int("score.kept", len(kept)))

	return kept
}
