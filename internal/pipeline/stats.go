package pipeline

import (
	"sync/atomic"
	"time"
)

// Stats is a snapshot of the counters of a single run.
type Stats struct {
	RunID               string        `json:"run_id"`
	Terms               int           `json:"terms"`
	RequestsIssued      int64         `json:"requests_issued"`
	RequestsFailed      int64         `json:"requests_failed"`
	Retries             int64         `json:"retries"`
	CacheHits           int64         `json:"cache_hits"`
	CandidatesExtracted int64         `json:"candidates_extracted"`
	ExtractionMisses    int64         `json:"extraction_misses"`
	ParseFailures       int64         `json:"parse_failures"`
	BelowThreshold      int64         `json:"below_threshold"`
	DuplicatesRemoved   int64         `json:"duplicates_removed"`
	Timeouts            int64         `json:"timeouts"`
	Results             int64         `json:"results"`
	Elapsed             time.Duration `json:"elapsed"`
}

// counters are shared by every sub-pipeline of a run.
type counters struct {
	requestsIssued      atomic.Int64
	requestsFailed      atomic.Int64
	retries             atomic.Int64
	cacheHits           atomic.Int64
	candidatesExtracted atomic.Int64
	extractionMisses    atomic.Int64
	parseFailures       atomic.Int64
	belowThreshold      atomic.Int64
	duplicatesRemoved   atomic.Int64
	timeouts            atomic.Int64
	results             atomic.Int64
}

func (c *counters) snapshot(runID string, terms int, elapsed time.Duration) Stats {
	return Stats{
		RunID:               runID,
		Terms:               terms,
		RequestsIssued:      c.requestsIssued.Load(),
		RequestsFailed:      c.requestsFailed.Load(),
		Retries:             c.retries.Load(),
		CacheHits:           c.cacheHits.Load(),
		CandidatesExtracted: c.candidatesExtracted.Load(),
		ExtractionMisses:    c.extractionMisses.Load(),
		ParseFailures:       c.parseFailures.Load(),
		BelowThreshold:      c.belowThreshold.Load(),
		DuplicatesRemoved:   c.duplicatesRemoved.Load(),
		Timeouts:            c.timeouts.Load(),
		Results:             c.results.Load(),
		Elapsed:             elapsed,
	}
}
