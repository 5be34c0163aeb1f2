// Package cache memoizes search page fetches for the duration of a run.
package cache

import (
	"auctionscout/internal/components/assert"
	"auctionscout/internal/components/chrono"
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/listing"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	report_cache_evict = "cache.evict"
	report_cache_store = "cache.store"
)

type entry struct {
	result     listing.FetchResult
	insertedAt time.Time
}

// Cache maps a search term to its fetch result. Entries older than the ttl are
// refetched and the least recently used entry is dropped once capacity is exceeded.
type Cache struct {
	entries *lru.Cache[string, entry]
	group   singleflight.Group
	ttl     time.Duration
	clock   chrono.API
	tel     telemetry.API
}

func New(capacity int, ttl time.Duration, clock chrono.API, tel telemetry.API) (*Cache, error) {
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "telemetry")
	assert.Positive(ttl, "ttl")

	tel = telemetry.NewScopedAPI("cache", tel)
	entries, err := lru.NewWithEvict(capacity, func(term string, _ entry) {
		tel.ReportDebug(report_cache_evict, term)
	})
	if err != nil {
		return nil, err
	}

	return &Cache{
		entries: entries,
		ttl:     ttl,
		clock:   clock,
		tel:     tel,
	}, nil
}

// Get returns the cached result of term if it is younger than the ttl.
func (c *Cache) Get(term string) (listing.FetchResult, bool) {
	cached, ok := c.entries.Get(term)
	if !ok {
		return listing.FetchResult{}, false
	}
	if c.clock.Now().Sub(cached.insertedAt) >= c.ttl {
		c.entries.Remove(term)
		return listing.FetchResult{}, false
	}
	return cached.result, true
}

// GetOrFetch returns the cached result of term or calls fetch and stores what it
// returns. Concurrent calls for the same term share a single fetch, hit is false
// only for the caller whose fetch ran. Failed fetches are not stored.
func (c *Cache) GetOrFetch(term string, fetch func() listing.FetchResult) (result listing.FetchResult, hit bool) {
	if cached, ok := c.Get(term); ok {
		return cached, true
	}

	fetched := false
	value, _, _ := c.group.Do(term, func() (any, error) {
		// another caller may have stored the term between Get and Do
		if cached, ok := c.Get(term); ok {
			return cached, nil
		}
		fetched = true
		result := fetch()
		if result.Err == nil {
			c.entries.Add(term, entry{result: result, insertedAt: c.clock.Now()})
			c.tel.ReportDebug(report_cache_store, term, len(result.Body))
		}
		return result, nil
	})

	return value.(listing.FetchResult), !fetched
}

func (c *Cache) Len() int {
	return c.entries.Len()
}
