package transport

import (
	"sync/atomic"
)

// HeaderSet is a group of request headers that look like one browser.
type HeaderSet map[string]string

// DefaultHeaderSets rotate between common desktop browsers. Accept-Encoding is left
// to net/http so compressed bodies are decoded transparently.
var DefaultHeaderSets = []HeaderSet{
	{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	},
	{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.8",
	},
	{
		"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	},
	{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-GB,en;q=0.9",
	},
}

// headerRotation hands out header sets round-robin.
type headerRotation struct {
	sets    []HeaderSet
	counter atomic.Uint64
}

func newHeaderRotation(sets []HeaderSet) *headerRotation {
	if len(sets) == 0 {
		sets = DefaultHeaderSets
	}
	return &headerRotation{sets: sets}
}

func (h *headerRotation) next() map[string]string {
	idx := (h.counter.Add(1) - 1) % uint64(len(h.sets))
	return h.sets[idx]
}
