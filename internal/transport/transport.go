// Package transport fetches search pages under a process-wide concurrency cap,
// retrying throttled and failed requests with exponential backoff.
package transport

import (
	"auctionscout/internal/components/assert"
	"auctionscout/internal/components/chrono"
	"auctionscout/internal/components/random"
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/listing"
	"auctionscout/lib/restyutil"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	report_transport_fetch = "transport.fetch"
	report_transport_retry = "transport.retry"
)

type Options struct {
	// Concurrency is the maximum number of fetches holding a slot at once.
	Concurrency int
	Backoff     Backoff
	// Delay is waited before every attempt.
	Delay DelayRange
	// RequestsPerSecond limits the request rate across all slots, 0 means unlimited.
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	DialTimeout       time.Duration
	// PoolSize is the number of idle connections kept per host.
	PoolSize     int
	MaxBodyBytes int64
	HeaderSets   []HeaderSet
	// CloudflareBypass wraps the connection pool with a browser-like TLS fingerprint.
	CloudflareBypass bool
}

func DefaultOptions() Options {
	return Options{
		Concurrency: 8,
		Backoff: Backoff{
			MaxRetries: 3,
			Base:       500 * time.Millisecond,
			Ceiling:    10 * time.Second,
			Jitter:     0.1,
		},
		Delay: DelayRange{
			Min: 100 * time.Millisecond,
			Max: 500 * time.Millisecond,
		},
		RequestTimeout: 15 * time.Second,
		DialTimeout:    10 * time.Second,
		PoolSize:       20,
		MaxBodyBytes:   8 << 20,
	}
}

// Transport is safe for concurrent use and meant to be shared by every run of a process.
type Transport struct {
	http    *resty.Client
	slots   *semaphore.Weighted
	headers *headerRotation
	options Options

	clock chrono.API
	rand  random.API
	tel   telemetry.API
	dump  restyutil.Output
}

type Option func(t *Transport)

func WithClock(clock chrono.API) Option {
	return func(t *Transport) {
		t.clock = clock
	}
}

func WithRandom(r random.API) Option {
	return func(t *Transport) {
		t.rand = r
	}
}

func WithTelemetry(tel telemetry.API) Option {
	return func(t *Transport) {
		t.tel = tel
	}
}

// WithDump writes every exchange to out.
func WithDump(out restyutil.Output) Option {
	return func(t *Transport) {
		t.dump = out
	}
}

func New(options Options, opts ...Option) *Transport {
	assert.Positive(options.Concurrency, "concurrency")
	assert.Positive(options.MaxBodyBytes, "max body bytes")

	t := &Transport{
		slots:   semaphore.NewWeighted(int64(options.Concurrency)),
		headers: newHeaderRotation(options.HeaderSets),
		options: options,
		clock:   chrono.NewStandardImpl(),
		rand:    random.StandardImpl{},
		tel:     telemetry.SlogAPI{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.tel = telemetry.NewScopedAPI("transport", t.tel)
	t.http = t.newClient()
	return t
}

func (t *Transport) newClient() *resty.Client {
	dialer := &net.Dialer{
		Timeout:   t.options.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	pool := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        t.options.PoolSize,
		MaxIdleConnsPerHost: t.options.PoolSize,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	var roundTripper http.RoundTripper = pool
	if t.options.CloudflareBypass {
		roundTripper = cloudflarebp.AddCloudFlareByPass(pool)
	}

	client := resty.New()
	client.SetTransport(limitBody(roundTripper, t.options.MaxBodyBytes))
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	if t.options.RequestTimeout > 0 {
		client.SetTimeout(t.options.RequestTimeout)
	}

	limit := rate.Inf
	if t.options.RequestsPerSecond > 0 {
		limit = rate.Limit(t.options.RequestsPerSecond)
	}
	// burst of 1 spaces requests evenly instead of letting a slot-sized batch through
	limiter := rate.NewLimiter(limit, 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, t.tel, t.dump)
	return client
}

// Fetch GETs url on behalf of term. Failures never panic or return early, they are
// carried by the Err field of the result as a *Error.
func (t *Transport) Fetch(ctx context.Context, term, url string) listing.FetchResult {
	start := t.clock.Now()
	result := listing.FetchResult{Term: term, URL: url}

	fail := func(err error) listing.FetchResult {
		result.Err = &Error{Term: term, URL: url, Attempts: result.Attempts, Err: err}
		result.Elapsed = t.clock.Now().Sub(start)
		t.tel.ReportWarning(report_transport_fetch, term, result.Err)
		return result
	}

	if err := t.slots.Acquire(ctx, 1); err != nil {
		return fail(err)
	}
	defer t.slots.Release(1)

	state := RetryState{}
	for {
		err := t.clock.Sleep(ctx, t.options.Delay.Pick(t.rand.Float64()))
		if err != nil {
			return fail(err)
		}

		result.Attempts++
		status, body, err := t.do(ctx, url)
		result.Status = status
		if err == nil {
			result.Body = body
			result.Elapsed = t.clock.Now().Sub(start)
			return result
		}
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		if !retryable(err) {
			return fail(err)
		}

		next, ok := t.options.Backoff.Next(state, t.rand.Float64())
		if !ok {
			return fail(err)
		}
		state = next
		t.tel.ReportDebug(report_transport_retry, term, state.Attempt, state.Delay.String(), err)

		err = t.clock.Sleep(ctx, state.Delay)
		if err != nil {
			return fail(err)
		}
	}
}

func (t *Transport) do(ctx context.Context, url string) (int, []byte, error) {
	res, err := t.http.R().
		SetContext(ctx).
		SetHeaders(t.headers.next()).
		Get(url)
	if err != nil {
		status := 0
		if res != nil {
			status = res.StatusCode()
		}
		return status, nil, err
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return res.StatusCode(), res.Body(), &StatusError{Code: res.StatusCode()}
	}
	return res.StatusCode(), res.Body(), nil
}

func retryable(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.RateLimited()
	}
	return !errors.Is(err, ErrBodyTooLarge)
}
