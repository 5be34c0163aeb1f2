// Package config reads the auctionscout.json5 configuration and turns it into the
// options of each component.
package config

import (
	"auctionscout/internal/components/telemetry"
	"auctionscout/internal/dedupe"
	"auctionscout/internal/extract"
	"auctionscout/internal/pipeline"
	"auctionscout/internal/relevance"
	"auctionscout/internal/transport"
	"auctionscout/lib/configutil"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"dario.cat/mergo"
	"github.com/robfig/cron/v3"
)

const DefaultPath = "auctionscout.json5"

type TransportConfig struct {
	Concurrency int `json:"concurrency"`
	// MaxRetries is a pointer so that 0 can be told apart from unset.
	MaxRetries        *int                  `json:"max_retries"`
	BackoffBase       Duration              `json:"backoff_base"`
	BackoffCeiling    Duration              `json:"backoff_ceiling"`
	Jitter            *float64              `json:"jitter"`
	DelayMin          Duration              `json:"delay_min"`
	DelayMax          Duration              `json:"delay_max"`
	RequestsPerSecond float64               `json:"requests_per_second"`
	RequestTimeout    Duration              `json:"request_timeout"`
	DialTimeout       Duration              `json:"dial_timeout"`
	PoolSize          int                   `json:"pool_size"`
	MaxBodyBytes      int64                 `json:"max_body_bytes"`
	HeaderSets        []transport.HeaderSet `json:"header_sets"`
	CloudflareBypass  bool                  `json:"cloudflare_bypass"`
}

type CacheConfig struct {
	TTL      Duration `json:"ttl"`
	Capacity int      `json:"capacity"`
}

type ExtractConfig struct {
	Strategies     []extract.Strategy `json:"strategies"`
	MinTitleLength int                `json:"min_title_length"`
	MaxTitleLength int                `json:"max_title_length"`
	MaxPerPage     int                `json:"max_per_page"`
	ImageUpgrades  map[string]string  `json:"image_upgrades"`
	DefaultImage   string             `json:"default_image"`
}

type RelevanceConfig struct {
	Keywords   map[string]float64 `json:"keywords"`
	Exclusions []string           `json:"exclusions"`
	Saturation float64            `json:"saturation"`
	Threshold  *float64           `json:"threshold"`
	// SimilarityThreshold enables fuzzy deduplication of titles when positive.
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

type WatchConfig struct {
	// Schedule is a cron expression, descriptors like "@every 15m" are accepted.
	Schedule string `json:"schedule"`
}

type Config struct {
	Terms      []string             `json:"terms"`
	SearchURL  string               `json:"search_url"`
	MaxResults *int                 `json:"max_results"`
	RunBudget  *Duration            `json:"run_budget"`
	Transport  TransportConfig      `json:"transport"`
	Cache      CacheConfig          `json:"cache"`
	Extract    ExtractConfig        `json:"extract"`
	Relevance  RelevanceConfig      `json:"relevance"`
	Watch      WatchConfig          `json:"watch"`
	Otlp       telemetry.OtlpConfig `json:"otlp"`
}

// Fields that are pointers tell an explicit 0 apart from a field left out.
func ptr[T any](v T) *T {
	return &v
}

// deref returns the zero value for nil.
func deref[T any](p *T) T {
	var out T
	if p != nil {
		out = *p
	}
	return out
}

// Default is the configuration used for every field a file leaves out.
func Default() Config {
	p := pipeline.DefaultConfig()
	t := p.Transport
	e := p.Extract
	r := p.Relevance

	return Config{
		Terms:      pipeline.DefaultTerms,
		SearchURL:  p.SearchURL,
		MaxResults: ptr(p.MaxResults),
		RunBudget:  ptr(Duration(p.RunBudget)),
		Transport: TransportConfig{
			Concurrency:    t.Concurrency,
			MaxRetries:     ptr(t.Backoff.MaxRetries),
			BackoffBase:    Duration(t.Backoff.Base),
			BackoffCeiling: Duration(t.Backoff.Ceiling),
			Jitter:         ptr(t.Backoff.Jitter),
			DelayMin:       Duration(t.Delay.Min),
			DelayMax:       Duration(t.Delay.Max),
			RequestTimeout: Duration(t.RequestTimeout),
			DialTimeout:    Duration(t.DialTimeout),
			PoolSize:       t.PoolSize,
			MaxBodyBytes:   t.MaxBodyBytes,
		},
		Cache: CacheConfig{
			TTL:      Duration(p.CacheTTL),
			Capacity: p.CacheCapacity,
		},
		Extract: ExtractConfig{
			Strategies:     e.Strategies,
			MaxTitleLength: e.MaxTitleLength,
			MaxPerPage:     e.MaxPerPage,
			ImageUpgrades:  e.ImageUpgrades,
			DefaultImage:   "https://via.placeholder.com/300x200/f8f9fa/6c757d?text=No+Image",
		},
		Relevance: RelevanceConfig{
			Keywords:   r.Keywords,
			Exclusions: r.Exclusions,
			Saturation: r.Saturation,
			Threshold:  ptr(r.Threshold),
		},
		Watch: WatchConfig{
			Schedule: "@every 15m",
		},
	}
}

// keepSet leaves a configured map or pointer as is. A keyword table from a file
// replaces the default table and an explicit 0 behind a pointer stays 0.
type keepSet struct{}

func (keepSet) Transformer(t reflect.Type) func(dst, src reflect.Value) error {
	if t.Kind() != reflect.Map && t.Kind() != reflect.Ptr {
		return nil
	}
	return func(dst, src reflect.Value) error {
		return nil
	}
}

// WithDefaults fills every zero field of c from Default.
func WithDefaults(c Config) (Config, error) {
	err := mergo.Merge(&c, Default(), mergo.WithTransformers(keepSet{}))
	if err != nil {
		return Config{}, fmt.Errorf("apply config defaults: %w", err)
	}
	return c, nil
}

// Load reads path and its .local override, fills defaults and validates.
func Load(path string) (Config, error) {
	loaded, err := configutil.ReadConfig[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return finish(loaded)
}

// Find is Load for the closest DefaultPath in dir or one of its parents.
func Find(dir string) (Config, []string, error) {
	loaded, err := configutil.ReadRecursively[Config](dir, DefaultPath)
	if err != nil {
		return Config{}, nil, fmt.Errorf("find %s from %s: %w", DefaultPath, dir, err)
	}
	c, err := finish(loaded)
	return c, loaded.Files, err
}

func finish(loaded configutil.Loaded[Config]) (Config, error) {
	c, err := WithDefaults(loaded.Value)
	if err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", strings.Join(loaded.Files, ", "), err)
	}
	return c, nil
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (c Config) Validate() error {
	var errs []error
	if len(c.Terms) == 0 {
		errs = append(errs, errors.New("no search terms"))
	}
	for i, term := range c.Terms {
		if strings.TrimSpace(strings.ReplaceAll(term, "+", " ")) == "" {
			errs = append(errs, fmt.Errorf("term %d is blank", i))
		}
	}
	if c.Transport.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("transport concurrency must be positive, got %d", c.Transport.Concurrency))
	}
	if c.Transport.MaxRetries != nil && *c.Transport.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must not be negative, got %d", *c.Transport.MaxRetries))
	}
	if c.Transport.DelayMax < c.Transport.DelayMin {
		errs = append(errs, fmt.Errorf("delay max %s is below delay min %s", c.Transport.DelayMax, c.Transport.DelayMin))
	}
	if c.Transport.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests per second must not be negative, got %v", c.Transport.RequestsPerSecond))
	}
	if c.Transport.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max body bytes must be positive, got %d", c.Transport.MaxBodyBytes))
	}
	if t := c.Relevance.Threshold; t != nil && (*t < 0 || *t > 1) {
		errs = append(errs, fmt.Errorf("relevance threshold must be within [0, 1], got %v", *t))
	}
	if c.Relevance.SimilarityThreshold < 0 || c.Relevance.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("similarity threshold must be within [0, 1], got %v", c.Relevance.SimilarityThreshold))
	}
	if c.Watch.Schedule != "" {
		if _, err := cronParser.Parse(c.Watch.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("watch schedule: %w", err))
		}
	}
	if err := c.Pipeline().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Pipeline converts c into the orchestrator configuration. Zero values are passed
// through, call it on a config returned by Load or WithDefaults.
func (c Config) Pipeline() pipeline.Config {
	t := c.Transport
	return pipeline.Config{
		SearchURL:     c.SearchURL,
		MaxResults:    deref(c.MaxResults),
		RunBudget:     deref(c.RunBudget).Std(),
		CacheTTL:      c.Cache.TTL.Std(),
		CacheCapacity: c.Cache.Capacity,
		Transport: transport.Options{
			Concurrency: t.Concurrency,
			Backoff: transport.Backoff{
				MaxRetries: deref(t.MaxRetries),
				Base:       t.BackoffBase.Std(),
				Ceiling:    t.BackoffCeiling.Std(),
				Jitter:     deref(t.Jitter),
			},
			Delay: transport.DelayRange{
				Min: t.DelayMin.Std(),
				Max: t.DelayMax.Std(),
			},
			RequestsPerSecond: t.RequestsPerSecond,
			RequestTimeout:    t.RequestTimeout.Std(),
			DialTimeout:       t.DialTimeout.Std(),
			PoolSize:          t.PoolSize,
			MaxBodyBytes:      t.MaxBodyBytes,
			HeaderSets:        t.HeaderSets,
			CloudflareBypass:  t.CloudflareBypass,
		},
		Extract: extract.Options{
			Strategies:     c.Extract.Strategies,
			MinTitleLength: c.Extract.MinTitleLength,
			MaxTitleLength: c.Extract.MaxTitleLength,
			MaxPerPage:     c.Extract.MaxPerPage,
			ImageUpgrades:  c.Extract.ImageUpgrades,
			DefaultImage:   c.Extract.DefaultImage,
		},
		Relevance: relevance.Options{
			Keywords:   c.Relevance.Keywords,
			Exclusions: c.Relevance.Exclusions,
			Saturation: c.Relevance.Saturation,
			Threshold:  deref(c.Relevance.Threshold),
		},
		Dedupe: dedupe.Options{
			SimilarityThreshold: c.Relevance.SimilarityThreshold,
		},
	}
}
