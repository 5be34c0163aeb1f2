package extract

import (
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Strategy describes one search results layout: how to find listing containers
// and, within a container, each field. Every field holds selectors that are tried
// in order until one yields a value.
type Strategy struct {
	Name      string   `json:"name"`
	Container string   `json:"container"`
	Title     []string `json:"title"`
	Price     []string `json:"price"`
	TimeLeft  []string `json:"time_left"`
	Bids      []string `json:"bids"`
	Image     []string `json:"image"`
	// ImageAttrs are read in order from the image element, lazy loaded images keep
	// their real url in a data attribute.
	ImageAttrs []string `json:"image_attrs"`
	Link       []string `json:"link"`
	// IDAttrs are attributes of the container holding the listing id.
	IDAttrs []string `json:"id_attrs"`
	// Skip drops any container that matches or contains one of these selectors.
	Skip []string `json:"skip"`
}

// DefaultStrategies covers the search result layouts eBay has served, newest last.
var DefaultStrategies = []Strategy{
	{
		Name:      "s-item",
		Container: "li.s-item, div.s-item",
		Title: []string{
			`h3.s-item__title span[role="heading"]`,
			"h3.s-item__title",
			"a.s-item__link span",
			".s-item__title span",
			".s-item__title",
		},
		Price: []string{
			"span.s-item__price span.notranslate",
			"span.s-item__price",
			".s-item__price .notranslate",
			".s-item__price",
		},
		TimeLeft: []string{
			"span.s-item__time-left",
			".s-item__time-left",
			".s-item__time-end",
		},
		Bids:       []string{"span.s-item__bids", ".s-item__bidCount"},
		Image:      []string{"img.s-item__image", "img.s-item__image-img", ".s-item__image img", "img"},
		ImageAttrs: []string{"src", "data-src"},
		Link:       []string{"a.s-item__link[href]", ".s-item__link[href]"},
		IDAttrs:    []string{"data-listingid", "data-itemid"},
		Skip:       []string{".s-item__sponsored", `[aria-label="Sponsored"]`},
	},
	{
		Name:      "s-card",
		Container: "li.s-card",
		Title: []string{
			".s-card__title .su-styled-text",
			".s-card__title",
		},
		Price:      []string{".s-card__price"},
		TimeLeft:   []string{".s-card__time-left", ".s-card__time"},
		Bids:       []string{".s-card__bids", ".s-card__attribute-row .su-styled-text"},
		Image:      []string{"img.s-card__image", "img"},
		ImageAttrs: []string{"src", "data-src", "data-defer-load"},
		Link:       []string{"a.su-link[href]", "a[href*='/itm/']"},
		IDAttrs:    []string{"data-listingid"},
		Skip:       []string{".s-card__sponsored"},
	},
	{
		Name:       "mi-1686",
		Container:  `div[data-view="mi:1686"]`,
		Title:      []string{"h3", ".s-item__title", "a"},
		Price:      []string{".s-item__price", "[class*=price]"},
		TimeLeft:   []string{".s-item__time-left", "[class*=time-left]"},
		Bids:       []string{".s-item__bids", "[class*=bid]"},
		Image:      []string{"img"},
		ImageAttrs: []string{"src", "data-src"},
		Link:       []string{"a[href*='/itm/']", "a[href]"},
		IDAttrs:    []string{"data-listingid", "data-itemid"},
	},
	{
		Name:       "srp-river",
		Container:  ".srp-results .s-item, div.srp-river-results div.s-item",
		Title:      []string{".s-item__title", "h3", "a"},
		Price:      []string{".s-item__price"},
		TimeLeft:   []string{".s-item__time-left", ".s-item__time-end"},
		Bids:       []string{".s-item__bids"},
		Image:      []string{"img"},
		ImageAttrs: []string{"src", "data-src"},
		Link:       []string{"a[href*='/itm/']", "a[href]"},
		IDAttrs:    []string{"data-listingid"},
	},
}

// Validate checks that the strategy can locate the required fields and that every
// selector parses.
func (s Strategy) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is empty"))
	}
	if s.Container == "" {
		errs = append(errs, errors.New("container selector is empty"))
	}
	if len(s.Title) == 0 {
		errs = append(errs, errors.New("no title selectors"))
	}
	if len(s.Link) == 0 {
		errs = append(errs, errors.New("no link selectors"))
	}

	selectors := []string{s.Container}
	for _, group := range [][]string{s.Title, s.Price, s.TimeLeft, s.Bids, s.Image, s.Link, s.Skip} {
		selectors = append(selectors, group...)
	}
	for _, selector := range selectors {
		if selector == "" {
			continue
		}
		if _, err := cascadia.ParseGroup(selector); err != nil {
			errs = append(errs, fmt.Errorf("selector %q: %w", selector, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("strategy %q: %w", s.Name, errors.Join(errs...))
	}
	return nil
}
