package pipeline

import (
	"net/url"
	"strings"
)

const (
	DefaultSearchURL = "https://www.ebay.com/sch/i.html?_nkw={term}&LH_Auction=1&_sop=1"
	termPlaceholder  = "{term}"
)

// DefaultTerms are searched when no term is configured.
var DefaultTerms = []string{
	"gameboy+advance+console",
	"gba+console+sp",
	"game+boy+advance",
	"nintendo+gba",
}

// SearchURL fills the term placeholder of template with the escaped query, a "+"
// in term is read as a space.
func SearchURL(template, term string) string {
	query := strings.Join(strings.Fields(strings.ReplaceAll(term, "+", " ")), " ")
	return strings.ReplaceAll(template, termPlaceholder, url.QueryEscape(query))
}
