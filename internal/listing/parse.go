package listing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	thousandsSeparator = regexp.MustCompile(`(\d),(\d{3})`)
	pricePattern       = regexp.MustCompile(`[$]?\d+(\.\d{2})?`)
)

// ParsePrice finds the first amount in raw after removing thousands separators,
// "$1,234.50 to $2,000.00" parses as 1234.5. An amount that does not end where
// the pattern does, like "$7.5" or "1,5", is left unparsed.
func ParsePrice(raw string) Field[float64] {
	text := strings.TrimSpace(raw)
	// applied twice so that runs like 1,234,567 are fully collapsed
	text = thousandsSeparator.ReplaceAllString(text, "$1$2")
	text = thousandsSeparator.ReplaceAllString(text, "$1$2")

	loc := pricePattern.FindStringIndex(text)
	if loc == nil {
		return Unparsed[float64](raw)
	}
	// "$7.5", "$12.999" and "1,5" would otherwise parse as a prefix of the amount
	if loc[1] < len(text) && strings.ContainsRune("0123456789.,", rune(text[loc[1]])) {
		return Unparsed[float64](raw)
	}
	value, err := strconv.ParseFloat(strings.TrimPrefix(text[loc[0]:loc[1]], "$"), 64)
	if err != nil {
		return Unparsed[float64](raw)
	}
	return Parsed(raw, value)
}

// EndingToday is the value "ending today" parses to, the upper bound of what is
// left of a day.
const EndingToday = 24 * time.Hour

var (
	durationComponent = regexp.MustCompile(`(\d+)\s*(d|h|m|s)`)
	durationShape     = regexp.MustCompile(`^(\d+\s*[dhms]\s*)+(left)?$`)
	endingToday       = regexp.MustCompile(`^(ending|ends)\s+today\b`)
)

// ParseTimeLeft parses forms like "2d 3h", "5h 12m left" and "Ending today".
func ParseTimeLeft(raw string) Field[time.Duration] {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return Unparsed[time.Duration](raw)
	}
	if endingToday.MatchString(text) {
		return Parsed(raw, EndingToday)
	}
	if !durationShape.MatchString(text) {
		return Unparsed[time.Duration](raw)
	}

	var total time.Duration
	for _, group := range durationComponent.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(group[1])
		if err != nil {
			return Unparsed[time.Duration](raw)
		}
		switch group[2] {
		case "d":
			total += time.Duration(n) * 24 * time.Hour
		case "h":
			total += time.Duration(n) * time.Hour
		case "m":
			total += time.Duration(n) * time.Minute
		case "s":
			total += time.Duration(n) * time.Second
		}
	}
	return Parsed(raw, total)
}

var bidPattern = regexp.MustCompile(`(?i)^(\d+)\s+bids?\b`)

// ParseBids parses "5 bids" or "1 bid".
func ParseBids(raw string) Field[int] {
	text := strings.TrimSpace(thousandsSeparator.ReplaceAllString(raw, "$1$2"))
	groups := bidPattern.FindStringSubmatch(text)
	if len(groups) < 2 {
		return Unparsed[int](raw)
	}
	n, err := strconv.Atoi(groups[1])
	if err != nil {
		return Unparsed[int](raw)
	}
	return Parsed(raw, n)
}
