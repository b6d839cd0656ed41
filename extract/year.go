package extract

import (
	"regexp"
	"strconv"
	"time"
)

const minYear = 1900

var (
	fullYearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)baujahr[:\s]*(?:ca\.?\s*)?(\d{4})`),
		regexp.MustCompile(`(?i)bauzeit[:\s]*(?:ca\.?\s*)?(\d{4})`),
		regexp.MustCompile(`(?i)erbaut[:\s]*(?:im\s+jahr[e]?\s+|ca\.?\s*)?(\d{4})`),
		regexp.MustCompile(`(?i)\b(\d{4})\s*(?:erbaut|gebaut|errichtet)`),
		regexp.MustCompile(`(?i)year\s+built[:\s]*(\d{4})`),
		regexp.MustCompile(`(?i)built\s+in\s+(\d{4})`),
	}
	shortYearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)baujahr[:\s]*'(\d{2})\b`),
		regexp.MustCompile(`(?i)baujahr[:\s]*(\d{2})\b`),
	}
	bareYear = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)
)

// YearParser finds construction years. Two-digit years below Cutoff expand
// to 20xx, the rest to 19xx. Every result lies in [1900, current year].
type YearParser struct {
	Cutoff int
	Now    func() time.Time
}

func NewYearParser(cutoff int) YearParser {
	return YearParser{Cutoff: cutoff, Now: time.Now}
}

func (p YearParser) currentYear() int {
	if p.Now == nil {
		return time.Now().Year()
	}
	return p.Now().Year()
}

// Valid reports whether y is a plausible construction year.
func (p YearParser) Valid(y int) bool {
	return y >= minYear && y <= p.currentYear()
}

// Expand turns a two-digit year into a four-digit one.
func (p YearParser) Expand(yy int) int {
	if yy < p.Cutoff {
		return 2000 + yy
	}
	return 1900 + yy
}

// FromLabeledText applies the labelled year patterns to free text.
func (p YearParser) FromLabeledText(text string) (int, bool) {
	for _, re := range fullYearPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if y, err := strconv.Atoi(m[1]); err == nil && p.Valid(y) {
				return y, true
			}
		}
	}
	for _, re := range shortYearPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			yy, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if y := p.Expand(yy); p.Valid(y) {
				return y, true
			}
		}
	}
	return 0, false
}

// FromValue reads a year from text already known to describe the
// construction year, such as a table cell next to a "Baujahr" label.
func (p YearParser) FromValue(text string) (int, bool) {
	if y, ok := p.FromLabeledText(text); ok {
		return y, true
	}
	for _, m := range bareYear.FindAllStringSubmatch(text, -1) {
		if y, err := strconv.Atoi(m[1]); err == nil && p.Valid(y) {
			return y, true
		}
	}
	if v, ok := ParseNumber(text); ok && v >= 0 && v < 100 && v == float64(int(v)) {
		if y := p.Expand(int(v)); p.Valid(y) {
			return y, true
		}
	}
	return 0, false
}
