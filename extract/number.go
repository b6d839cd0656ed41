package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var numberToken = regexp.MustCompile(`\d+(?:[.,'\x{00a0}\x{202f}]\d+)*`)

// ParseNumber reads the first number in text. Both "." and "," are accepted
// as either thousands or decimal separator: when both occur the later one is
// the decimal point, a lone separator repeated or followed by exactly three
// digits groups thousands, anything else is a decimal point.
func ParseNumber(text string) (float64, bool) {
	tok := numberToken.FindString(text)
	if tok == "" {
		return 0, false
	}
	return parseToken(tok)
}

func parseToken(tok string) (float64, bool) {
	tok = strings.NewReplacer("'", "", "\u00a0", "", "\u202f", "").Replace(tok)

	dots := strings.Count(tok, ".")
	commas := strings.Count(tok, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(tok, ",") > strings.LastIndex(tok, ".") {
			tok = strings.ReplaceAll(tok, ".", "")
			tok = strings.Replace(tok, ",", ".", 1)
		} else {
			tok = strings.ReplaceAll(tok, ",", "")
		}
	case commas > 0:
		tok = resolveSingle(tok, ",", commas)
	case dots > 0:
		tok = resolveSingle(tok, ".", dots)
	}

	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func resolveSingle(tok, sep string, count int) string {
	if count > 1 {
		return strings.ReplaceAll(tok, sep, "")
	}
	idx := strings.Index(tok, sep)
	if len(tok)-idx-1 == 3 {
		return strings.ReplaceAll(tok, sep, "")
	}
	return strings.Replace(tok, sep, ".", 1)
}

var priceToken = regexp.MustCompile(`(?i)(\d+(?:[.,'\x{00a0}\x{202f}]\d+)*)\s*(tsd\.?|k|mio\.?|mill?\.?|m)?`)

// ParsePrice reads a monetary amount, honouring "k"/"Tsd." and "M"/"Mio."
// suffixes. Text marking the price as on request yields no value.
func ParsePrice(text string) (float64, bool) {
	if IsPriceOnRequest(text) {
		return 0, false
	}
	for _, m := range priceToken.FindAllStringSubmatchIndex(text, -1) {
		v, ok := parseToken(text[m[2]:m[3]])
		if !ok {
			continue
		}
		if m[4] >= 0 && suffixStandsAlone(text, m[5]) {
			switch strings.ToLower(text[m[4]:m[5]])[0] {
			case 'k', 't':
				v *= 1_000
			case 'm':
				v *= 1_000_000
			}
		}
		return v, true
	}
	return 0, false
}

// suffixStandsAlone rejects a suffix that is really the start of a unit such
// as "m²" or a longer word.
func suffixStandsAlone(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	rest := text[end:]
	if strings.HasPrefix(rest, "²") || strings.HasPrefix(rest, "2") || strings.HasPrefix(rest, "³") {
		return false
	}
	c := rest[0]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z')
}

// IsPriceOnRequest reports price text such as "Preis auf Anfrage".
func IsPriceOnRequest(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "anfrage") || strings.Contains(lower, "on request")
}

func inRange(v, min, max float64) bool {
	return v >= min && v <= max
}
