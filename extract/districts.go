package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// districtNames maps lower-case Vienna district names to postal codes,
// longest name first.
var districtNames = []struct{ name, code string }{
	{"rudolfsheim-fuenfhaus", "1150"},
	{"rudolfsheim-fünfhaus", "1150"},
	{"innere stadt", "1010"},
	{"leopoldstadt", "1020"},
	{"landstrasse", "1030"},
	{"brigittenau", "1200"},
	{"floridsdorf", "1210"},
	{"landstraße", "1030"},
	{"margareten", "1050"},
	{"josefstadt", "1080"},
	{"alsergrund", "1090"},
	{"donaustadt", "1220"},
	{"mariahilf", "1060"},
	{"favoriten", "1100"},
	{"simmering", "1110"},
	{"ottakring", "1160"},
	{"meidling", "1120"},
	{"hietzing", "1130"},
	{"waehring", "1180"},
	{"doebling", "1190"},
	{"penzing", "1140"},
	{"hernals", "1170"},
	{"währing", "1180"},
	{"döbling", "1190"},
	{"liesing", "1230"},
	{"wieden", "1040"},
	{"neubau", "1070"},
}

var (
	postalCode     = regexp.MustCompile(`\b(1[0-2]\d0)\b`)
	districtNumber = regexp.MustCompile(`(?i)\b(\d{1,2})\.\s*(?:bezirk|,)`)
)

// ValidDistrict reports whether code is one of the 23 Vienna postal codes.
func ValidDistrict(code string) bool {
	n, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return n >= 1010 && n <= 1230 && n%10 == 0
}

// DistrictCode resolves a district from free text: a postal code, an
// ordinal like "7. Bezirk", or a district name.
func DistrictCode(text string) (string, bool) {
	for _, m := range postalCode.FindAllStringSubmatch(text, -1) {
		if ValidDistrict(m[1]) {
			return m[1], true
		}
	}
	if m := districtNumber.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n >= 1 && n <= 23 {
			return strconv.Itoa(1000 + n*10), true
		}
	}
	lower := strings.ToLower(text)
	for _, d := range districtNames {
		if strings.Contains(lower, d.name) {
			return d.code, true
		}
	}
	return "", false
}
