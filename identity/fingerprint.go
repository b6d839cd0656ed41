package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"immo_scrooper/models"
)

var (
	streetReplacements = []struct{ full, abbrev string }{
		{"straße", "str"},
		{"strasse", "str"},
		{"gasse", "g"},
		{"platz", "pl"},
		{"allee", "al"},
		{"promenade", "prom"},
		{"ä", "ae"},
		{"ö", "oe"},
		{"ü", "ue"},
		{"ß", "ss"},
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
	doorSuffix      = regexp.MustCompile(`(\d+[a-z]?)(?:\s*/\s*\d+)+`)

	trackingParams = map[string]bool{
		"utm_source": true, "utm_medium": true, "utm_campaign": true,
		"utm_term": true, "utm_content": true, "fbclid": true, "gclid": true,
	}
)

// CanonicalURL lower-cases scheme and host, drops the fragment and tracking
// parameters, and sorts the remaining query so re-crawls map to one key.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		if trackingParams[strings.ToLower(k)] {
			q.Del(k)
		}
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		for _, v := range q[k] {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	u.RawQuery = strings.Join(parts, "&")
	return u.String()
}

// Fingerprint hashes the physical traits of a flat so that the same unit
// listed on two portals collides. It is empty without an address.
func Fingerprint(l *models.NormalizedListing) string {
	if l.Address == nil || *l.Address == "" {
		return ""
	}
	var area, rooms float64
	if l.AreaM2 != nil {
		area = math.Round(*l.AreaM2)
	}
	if l.Rooms != nil {
		rooms = *l.Rooms
	}
	district := ""
	if l.District != nil {
		district = *l.District
	}
	input := fmt.Sprintf("%s|%s|%.0f|%.1f", NormalizeAddress(*l.Address), district, area, rooms)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress reduces a Vienna street address to a comparable form.
// Door numbers after the house number are dropped.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = doorSuffix.ReplaceAllString(addr, "$1")
	for _, r := range streetReplacements {
		addr = strings.ReplaceAll(addr, r.full, r.abbrev)
	}
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	addr = strings.ReplaceAll(addr, "wien", "")
	addr = multiSpaceRegex.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}
