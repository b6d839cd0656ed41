package config

import (
	"testing"
	"time"
)

func TestParseSiteConfig_Defaults(t *testing.T) {
	site, err := ParseSiteConfig([]byte("id: willhaben\nbase_url: https://www.willhaben.at\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if site.Source != "willhaben" {
		t.Fatalf("expected source to default to id, got %s", site.Source)
	}
	if site.Fetcher != "http" {
		t.Fatalf("expected http fetcher, got %s", site.Fetcher)
	}
	if site.MaxPages != 3 {
		t.Fatalf("expected 3 max pages, got %d", site.MaxPages)
	}
	if site.Timeout() != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", site.Timeout())
	}
	if site.RateLimit(1500) != 1500*time.Millisecond {
		t.Fatalf("expected fallback rate limit, got %s", site.RateLimit(1500))
	}
}

func TestParseSiteConfig_MissingID(t *testing.T) {
	if _, err := ParseSiteConfig([]byte("name: nothing\n")); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestParseCriteria_AbsentBoundsStayNil(t *testing.T) {
	criteria, err := ParseCriteria([]byte("price_max: 500000\narea_m2_min: 70\nstrict_fields: [year_built_min]\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if criteria.PriceMax == nil || *criteria.PriceMax != 500000 {
		t.Fatalf("expected price_max 500000, got %v", criteria.PriceMax)
	}
	if criteria.AreaM2Min == nil || *criteria.AreaM2Min != 70 {
		t.Fatalf("expected area_m2_min 70, got %v", criteria.AreaM2Min)
	}
	if criteria.RoomsMin != nil {
		t.Fatalf("expected rooms_min unset")
	}
	if len(criteria.Districts) != 0 {
		t.Fatalf("expected no district filter")
	}
	if len(criteria.StrictFields) != 1 || criteria.StrictFields[0] != "year_built_min" {
		t.Fatalf("unexpected strict fields %v", criteria.StrictFields)
	}
}

func TestDefaultCriteria(t *testing.T) {
	c := DefaultCriteria()
	if len(c.Districts) != 23 {
		t.Fatalf("expected 23 districts, got %d", len(c.Districts))
	}
	if *c.YearBuiltMin != 1970 {
		t.Fatalf("expected year_built_min 1970, got %d", *c.YearBuiltMin)
	}
}
