package identity

import (
	"testing"

	"immo_scrooper/models"
)

func TestCanonicalURL(t *testing.T) {
	got := CanonicalURL("HTTPS://Immobilien.DerStandard.at/detail/14727001?utm_source=mail&b=2&a=1#bilder")
	want := "https://immobilien.derstandard.at/detail/14727001?a=1&b=2"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNormalizeAddress(t *testing.T) {
	a := NormalizeAddress("Thaliastraße 12/4, 1160 Wien")
	b := NormalizeAddress("thaliastrasse 12, 1160 WIEN")
	if a != b {
		t.Fatalf("expected equal normal forms, got %q and %q", a, b)
	}
}

func TestFingerprint_SameFlatDifferentPortals(t *testing.T) {
	addr1, addr2 := "Zieglergasse 14/7, 1070 Wien", "Zieglergasse 14, 1070 Wien"
	district := "1070"
	area1, area2 := 85.0, 84.8
	rooms := 3.0

	a := &models.NormalizedListing{Address: &addr1, District: &district, AreaM2: &area1, Rooms: &rooms}
	b := &models.NormalizedListing{Address: &addr2, District: &district, AreaM2: &area2, Rooms: &rooms}
	if Fingerprint(a) == "" || Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("expected matching fingerprints, got %s and %s", Fingerprint(a), Fingerprint(b))
	}
	if Fingerprint(&models.NormalizedListing{}) != "" {
		t.Fatalf("expected empty fingerprint without address")
	}
}
