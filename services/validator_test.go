package services

import (
	"testing"

	"immo_scrooper/config"
	"immo_scrooper/models"
)

func TestValidate_HighPriceScoreBoundary(t *testing.T) {
	n := NewNormalizer(config.DefaultValidation())
	rec := record("https://example.at/boundary", map[models.Field]any{
		models.FieldPrice: 400001.0,
		models.FieldArea:  80.0,
	})

	_, rej := n.NormalizeWith(rec, nil, NormalizeOptions{Score: ptr(39.0)})
	if rej == nil {
		t.Fatalf("expected rejection for score 39")
	}
	if len(rej.Reasons) != 1 || !rej.Has(models.ReasonLowScoreHighPrice) {
		t.Fatalf("unexpected reasons %v", rej.Reasons)
	}

	l, rej := n.NormalizeWith(rec, nil, NormalizeOptions{Score: ptr(40.0)})
	if rej != nil {
		t.Fatalf("score 40 should pass, got %s", rej)
	}
	if *l.Score != 40 {
		t.Fatalf("expected score override to stick, got %v", *l.Score)
	}

	// the limit itself is not "above" the limit
	atLimit := record("https://example.at/limit", map[models.Field]any{
		models.FieldPrice: 400000.0,
		models.FieldArea:  80.0,
	})
	if _, rej := n.NormalizeWith(atLimit, nil, NormalizeOptions{Score: ptr(0.0)}); rej != nil {
		t.Fatalf("price at limit should pass, got %s", rej)
	}
}

func TestValidate_CollectsAllReasons(t *testing.T) {
	n := NewNormalizer(config.DefaultValidation())
	rec := record("https://example.at/tiny", map[models.Field]any{
		models.FieldPrice: 40000.0,
		models.FieldArea:  18.0,
	})

	l, rej := n.Normalize(rec, nil)
	if l != nil || rej == nil {
		t.Fatalf("expected rejection")
	}
	if !rej.Has(models.ReasonPriceTooLow) || !rej.Has(models.ReasonAreaTooSmall) {
		t.Fatalf("expected both price and area reasons, got %v", rej.Reasons)
	}
	if rej.URL != "https://example.at/tiny" || rej.Source != "willhaben" {
		t.Fatalf("rejection lost its identity: %+v", rej)
	}
	if got := rej.String(); got != "total price too low; area too small" {
		t.Fatalf("unexpected reason text %q", got)
	}
}

func TestValidate_MissingAndImplausible(t *testing.T) {
	n := NewNormalizer(config.DefaultValidation())

	_, rej := n.Normalize(record("https://example.at/empty", nil), nil)
	if rej == nil || !rej.Has(models.ReasonMissingPrice) || !rej.Has(models.ReasonMissingArea) {
		t.Fatalf("expected missing price and area, got %v", rej)
	}

	_, rej = n.Normalize(record("https://example.at/cheap", map[models.Field]any{
		models.FieldPrice: 60000.0,
		models.FieldArea:  90.0,
	}), nil)
	if rej == nil || !rej.Has(models.ReasonPricePerAreaTooLow) {
		t.Fatalf("expected price per area too low, got %v", rej)
	}

	_, rej = n.Normalize(record("https://example.at/palace", map[models.Field]any{
		models.FieldPrice: 3000000.0,
		models.FieldArea:  100.0,
	}), nil)
	if rej == nil || !rej.Has(models.ReasonPricePerAreaTooHigh) || !rej.Has(models.ReasonMonthlyPaymentTooHigh) {
		t.Fatalf("expected price per area and monthly payment reasons, got %v", rej)
	}
}

func TestValidate_RentalAndPriceOnRequest(t *testing.T) {
	n := NewNormalizer(config.DefaultValidation())

	_, rej := n.NormalizeWith(record("https://example.at/rent", map[models.Field]any{
		models.FieldTitle: "Helle Mietwohnung mit Balkon",
		models.FieldPrice: 250000.0,
		models.FieldArea:  70.0,
	}), nil, NormalizeOptions{Score: ptr(50.0)})
	if rej == nil || !rej.Has(models.ReasonRental) {
		t.Fatalf("expected rental rejection, got %v", rej)
	}

	rec := record("https://example.at/ask", map[models.Field]any{models.FieldArea: 70.0})
	rec.PriceOnRequest = true
	_, rej = n.Normalize(rec, nil)
	if rej == nil || !rej.Has(models.ReasonPriceOnRequest) || !rej.Has(models.ReasonMissingPrice) {
		t.Fatalf("expected price on request rejection, got %v", rej)
	}
}
