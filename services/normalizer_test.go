package services

import (
	"math"
	"testing"

	"immo_scrooper/config"
	"immo_scrooper/models"
)

func TestNormalize_PricePerAreaInvariant(t *testing.T) {
	n := NewNormalizer(config.DefaultValidation())
	cases := []struct{ price, area float64 }{
		{450000, 85},
		{299000, 72.5},
		{420000, 120},
	}
	for _, c := range cases {
		rec := record("https://example.at/ppa", map[models.Field]any{
			models.FieldPrice: c.price,
			models.FieldArea:  c.area,
		})
		l, rej := n.NormalizeWith(rec, nil, NormalizeOptions{Score: ptr(80.0)})
		if rej != nil {
			t.Fatalf("%v/%v rejected: %s", c.price, c.area, rej)
		}
		if math.Abs(*l.PricePerM2-c.price/c.area) > 0.005 {
			t.Errorf("price per m2 %v, want %v", *l.PricePerM2, c.price/c.area)
		}
	}

	l := n.mapFields(record("https://example.at/noarea", map[models.Field]any{models.FieldPrice: 300000.0}))
	derive(l)
	if l.PricePerM2 != nil {
		t.Fatalf("price per m2 must stay nil without area")
	}
	if l.TotalMonthlyCost != nil {
		t.Fatalf("total monthly needs an operating cost")
	}
}

func TestNormalize_MortgageAndOperatingCost(t *testing.T) {
	m := Mortgage(450000, nil)
	if m.DownPayment != 90000 || m.LoanAmount != 360000 {
		t.Fatalf("unexpected down payment/loan %+v", m)
	}
	if m.MonthlyPayment != 1573.2 {
		t.Fatalf("expected monthly 1573.2, got %v", m.MonthlyPayment)
	}
	if math.Abs(m.BasePayment+m.ExtraFees-m.MonthlyPayment) > 0.011 {
		t.Fatalf("base and fees must add up: %+v", m)
	}

	withFunds := Mortgage(300000, ptr(100000.0))
	if withFunds.LoanAmount != 200000 {
		t.Fatalf("own funds should be the down payment, got %+v", withFunds)
	}

	if got := EstimateOperatingCost(85); got != 437.75 {
		t.Fatalf("expected 437.75, got %v", got)
	}

	n := NewNormalizer(config.DefaultValidation())
	l, rej := n.NormalizeWith(record("https://example.at/bk", map[models.Field]any{
		models.FieldPrice:         450000.0,
		models.FieldArea:          85.0,
		models.FieldOperatingCost: 210.5,
	}), nil, NormalizeOptions{Score: ptr(60.0)})
	if rej != nil {
		t.Fatalf("rejected: %s", rej)
	}
	if l.OperatingCostEstimated || *l.OperatingCost != 210.5 {
		t.Fatalf("extracted operating cost must win")
	}
	if *l.TotalMonthlyCost != 1783.7 {
		t.Fatalf("expected total monthly 1783.7, got %v", *l.TotalMonthlyCost)
	}
}

func TestNormalize_DerivedAttributes(t *testing.T) {
	n := NewNormalizer(config.DefaultValidation())
	coords := models.MustCoordinates(48.2230, 16.3200)
	prox := &models.Proximity{
		Transit: &models.ProximityResult{Category: models.CategoryTransit, WalkingMinutes: 4, Tier: models.TierLiveQuery},
		School:  &models.ProximityResult{Category: models.CategorySchool, WalkingMinutes: 6, Tier: models.TierDistrictTable},
	}
	l, rej := n.NormalizeWith(record("https://example.at/derived", map[models.Field]any{
		models.FieldPrice:           299000.0,
		models.FieldArea:            72.5,
		models.FieldHeating:         "Gasetagenheizung",
		models.FieldHWB:             64.3,
		models.FieldSpecialFeatures: "Loggia, Lift",
		models.FieldAddress:         "Thaliastraße 120/4",
	}), prox, NormalizeOptions{Coordinates: &coords, Score: ptr(55.0)})
	if rej != nil {
		t.Fatalf("rejected: %s", rej)
	}

	if l.HeatingType == nil || *l.HeatingType != "Gas" {
		t.Errorf("expected heating type Gas, got %v", l.HeatingType)
	}
	if l.EnergyClass == nil || *l.EnergyClass != "C" {
		t.Errorf("expected energy class C from HWB, got %v", l.EnergyClass)
	}
	if l.BalconyTerrace == nil || !*l.BalconyTerrace {
		t.Errorf("loggia in features should count as balcony")
	}
	if l.District == nil || *l.District != "1160" {
		t.Errorf("expected district 1160 from coordinates, got %v", l.District)
	}
	if m := l.TransitMinutes(); m == nil || *m != 4 {
		t.Errorf("transit minutes not carried over")
	}
	if l.Fingerprint == "" {
		t.Errorf("expected a fingerprint for a listing with an address")
	}
}

func TestNormalizeHeating(t *testing.T) {
	tests := map[string]string{
		"Fernwärme":           "Fernwärme",
		"Heizung: Fernwaerme": "Fernwärme",
		"Gas-Zentralheizung":  "Gas",
		"Ölheizung":           "Öl",
		"Zentralheizung, Öl":  "Öl",
		"Luftwärmepumpe":      "Wärmepumpe",
		"Elektroheizung":      "Elektro",
		"Etagenheizung":       "",
	}
	for in, want := range tests {
		if got := NormalizeHeating(in); got != want {
			t.Errorf("NormalizeHeating(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnergyClassFromHWB(t *testing.T) {
	tests := []struct {
		hwb  float64
		want string
	}{{8, "A++"}, {15, "A+"}, {25, "A"}, {42.5, "B"}, {88.5, "C"}, {150, "D"}, {199, "E"}, {250, "F"}, {320, "G"}}
	for _, tt := range tests {
		if got := EnergyClassFromHWB(tt.hwb); got != tt.want {
			t.Errorf("EnergyClassFromHWB(%v) = %s, want %s", tt.hwb, got, tt.want)
		}
	}
}
