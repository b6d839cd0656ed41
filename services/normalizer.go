package services

import (
	"math"
	"regexp"
	"strings"
	"time"

	"immo_scrooper/config"
	"immo_scrooper/geo"
	"immo_scrooper/identity"
	"immo_scrooper/models"
)

const (
	mortgageRatio      = 0.00437
	defaultDownPayment = 0.20
	mortgageBaseShare  = 0.85
	operatingRatePerM2 = 1.22 + 1.29 + 2.21
	operatingVATFactor = 1.0911
)

var (
	heatingKinds = []struct {
		pattern *regexp.Regexp
		name    string
	}{
		{regexp.MustCompile(`(?i)fernw(?:ä|ae|a)rme|district heating`), "Fernwärme"},
		{regexp.MustCompile(`(?i)w[äa]rmepumpe|heat pump`), "Wärmepumpe"},
		{regexp.MustCompile(`(?i)\bgas|gasetagen|gaszentral`), "Gas"},
		{regexp.MustCompile(`(?i)(?:^|[\s,/(])(?:öl|oel)\b|ölheizung|heizöl`), "Öl"},
		{regexp.MustCompile(`(?i)elektr|strom|infrarot|nachtspeicher`), "Elektro"},
	}
	balconyWords = regexp.MustCompile(`(?i)balkon|terrasse|loggia`)
)

// NormalizeOptions carries values the pipeline already knows.
type NormalizeOptions struct {
	// Score overrides the computed score.
	Score       *float64
	Coordinates *models.Coordinates
	// When a listing is re-crawled the stored score wins over the computed one.
	StoredScore *float64
}

type Normalizer struct {
	validator *Validator
	now       func() time.Time
}

func NewNormalizer(cfg config.ValidationConfig) *Normalizer {
	return &Normalizer{validator: NewValidator(cfg), now: time.Now}
}

// Normalize maps a candidate record onto the canonical listing, derives the
// computed attributes and validates the result. Exactly one of the returned
// values is non-nil.
func (n *Normalizer) Normalize(rec *models.CandidateRecord, prox *models.Proximity) (*models.NormalizedListing, *models.Rejection) {
	return n.NormalizeWith(rec, prox, NormalizeOptions{})
}

func (n *Normalizer) NormalizeWith(rec *models.CandidateRecord, prox *models.Proximity, opts NormalizeOptions) (*models.NormalizedListing, *models.Rejection) {
	l := n.mapFields(rec)

	if opts.Coordinates != nil {
		c := *opts.Coordinates
		l.Coordinates = &c
	}
	if l.District == nil && l.Coordinates != nil {
		if d, ok := geo.DistrictFromCoordinates(*l.Coordinates); ok {
			l.District = &d
		}
	}
	if prox != nil {
		l.Transit = prox.Transit
		l.School = prox.School
	}

	derive(l)
	l.Fingerprint = identity.Fingerprint(l)

	switch {
	case opts.Score != nil:
		l.Score = floatPtr(*opts.Score)
	case opts.StoredScore != nil:
		l.Score = floatPtr(*opts.StoredScore)
	default:
		s := Score(l)
		l.Score = &s
	}

	if rej := n.validator.Validate(rec, l); rej != nil {
		return nil, rej
	}
	return l, nil
}

func (n *Normalizer) mapFields(rec *models.CandidateRecord) *models.NormalizedListing {
	l := &models.NormalizedListing{
		URL:                  rec.URL,
		Source:               rec.Source,
		ExtractionConfidence: rec.Confidence(),
		ProcessedAt:          n.now(),
	}

	l.Title = text(rec, models.FieldTitle)
	l.District = text(rec, models.FieldDistrict)
	l.Address = text(rec, models.FieldAddress)
	l.PriceTotal = rec.Number(models.FieldPrice)
	l.AreaM2 = rec.Number(models.FieldArea)
	l.Rooms = rec.Number(models.FieldRooms)
	if y := rec.Number(models.FieldYearBuilt); y != nil {
		year := int(*y)
		l.YearBuilt = &year
	}
	l.Floor = text(rec, models.FieldFloor)
	if f := rec.Number(models.FieldFloor); f != nil {
		level := int(*f)
		l.FloorLevel = &level
	}
	l.Condition = text(rec, models.FieldCondition)
	l.Heating = text(rec, models.FieldHeating)
	l.HeatingType = text(rec, models.FieldHeatingType)
	l.EnergyCarrier = text(rec, models.FieldEnergyCarrier)
	l.Parking = text(rec, models.FieldParking)
	l.OperatingCost = rec.Number(models.FieldOperatingCost)
	l.EnergyClass = text(rec, models.FieldEnergyClass)
	l.HWBValue = rec.Number(models.FieldHWB)
	l.FGEEValue = rec.Number(models.FieldFGEE)
	l.AvailableFrom = text(rec, models.FieldAvailableFrom)
	l.ImageURL = text(rec, models.FieldImageURL)
	l.Infrastructure = text(rec, models.FieldInfrastructure)
	l.Description = text(rec, models.FieldDescription)
	l.SpecialFeatures = text(rec, models.FieldSpecialFeatures)
	l.OwnFunds = rec.Number(models.FieldOwnFunds)
	l.MonthlyRate = rec.Number(models.FieldMonthlyRate)

	if rec.Has(models.FieldBalcony) {
		l.BalconyTerrace = boolPtr(true)
	} else {
		l.BalconyTerrace = boolPtr(mentionsBalcony(l.Title, l.SpecialFeatures))
	}

	lat, lon := rec.Number(models.FieldLatitude), rec.Number(models.FieldLongitude)
	if lat != nil && lon != nil {
		if c, err := models.NewCoordinates(*lat, *lon); err == nil {
			l.Coordinates = &c
		}
	}
	return l
}

// derive fills every computed attribute whose inputs are present.
func derive(l *models.NormalizedListing) {
	if l.PriceTotal != nil && l.AreaM2 != nil && *l.AreaM2 > 0 {
		l.PricePerM2 = floatPtr(round2(*l.PriceTotal / *l.AreaM2))
	}

	if l.PriceTotal != nil {
		l.Mortgage = Mortgage(*l.PriceTotal, l.OwnFunds)
	}

	l.OperatingCostEstimated = false
	if l.OperatingCost == nil && l.AreaM2 != nil && *l.AreaM2 > 0 {
		l.OperatingCost = floatPtr(EstimateOperatingCost(*l.AreaM2))
		l.OperatingCostEstimated = true
	}

	if l.Mortgage != nil && l.OperatingCost != nil {
		l.TotalMonthlyCost = floatPtr(round2(l.Mortgage.MonthlyPayment + *l.OperatingCost))
	}

	if l.HeatingType == nil {
		for _, src := range []*string{l.Heating, l.EnergyCarrier} {
			if src == nil {
				continue
			}
			if kind := NormalizeHeating(*src); kind != "" {
				l.HeatingType = &kind
				break
			}
		}
	} else if kind := NormalizeHeating(*l.HeatingType); kind != "" {
		l.HeatingType = &kind
	}

	if l.EnergyClass == nil && l.HWBValue != nil {
		class := EnergyClassFromHWB(*l.HWBValue)
		l.EnergyClass = &class
	}

	l.GrowthRating = GrowthRating(l)
	l.RenovationRating = RenovationRating(l)
}

// Mortgage estimates the monthly payment. The down payment is the stated own
// funds or 20% of the price.
func Mortgage(price float64, ownFunds *float64) *models.MortgageEstimate {
	down := price * defaultDownPayment
	if ownFunds != nil && *ownFunds > 0 && *ownFunds < price {
		down = *ownFunds
	}
	loan := math.Max(0, price-down)
	monthly := loan * mortgageRatio
	return &models.MortgageEstimate{
		DownPayment:    round2(down),
		LoanAmount:     round2(loan),
		BasePayment:    round2(monthly * mortgageBaseShare),
		ExtraFees:      round2(monthly * (1 - mortgageBaseShare)),
		MonthlyPayment: round2(monthly),
	}
}

// EstimateOperatingCost is the monthly Betriebskosten estimate including VAT.
func EstimateOperatingCost(area float64) float64 {
	return round2(area * operatingRatePerM2 * operatingVATFactor)
}

// NormalizeHeating maps free heating text onto a small vocabulary. It
// returns "" when nothing matches.
func NormalizeHeating(s string) string {
	for _, k := range heatingKinds {
		if k.pattern.MatchString(s) {
			return k.name
		}
	}
	return ""
}

func EnergyClassFromHWB(hwb float64) string {
	switch {
	case hwb <= 10:
		return "A++"
	case hwb <= 15:
		return "A+"
	case hwb <= 25:
		return "A"
	case hwb <= 50:
		return "B"
	case hwb <= 100:
		return "C"
	case hwb <= 150:
		return "D"
	case hwb <= 200:
		return "E"
	case hwb <= 250:
		return "F"
	}
	return "G"
}

func mentionsBalcony(fields ...*string) bool {
	for _, f := range fields {
		if f != nil && balconyWords.MatchString(*f) {
			return true
		}
	}
	return false
}

func text(rec *models.CandidateRecord, f models.Field) *string {
	c, ok := rec.Get(f)
	if !ok || strings.TrimSpace(c.Text) == "" {
		return nil
	}
	s := c.Text
	return &s
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
