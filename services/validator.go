package services

import (
	"regexp"
	"time"

	"immo_scrooper/config"
	"immo_scrooper/extract"
	"immo_scrooper/models"
)

var (
	rentalVocabulary = regexp.MustCompile(`(?i)\b(miete|mietwohnung|monatsmiete|kaltmiete|warmmiete|zu vermieten|for rent)\b`)
	// monthly price units only count inside the price text itself
	monthlyPrice = regexp.MustCompile(`(?i)(/\s*monat\b|\bmtl\.|\bmonatlich\b|per month)`)
)

// Validator applies the plausibility checks for the Vienna market. Every
// failing check is reported.
type Validator struct {
	cfg config.ValidationConfig
	now func() time.Time
}

func NewValidator(cfg config.ValidationConfig) *Validator {
	return &Validator{cfg: cfg, now: time.Now}
}

// Validate returns nil when the listing is plausible.
func (v *Validator) Validate(rec *models.CandidateRecord, l *models.NormalizedListing) *models.Rejection {
	var reasons []models.RejectionReason
	add := func(r models.RejectionReason) { reasons = append(reasons, r) }

	if l.PriceTotal == nil {
		add(models.ReasonMissingPrice)
	}
	if l.AreaM2 == nil {
		add(models.ReasonMissingArea)
	}
	if l.PricePerM2 != nil {
		if *l.PricePerM2 < v.cfg.MinPricePerM2 {
			add(models.ReasonPricePerAreaTooLow)
		}
		if *l.PricePerM2 > v.cfg.MaxPricePerM2 {
			add(models.ReasonPricePerAreaTooHigh)
		}
	}
	if l.PriceTotal != nil && *l.PriceTotal < v.cfg.MinPriceTotal {
		add(models.ReasonPriceTooLow)
	}
	if l.AreaM2 != nil && *l.AreaM2 < v.cfg.MinAreaM2 {
		add(models.ReasonAreaTooSmall)
	}

	priceText := ""
	if rec != nil {
		priceText = rec.Text(models.FieldPrice)
	}
	if isRental(l, priceText) {
		add(models.ReasonRental)
	}
	if (rec != nil && rec.PriceOnRequest) || extract.IsPriceOnRequest(priceText) {
		add(models.ReasonPriceOnRequest)
	}

	if l.PriceTotal != nil && *l.PriceTotal > v.cfg.HighPriceLimit {
		if l.Score == nil || *l.Score < v.cfg.HighPriceMinScore {
			add(models.ReasonLowScoreHighPrice)
		}
	}
	if l.Mortgage != nil && v.cfg.MaxMonthlyPayment > 0 && l.Mortgage.MonthlyPayment > v.cfg.MaxMonthlyPayment {
		add(models.ReasonMonthlyPaymentTooHigh)
	}

	if len(reasons) == 0 {
		return nil
	}
	return &models.Rejection{
		URL:     l.URL,
		Source:  l.Source,
		Reasons: reasons,
		At:      v.now(),
	}
}

func isRental(l *models.NormalizedListing, priceText string) bool {
	for _, s := range []*string{l.Title, l.Description} {
		if s != nil && rentalVocabulary.MatchString(*s) {
			return true
		}
	}
	return rentalVocabulary.MatchString(priceText) || monthlyPrice.MatchString(priceText)
}
