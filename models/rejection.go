package models

import (
	"strings"
	"time"
)

type RejectionReason string

const (
	ReasonMissingPrice          RejectionReason = "missing price"
	ReasonMissingArea           RejectionReason = "missing area"
	ReasonPricePerAreaTooLow    RejectionReason = "price per area too low"
	ReasonPricePerAreaTooHigh   RejectionReason = "price per area too high"
	ReasonPriceTooLow           RejectionReason = "total price too low"
	ReasonAreaTooSmall          RejectionReason = "area too small"
	ReasonRental                RejectionReason = "rental listing"
	ReasonPriceOnRequest        RejectionReason = "price on request"
	ReasonLowScoreHighPrice     RejectionReason = "high price with low score"
	ReasonMonthlyPaymentTooHigh RejectionReason = "monthly payment too high"
)

// Rejection explains why a listing was not persisted.
type Rejection struct {
	URL     string            `json:"url"`
	Source  string            `json:"source"`
	Reasons []RejectionReason `json:"reasons"`
	At      time.Time         `json:"at"`
}

func (r *Rejection) Has(reason RejectionReason) bool {
	for _, got := range r.Reasons {
		if got == reason {
			return true
		}
	}
	return false
}

func (r *Rejection) String() string {
	parts := make([]string, len(r.Reasons))
	for i, reason := range r.Reasons {
		parts[i] = string(reason)
	}
	return strings.Join(parts, "; ")
}
