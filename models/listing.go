package models

import (
	"time"

	"github.com/google/uuid"
)

// NormalizedListing is the canonical, persisted listing. URL is its identity
// across re-crawls.
type NormalizedListing struct {
	ID     uuid.UUID `json:"id"`
	URL    string    `json:"url"`
	Source string    `json:"source"`
	// Fingerprint groups the same flat advertised on several portals.
	Fingerprint string `json:"fingerprint,omitempty"`

	Title           *string  `json:"title,omitempty"`
	District        *string  `json:"district,omitempty"`
	Address         *string  `json:"address,omitempty"`
	PriceTotal      *float64 `json:"price_total,omitempty"`
	AreaM2          *float64 `json:"area_m2,omitempty"`
	Rooms           *float64 `json:"rooms,omitempty"`
	YearBuilt       *int     `json:"year_built,omitempty"`
	Floor           *string  `json:"floor,omitempty"`
	FloorLevel      *int     `json:"floor_level,omitempty"`
	Condition       *string  `json:"condition,omitempty"`
	Heating         *string  `json:"heating,omitempty"`
	HeatingType     *string  `json:"heating_type,omitempty"`
	EnergyCarrier   *string  `json:"energy_carrier,omitempty"`
	Parking         *string  `json:"parking,omitempty"`
	EnergyClass     *string  `json:"energy_class,omitempty"`
	HWBValue        *float64 `json:"hwb_value,omitempty"`
	FGEEValue       *float64 `json:"fgee_value,omitempty"`
	AvailableFrom   *string  `json:"available_from,omitempty"`
	SpecialFeatures *string  `json:"special_features,omitempty"`
	Description     *string  `json:"description,omitempty"`
	BalconyTerrace  *bool    `json:"balcony_terrace,omitempty"`
	ImageURL        *string  `json:"image_url,omitempty"`
	ImageKey        *string  `json:"image_key,omitempty"`
	Infrastructure  *string  `json:"infrastructure_text,omitempty"`
	OwnFunds        *float64 `json:"own_funds,omitempty"`
	MonthlyRate     *float64 `json:"monthly_rate,omitempty"`

	PricePerM2             *float64          `json:"price_per_m2,omitempty"`
	OperatingCost          *float64          `json:"operating_cost,omitempty"`
	OperatingCostEstimated bool              `json:"operating_cost_estimated"`
	Mortgage               *MortgageEstimate `json:"mortgage,omitempty"`
	TotalMonthlyCost       *float64          `json:"total_monthly_cost,omitempty"`

	// Ratings run from 1 to 5.
	GrowthRating     int `json:"potential_growth_rating,omitempty"`
	RenovationRating int `json:"renovation_needed_rating,omitempty"`

	Coordinates *Coordinates     `json:"coordinates,omitempty"`
	Transit     *ProximityResult `json:"transit,omitempty"`
	School      *ProximityResult `json:"school,omitempty"`

	// Score and SentToNotification belong to downstream consumers once set.
	Score              *float64 `json:"score,omitempty"`
	SentToNotification bool     `json:"sent_to_notification_channel"`

	ExtractionConfidence float64   `json:"extraction_confidence"`
	ProcessedAt          time.Time `json:"processed_at"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type MortgageEstimate struct {
	DownPayment    float64 `json:"down_payment"`
	LoanAmount     float64 `json:"loan_amount"`
	BasePayment    float64 `json:"base_payment"`
	ExtraFees      float64 `json:"extra_fees"`
	MonthlyPayment float64 `json:"total_monthly"`
}

// TransitMinutes returns the walking minutes to transit, or nil.
func (l *NormalizedListing) TransitMinutes() *int {
	if l.Transit == nil {
		return nil
	}
	m := l.Transit.WalkingMinutes
	return &m
}

func (l *NormalizedListing) SchoolMinutes() *int {
	if l.School == nil {
		return nil
	}
	m := l.School.WalkingMinutes
	return &m
}

// Clone returns a deep copy so stores never share pointers with callers.
func (l *NormalizedListing) Clone() *NormalizedListing {
	if l == nil {
		return nil
	}
	c := *l
	if l.Mortgage != nil {
		m := *l.Mortgage
		c.Mortgage = &m
	}
	if l.Coordinates != nil {
		co := *l.Coordinates
		c.Coordinates = &co
	}
	if l.Transit != nil {
		t := *l.Transit
		c.Transit = &t
	}
	if l.School != nil {
		s := *l.School
		c.School = &s
	}
	if l.Score != nil {
		s := *l.Score
		c.Score = &s
	}
	return &c
}
