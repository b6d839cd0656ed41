package services

import (
	"math"
	"strings"

	"immo_scrooper/models"
)

type direction int

const (
	lowerIsBetter direction = iota
	higherIsBetter
)

type criterion struct {
	name     string
	weight   float64
	min, max float64
	dir      direction
	value    func(l *models.NormalizedListing) *float64
}

// scoreCriteria weights sum to 1.0. Each value is mapped linearly onto
// 0..100 between min and max and clamped.
var scoreCriteria = []criterion{
	{"price_per_m2", 0.20, 3500, 8000, lowerIsBetter, func(l *models.NormalizedListing) *float64 { return l.PricePerM2 }},
	{"hwb_value", 0.15, 20, 150, lowerIsBetter, func(l *models.NormalizedListing) *float64 { return l.HWBValue }},
	{"year_built", 0.10, 1900, 2025, higherIsBetter, func(l *models.NormalizedListing) *float64 { return intValue(l.YearBuilt) }},
	{"ubahn_walk_minutes", 0.15, 2, 15, lowerIsBetter, func(l *models.NormalizedListing) *float64 { return intValue(l.TransitMinutes()) }},
	{"school_walk_minutes", 0.05, 3, 20, lowerIsBetter, func(l *models.NormalizedListing) *float64 { return intValue(l.SchoolMinutes()) }},
	{"rooms", 0.05, 1, 5, higherIsBetter, func(l *models.NormalizedListing) *float64 { return l.Rooms }},
	{"balcony_terrace", 0.10, 0, 1, higherIsBetter, func(l *models.NormalizedListing) *float64 {
		if l.BalconyTerrace == nil {
			return nil
		}
		v := 0.0
		if *l.BalconyTerrace {
			v = 1
		}
		return &v
	}},
	{"floor_level", 0.05, 0, 5, higherIsBetter, func(l *models.NormalizedListing) *float64 { return intValue(l.FloorLevel) }},
	{"potential_growth_rating", 0.05, 1, 5, higherIsBetter, func(l *models.NormalizedListing) *float64 { return ratingValue(l.GrowthRating) }},
	{"renovation_needed_rating", 0.05, 1, 5, lowerIsBetter, func(l *models.NormalizedListing) *float64 { return ratingValue(l.RenovationRating) }},
	{"area_m2", 0.05, 70, 150, higherIsBetter, func(l *models.NormalizedListing) *float64 { return l.AreaM2 }},
}

// Score is the weighted 0..100 score rounded to one decimal. Missing values
// contribute nothing.
func Score(l *models.NormalizedListing) float64 {
	var total float64
	for _, c := range scoreCriteria {
		v := c.value(l)
		if v == nil {
			continue
		}
		total += c.normalize(*v) * c.weight
	}
	return math.Round(total*10) / 10
}

// ScoreBreakdown returns the weighted contribution of every criterion.
func ScoreBreakdown(l *models.NormalizedListing) map[string]float64 {
	out := make(map[string]float64, len(scoreCriteria))
	for _, c := range scoreCriteria {
		if v := c.value(l); v != nil {
			out[c.name] = round2(c.normalize(*v) * c.weight)
		} else {
			out[c.name] = 0
		}
	}
	return out
}

func (c criterion) normalize(v float64) float64 {
	if c.dir == lowerIsBetter {
		switch {
		case v <= c.min:
			return 100
		case v >= c.max:
			return 0
		}
		return 100 * (c.max - v) / (c.max - c.min)
	}
	switch {
	case v >= c.max:
		return 100
	case v <= c.min:
		return 0
	}
	return 100 * (v - c.min) / (c.max - c.min)
}

var (
	premiumDistricts = map[string]bool{
		"1010": true, "1020": true, "1030": true, "1040": true, "1050": true,
		"1060": true, "1070": true, "1080": true, "1090": true,
	}
	energyGrowth = map[string]float64{"A++": 1, "A+": 1, "A": 1, "B": 0.7, "C": 0.4, "D": 0.2}
	energyRenov  = map[string]float64{"G": 1.5, "F": 1.5, "E": 1, "D": 1, "C": 0.5}
)

// GrowthRating estimates appreciation potential from 1 (low) to 5 (high).
func GrowthRating(l *models.NormalizedListing) int {
	var pts float64
	if l.YearBuilt != nil {
		switch y := *l.YearBuilt; {
		case y >= 2020:
			pts += 2
		case y >= 2010:
			pts += 1.5
		case y >= 2000:
			pts += 1
		case y >= 1990:
			pts += 0.5
		}
	}
	if l.District != nil {
		if premiumDistricts[*l.District] {
			pts += 1
		} else {
			pts += 0.5
		}
	}
	switch {
	case l.EnergyClass != nil:
		pts += energyGrowth[*l.EnergyClass]
	case l.HWBValue != nil:
		switch h := *l.HWBValue; {
		case h <= 25:
			pts += 1
		case h <= 50:
			pts += 0.7
		case h <= 100:
			pts += 0.4
		case h <= 150:
			pts += 0.2
		}
	}
	condition := lowerOf(l.Condition)
	switch {
	case containsAny(condition, "erstbezug", "neu"):
		pts += 0.5
	case strings.Contains(condition, "gut"):
		pts += 0.3
	case containsAny(condition, "renoviert", "saniert"):
		pts += 0.2
	}
	if m := l.TransitMinutes(); m != nil {
		switch {
		case *m <= 5:
			pts += 0.5
		case *m <= 10:
			pts += 0.3
		case *m <= 15:
			pts += 0.1
		}
	}

	switch {
	case pts >= 4.5:
		return 5
	case pts >= 3.5:
		return 4
	case pts >= 2.5:
		return 3
	case pts >= 1.5:
		return 2
	}
	return 1
}

// RenovationRating estimates renovation need from 1 (none) to 5 (major).
func RenovationRating(l *models.NormalizedListing) int {
	var pts float64
	if l.YearBuilt != nil {
		switch y := *l.YearBuilt; {
		case y < 1960:
			pts += 2
		case y < 1980:
			pts += 1.5
		case y < 1990:
			pts += 1
		case y < 2000:
			pts += 0.5
		}
	}
	switch {
	case l.EnergyClass != nil:
		pts += energyRenov[*l.EnergyClass]
	case l.HWBValue != nil:
		switch h := *l.HWBValue; {
		case h > 150:
			pts += 1.5
		case h > 100:
			pts += 1
		case h > 50:
			pts += 0.5
		}
	}
	condition := lowerOf(l.Condition)
	switch {
	case containsAny(condition, "sanierungsbedürftig", "renovierungsbedürftig"):
		pts += 1
	case containsAny(condition, "schlecht", "mangelhaft"):
		pts += 0.8
	case strings.Contains(condition, "altbau") && !strings.Contains(condition, "renoviert"):
		pts += 0.7
	}
	heating := lowerOf(l.HeatingType)
	switch {
	case containsAny(heating, "kohle", "öl"):
		pts += 0.5
	case strings.Contains(heating, "gas") && !strings.Contains(heating, "kondens"):
		pts += 0.3
	}

	switch {
	case pts >= 4:
		return 5
	case pts >= 3:
		return 4
	case pts >= 2:
		return 3
	case pts >= 1:
		return 2
	}
	return 1
}

func intValue(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func ratingValue(r int) *float64 {
	if r == 0 {
		return nil
	}
	f := float64(r)
	return &f
}

func lowerOf(s *string) string {
	if s == nil {
		return ""
	}
	return strings.ToLower(*s)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
