package services

import (
	"fmt"

	"immo_scrooper/config"
	"immo_scrooper/models"
)

// Criteria is the configured acceptance filter. A bound that is not
// configured never fails. A configured bound passes a listing that lacks the
// value unless the bound's key is listed in strict_fields.
type Criteria struct {
	cfg       config.CriteriaConfig
	strict    map[string]bool
	districts map[string]bool
}

func NewCriteria(cfg config.CriteriaConfig) *Criteria {
	c := &Criteria{cfg: cfg, strict: make(map[string]bool)}
	for _, f := range cfg.StrictFields {
		c.strict[f] = true
	}
	if len(cfg.Districts) > 0 {
		c.districts = make(map[string]bool, len(cfg.Districts))
		for _, d := range cfg.Districts {
			c.districts[d] = true
		}
	}
	return c
}

func (c *Criteria) Matches(l *models.NormalizedListing) bool {
	return len(c.Explain(l)) == 0
}

// Explain lists every failing bound.
func (c *Criteria) Explain(l *models.NormalizedListing) []string {
	var failed []string
	check := func(key string, bound *float64, value *float64, tooLow bool) {
		if bound == nil {
			return
		}
		if value == nil {
			if c.strict[key] {
				failed = append(failed, key+": missing value")
			}
			return
		}
		if (tooLow && *value < *bound) || (!tooLow && *value > *bound) {
			failed = append(failed, fmt.Sprintf("%s: %g", key, *value))
		}
	}

	check("price_min", c.cfg.PriceMin, l.PriceTotal, true)
	check("price_max", c.cfg.PriceMax, l.PriceTotal, false)
	check("area_m2_min", c.cfg.AreaM2Min, l.AreaM2, true)
	check("area_m2_max", c.cfg.AreaM2Max, l.AreaM2, false)
	check("rooms_min", c.cfg.RoomsMin, l.Rooms, true)
	check("rooms_max", c.cfg.RoomsMax, l.Rooms, false)
	check("year_built_min", intValue(c.cfg.YearBuiltMin), intValue(l.YearBuilt), true)
	check("price_per_m2_max", c.cfg.PricePerM2Max, l.PricePerM2, false)

	if c.districts != nil {
		switch {
		case l.District == nil:
			if c.strict["districts"] {
				failed = append(failed, "districts: missing value")
			}
		case !c.districts[*l.District]:
			failed = append(failed, "districts: "+*l.District)
		}
	}
	return failed
}
