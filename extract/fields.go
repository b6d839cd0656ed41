package extract

import (
	"regexp"
	"strconv"
	"strings"

	"immo_scrooper/models"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindMoney
	kindNumber
	kindYear
	kindDistrict
	kindEnergyClass
	kindFloor
	kindFlag
)

type fieldSpec struct {
	kind     fieldKind
	min, max float64
	maxLen   int
}

var fieldSpecs = map[models.Field]fieldSpec{
	models.FieldTitle:           {kind: kindText, maxLen: 300},
	models.FieldPrice:           {kind: kindMoney, min: 1000, max: 100_000_000},
	models.FieldArea:            {kind: kindNumber, min: 10, max: 2000},
	models.FieldRooms:           {kind: kindNumber, min: 1, max: 20},
	models.FieldDistrict:        {kind: kindDistrict},
	models.FieldAddress:         {kind: kindText, maxLen: 200},
	models.FieldYearBuilt:       {kind: kindYear},
	models.FieldFloor:           {kind: kindFloor},
	models.FieldCondition:       {kind: kindText, maxLen: 80},
	models.FieldHeating:         {kind: kindText, maxLen: 80},
	models.FieldHeatingType:     {kind: kindText, maxLen: 80},
	models.FieldEnergyCarrier:   {kind: kindText, maxLen: 80},
	models.FieldParking:         {kind: kindText, maxLen: 120},
	models.FieldOperatingCost:   {kind: kindMoney, min: 10, max: 1000},
	models.FieldEnergyClass:     {kind: kindEnergyClass},
	models.FieldHWB:             {kind: kindNumber, min: 1, max: 500},
	models.FieldFGEE:            {kind: kindNumber, min: 0.1, max: 5},
	models.FieldAvailableFrom:   {kind: kindText, maxLen: 60},
	models.FieldImageURL:        {kind: kindText, maxLen: 1000},
	models.FieldInfrastructure:  {kind: kindText, maxLen: 1000},
	models.FieldDescription:     {kind: kindText, maxLen: 5000},
	models.FieldSpecialFeatures: {kind: kindText, maxLen: 500},
	models.FieldOwnFunds:        {kind: kindMoney, min: 1000, max: 10_000_000},
	models.FieldMonthlyRate:     {kind: kindMoney, min: 50, max: 50_000},
	models.FieldBalcony:         {kind: kindFlag},
	models.FieldLatitude:        {kind: kindNumber, min: -90, max: 90},
	models.FieldLongitude:       {kind: kindNumber, min: -180, max: 180},
}

// extractedFields is the order in which fields are extracted.
var extractedFields = []models.Field{
	models.FieldTitle, models.FieldPrice, models.FieldArea, models.FieldRooms,
	models.FieldAddress, models.FieldDistrict, models.FieldYearBuilt, models.FieldFloor,
	models.FieldCondition, models.FieldHeating, models.FieldHeatingType, models.FieldEnergyCarrier,
	models.FieldParking, models.FieldOperatingCost, models.FieldEnergyClass, models.FieldHWB,
	models.FieldFGEE, models.FieldAvailableFrom, models.FieldImageURL, models.FieldInfrastructure,
	models.FieldDescription, models.FieldSpecialFeatures, models.FieldOwnFunds, models.FieldMonthlyRate,
	models.FieldBalcony, models.FieldLatitude, models.FieldLongitude,
}

// rawValue is a value before validation. num is set when the source already
// delivered a typed number.
type rawValue struct {
	text string
	num  *float64
}

func textValue(s string) rawValue { return rawValue{text: s} }

func numValue(v float64) rawValue {
	return rawValue{text: strconv.FormatFloat(v, 'f', -1, 64), num: &v}
}

var (
	whitespace   = regexp.MustCompile(`\s+`)
	energyClass  = regexp.MustCompile(`(?i)(?:^|[^A-Za-z])(A\+\+|A\+|[A-G])(?:[^A-Za-z+]|$)`)
	floorOrdinal = regexp.MustCompile(`(?i)(\d{1,2})\s*\.?\s*(?:stock|etage|og|obergeschoss|liftstock)`)
)

func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// valueResult is what validating a raw value produced.
type valueResult struct {
	candidate models.Candidate
	ok        bool
	onRequest bool
}

func (e *Extractor) value(f models.Field, rv rawValue, s models.Strategy) valueResult {
	spec, ok := fieldSpecs[f]
	if !ok {
		spec = fieldSpec{kind: kindText, maxLen: 300}
	}
	text := cleanText(rv.text)
	c := models.Candidate{Text: text, Strategy: s}

	switch spec.kind {
	case kindMoney:
		if rv.num == nil && IsPriceOnRequest(text) {
			return valueResult{onRequest: f == models.FieldPrice}
		}
		v, ok := numberOf(rv, ParsePrice)
		if !ok || !inRange(v, spec.min, spec.max) {
			return valueResult{}
		}
		c.Number = &v
	case kindNumber:
		v, ok := numberOf(rv, ParseNumber)
		if !ok || !inRange(v, spec.min, spec.max) {
			return valueResult{}
		}
		c.Number = &v
	case kindYear:
		var y int
		if rv.num != nil {
			y = int(*rv.num)
			if !e.years.Valid(y) {
				if *rv.num < 100 {
					y = e.years.Expand(y)
				}
				if !e.years.Valid(y) {
					return valueResult{}
				}
			}
		} else {
			var ok bool
			if y, ok = e.years.FromValue(text); !ok {
				return valueResult{}
			}
		}
		v := float64(y)
		c.Number = &v
		c.Text = strconv.Itoa(y)
	case kindDistrict:
		code, ok := DistrictCode(text)
		if !ok {
			return valueResult{}
		}
		c.Text = code
	case kindEnergyClass:
		m := energyClass.FindStringSubmatch(text)
		if m == nil {
			return valueResult{}
		}
		c.Text = strings.ToUpper(m[1])
	case kindFloor:
		if text == "" {
			return valueResult{}
		}
		c.Number = floorLevel(text)
	case kindFlag:
		if text == "" {
			return valueResult{}
		}
	default:
		if text == "" {
			return valueResult{}
		}
		if spec.maxLen > 0 && len([]rune(text)) > spec.maxLen {
			c.Text = string([]rune(text)[:spec.maxLen])
		}
	}
	return valueResult{candidate: c, ok: true}
}

func numberOf(rv rawValue, parse func(string) (float64, bool)) (float64, bool) {
	if rv.num != nil {
		return *rv.num, true
	}
	return parse(rv.text)
}

// floorLevel maps floor text to a storey number; ground floor is 0.
// Attic and unnumbered descriptions yield nil.
func floorLevel(text string) *float64 {
	lower := strings.ToLower(text)
	level := func(v float64) *float64 { return &v }
	switch {
	case strings.Contains(lower, "souterrain"), strings.Contains(lower, "keller"):
		return level(-1)
	case strings.Contains(lower, "erdgeschoss"), strings.Contains(lower, "hochparterre"),
		strings.Contains(lower, "parterre"), lower == "eg":
		return level(0)
	}
	if m := floorOrdinal.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return &v
	}
	if strings.Contains(lower, "dach") {
		return nil
	}
	if v, ok := ParseNumber(text); ok && v >= 0 && v <= 40 && v == float64(int(v)) {
		return &v
	}
	return nil
}
