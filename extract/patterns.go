package extract

import (
	"regexp"

	"immo_scrooper/models"
)

// fieldPatterns are tried against the visible page text in order. Group 1
// holds the value; a non-empty group 2 marks a match to skip.
var fieldPatterns = map[models.Field][]*regexp.Regexp{
	models.FieldPrice: {
		regexp.MustCompile(`(?i)kaufpreis[:\s]*(?:€|eur)?\s*([\d.,]+\s*(?:mio\.?|k)?)`),
		regexp.MustCompile(`(?i)(preis\s+auf\s+anfrage)`),
		regexp.MustCompile(`€\s*([\d.,]+(?:\s*(?:Mio\.?|k))?)(\s*/\s*m|\s*pro\s*m)?`),
		regexp.MustCompile(`(?i)([\d.,]+)\s*(?:€|eur)(\s*/\s*m|\s*pro\s*m|\s*mtl)?`),
	},
	models.FieldArea: {
		regexp.MustCompile(`(?i)wohnfläche[:\s]*(?:ca\.?\s*)?(\d+(?:[.,]\d+)?)`),
		regexp.MustCompile(`(?i)nutzfläche[:\s]*(?:ca\.?\s*)?(\d+(?:[.,]\d+)?)`),
		regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:m²|m2\b|qm\b)`),
	},
	models.FieldRooms: {
		regexp.MustCompile(`(?i)zimmer(?:anzahl)?\s*:\s*(\d{1,2}(?:[.,]5)?)\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2}(?:[.,]5)?)[\s-]*(?:zimmer|zi\.|räume)`),
	},
	models.FieldDistrict: {
		regexp.MustCompile(`\b(1[0-2]\d0\s+Wien)\b`),
		regexp.MustCompile(`\b(Wien[\s,\-]+1[0-2]\d0)\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2}\.\s*Bezirk)`),
		regexp.MustCompile(`(?i)(?:bezirk|wien)[:\s,]+([A-Za-zäöüß\-]{5,})`),
	},
	models.FieldAddress: {
		regexp.MustCompile(`([A-ZÄÖÜ][A-Za-zäöüß.\-]+(?:\s[A-Za-zäöüß.\-]+)*\s\d+[a-z]?(?:/\d+)*\s*,\s*1[0-2]\d0\s+Wien)`),
	},
	models.FieldFloor: {
		regexp.MustCompile(`(?i)\b(\d{1,2}\.\s*(?:stock|etage|og\b|obergeschoss|liftstock))`),
		regexp.MustCompile(`(?i)(?:stockwerk|etage|geschoss)[:\s]+(\d{1,2})\b`),
		regexp.MustCompile(`(?i)\b(hochparterre|erdgeschoss|dachgeschoss|souterrain)`),
	},
	models.FieldCondition: {
		regexp.MustCompile(`(?i)zustand\s*:?\s*([^\n]{3,40})`),
		regexp.MustCompile(`(?i)\b(erstbezug|neuwertig|saniert|renoviert|sanierungsbedürftig|renovierungsbedürftig)`),
	},
	models.FieldHeating: {
		regexp.MustCompile(`(?i)\b(?:heizung|beheizung)\s*:\s*([^\n]{3,40})`),
		regexp.MustCompile(`(?i)(fernwärme|fußbodenheizung|zentralheizung|gas-?etagenheizung|gasheizung|etagenheizung|wärmepumpe|elektroheizung|ölheizung|pelletsheizung)`),
	},
	models.FieldHeatingType: {
		regexp.MustCompile(`(?i)heizungsart\s*:?\s*([^\n]{3,40})`),
	},
	models.FieldEnergyCarrier: {
		regexp.MustCompile(`(?i)(?:wesentliche\s+)?energieträger\s*:?\s*([^\n]{3,40})`),
	},
	models.FieldAvailableFrom: {
		regexp.MustCompile(`(?i)(?:verfügbar|bezugsfertig|bezug)\s+ab\s*:?\s*([^\n]{2,30})`),
		regexp.MustCompile(`(?i)verfügbarkeit\s*:\s*([^\n]{2,30})`),
	},
	models.FieldParking: {
		regexp.MustCompile(`(?i)\b((?:tiefgaragen|garagen|auto)?(?:stell|park)platz|tiefgarage|garage)`),
	},
	models.FieldOperatingCost: {
		regexp.MustCompile(`(?i)(?:betriebskosten|nebenkosten)[^\d€\n]{0,30}(?:€|eur)?\s*([\d.,]+)`),
	},
	models.FieldHWB: {
		regexp.MustCompile(`(?i)\bhwb[^\d\n]{0,25}(\d+(?:[.,]\d+)?)`),
	},
	models.FieldFGEE: {
		regexp.MustCompile(`(?i)\bf\s?gee[^\d\n]{0,25}(\d+(?:[.,]\d+)?)`),
	},
	models.FieldEnergyClass: {
		regexp.MustCompile(`(?i)(?:energieklasse|energieeffizienzklasse|hwb-klasse)\s*:?\s*((?:A\+\+|A\+|[A-G])(?:[^A-Za-z+]|$))`),
	},
	models.FieldBalcony: {
		regexp.MustCompile(`(?i)\b(balkon|terrasse|dachterrasse|loggia|wintergarten)`),
	},
	models.FieldOwnFunds: {
		regexp.MustCompile(`(?i)eigen(?:mittel|kapital)[^\d\n]{0,20}([\d.,]+)`),
	},
	models.FieldMonthlyRate: {
		regexp.MustCompile(`(?i)(?:monatsrate|monatliche\s+rate)[^\d\n]{0,20}([\d.,]+)`),
	},
	models.FieldInfrastructure: {
		regexp.MustCompile(`(?i)infrastruktur\s*:?\s*([^\n]{5,300})`),
		regexp.MustCompile(`(?i)((?:u-?bahn|u[1-6]\b|straßenbahn|bushaltestelle)[^\n]{0,120})`),
	},
}

// patternValues returns every candidate match for f in document order of
// the pattern list.
func patternValues(f models.Field, text string) []string {
	var out []string
	for _, re := range fieldPatterns[f] {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if len(m) > 2 && m[2] != "" {
				continue
			}
			out = append(out, m[1])
		}
	}
	return out
}
