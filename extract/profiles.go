package extract

import (
	"regexp"
	"strings"

	"immo_scrooper/models"
)

// Profile carries the per-source knowledge the extractor needs: where the
// fields sit in the markup, what a property link looks like, and how a
// multi-unit project page announces itself.
type Profile struct {
	Source            string
	BaseURL           string
	Selectors         map[models.Field][]string
	LinkSelectors     []string
	PropertyID        *regexp.Regexp
	CollectionMarkers []string
	// InlineState enables scanning inline window.* state scripts.
	InlineState bool
}

// collectionPhrases mark a project page in visible text on every source.
var collectionPhrases = []string{
	"mehrere objekte verfügbar",
	"projekt mit mehreren wohnungen",
}

var defaultCollectionMarkers = []string{
	".sc-project-overview",
	".sc-multiple-properties",
}

// commonSelectors apply to every source after the source's own selectors.
// A trailing "@attr" reads that attribute instead of the element text.
var commonSelectors = map[models.Field][]string{
	models.FieldTitle: {"h1", `meta[property="og:title"]@content`, "title"},
	models.FieldPrice: {
		`[itemprop="price"]@content`,
		`dt:contains("Kaufpreis") + dd`,
		`th:contains("Kaufpreis") + td`,
		`dt:contains("Preis") + dd`,
	},
	models.FieldArea: {
		`dt:contains("Wohnfläche") + dd`,
		`th:contains("Wohnfläche") + td`,
		`dt:contains("Nutzfläche") + dd`,
	},
	models.FieldRooms: {
		`dt:contains("Zimmer") + dd`,
		`th:contains("Zimmer") + td`,
	},
	models.FieldYearBuilt: {
		`dt:contains("Baujahr") + dd`,
		`th:contains("Baujahr") + td`,
	},
	models.FieldFloor: {
		`dt:contains("Stockwerk") + dd`,
		`dt:contains("Etage") + dd`,
		`th:contains("Stockwerk") + td`,
	},
	models.FieldCondition:     {`dt:contains("Zustand") + dd`, `th:contains("Zustand") + td`},
	models.FieldHeating:       {`dt:contains("Heizung") + dd`, `th:contains("Heizung") + td`},
	models.FieldOperatingCost: {`dt:contains("Betriebskosten") + dd`, `th:contains("Betriebskosten") + td`},
	models.FieldHWB:           {`dt:contains("HWB") + dd`, `th:contains("HWB") + td`},
	models.FieldFGEE:          {`dt:contains("fGEE") + dd`, `th:contains("fGEE") + td`},
	models.FieldEnergyClass:   {`dt:contains("Energieklasse") + dd`},
	models.FieldAvailableFrom: {`dt:contains("Verfügbar") + dd`},
	models.FieldParking:       {`dt:contains("Parken") + dd`, `dt:contains("Garage") + dd`},
	models.FieldAddress:       {`[itemprop="address"]`, "address"},
	models.FieldImageURL:      {`meta[property="og:image"]@content`},
	models.FieldDescription: {
		`[itemprop="description"]`,
		`meta[name="description"]@content`,
		`meta[property="og:description"]@content`,
	},
	models.FieldInfrastructure:  {`[class*="infrastructure"]`, `[class*="Infrastructure"]`},
	models.FieldSpecialFeatures: {`[class*="features"] li`, `[class*="Features"] li`},
}

var profiles = map[string]*Profile{
	"willhaben": {
		Source:  "willhaben",
		BaseURL: "https://www.willhaben.at",
		Selectors: map[models.Field][]string{
			models.FieldTitle:   {`h1[data-testid="ad-detail-header"]`},
			models.FieldPrice:   {`[data-testid^="contact-box-price-box-price-value"]`},
			models.FieldAddress: {`[data-testid="object-location-address"]`},
			models.FieldArea: {
				`[data-testid="attribute-item"]:contains("Wohnfläche") [data-testid="attribute-value"]`,
			},
			models.FieldRooms: {
				`[data-testid="attribute-item"]:contains("Zimmer") [data-testid="attribute-value"]`,
			},
			models.FieldYearBuilt: {
				`[data-testid="attribute-item"]:contains("Baujahr") [data-testid="attribute-value"]`,
			},
			models.FieldFloor: {
				`[data-testid="attribute-item"]:contains("Stockwerk") [data-testid="attribute-value"]`,
			},
			models.FieldDescription:     {`[data-testid="ad-description-Objektbeschreibung"]`},
			models.FieldSpecialFeatures: {`[data-testid="ad-detail-ad-attributes-features"] li`},
			models.FieldInfrastructure:  {`[data-testid="ad-description-Lage"]`},
		},
		LinkSelectors:     []string{`a[href*="/iad/immobilien/d/"]`},
		PropertyID:        regexp.MustCompile(`/iad/immobilien/d/[^?#]*?-(\d{5,})/?(?:[?#]|$)`),
		CollectionMarkers: []string{`[data-testid="project-units"]`},
	},
	"derstandard": {
		Source:  "derstandard",
		BaseURL: "https://immobilien.derstandard.at",
		Selectors: map[models.Field][]string{
			models.FieldTitle:   {`.sc-detail-title`, `h1`},
			models.FieldPrice:   {`.sc-detail-price`, `[class*="DetailPrice"]`},
			models.FieldAddress: {`.sc-detail-address`, `[class*="DetailAddress"]`},
			models.FieldArea:    {`.sc-metadata-area`},
			models.FieldRooms:   {`.sc-metadata-rooms`},
		},
		LinkSelectors: []string{
			`a[href*="/detail/"]`,
			`a[href*="/immobiliendetail/"]`,
			`a[href*="/projektdetail/"]`,
		},
		PropertyID: regexp.MustCompile(`/(?:detail|immobiliendetail|projektdetail)/(\d+)`),
	},
	"immo_kurier": {
		Source:  "immo_kurier",
		BaseURL: "https://immo.kurier.at",
		Selectors: map[models.Field][]string{
			models.FieldTitle:   {`.expose-title`, `h1`},
			models.FieldPrice:   {`.expose-price`, `.price-value`},
			models.FieldAddress: {`.expose-address`, `.location`},
			models.FieldArea:    {`.expose-area`},
			models.FieldRooms:   {`.expose-rooms`},
		},
		LinkSelectors: []string{`a[href*="/immobilien/"]`},
		PropertyID:    regexp.MustCompile(`/immobilien/(?:[^/?#]+/)*?(\d{5,})(?:[/?#-]|$)`),
		InlineState:   true,
	},
}

var genericProfile = &Profile{
	Source:        "generic",
	LinkSelectors: []string{`a[href*="/detail/"]`, `a[href*="/expose/"]`, `a[href*="/immobilien/d/"]`},
	PropertyID:    regexp.MustCompile(`/(?:detail|expose|immobilien/d/[^?#]*?-)/?(\d{5,})`),
}

// ProfileFor returns the profile registered for source, or a generic one.
func ProfileFor(source string) *Profile {
	if p, ok := profiles[strings.ToLower(source)]; ok {
		return p
	}
	return genericProfile
}

func (p *Profile) selectorsFor(f models.Field) []string {
	out := append([]string{}, p.Selectors[f]...)
	return append(out, commonSelectors[f]...)
}

func (p *Profile) collectionMarkers() []string {
	return append(append([]string{}, p.CollectionMarkers...), defaultCollectionMarkers...)
}

// PropertyIDFromURL extracts the numeric property id from a listing URL.
func (p *Profile) PropertyIDFromURL(u string) (string, bool) {
	if p.PropertyID == nil {
		return "", false
	}
	m := p.PropertyID.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	return m[1], true
}
