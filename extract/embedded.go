package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"immo_scrooper/models"
)

// embeddedValues reads structured data that sites ship inside the page.
// Earlier sources win for the same field.
func (e *Extractor) embeddedValues(dom *goquery.Document) map[models.Field]rawValue {
	out := make(map[models.Field]rawValue)
	put := func(vals map[models.Field]rawValue) {
		for f, v := range vals {
			if _, ok := out[f]; !ok {
				out[f] = v
			}
		}
	}

	if s := dom.Find("script#__NEXT_DATA__").First(); s.Length() > 0 {
		put(parseNextData(s.Text()))
	}
	dom.Find("script").Each(func(_ int, s *goquery.Selection) {
		if body := s.Text(); strings.Contains(body, `"propertyData"`) || strings.Contains(body, `"property":`) {
			put(parsePropertyData(body))
		}
	})
	dom.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		put(parseLDJSON(s.Text()))
	})
	if e.profile.InlineState {
		dom.Find("script").Each(func(_ int, s *goquery.Selection) {
			if body := s.Text(); strings.Contains(body, "window.") {
				put(parseInlineState(body))
			}
		})
	}
	return out
}

type nextData struct {
	Props struct {
		PageProps struct {
			AdvertDetails *struct {
				Description string `json:"description"`
				Attributes  struct {
					Attribute []struct {
						Name   string   `json:"name"`
						Values []string `json:"values"`
					} `json:"attribute"`
				} `json:"attributes"`
				AdvertImageList struct {
					AdvertImage []struct {
						MainImageURL string `json:"mainImageUrl"`
					} `json:"advertImage"`
				} `json:"advertImageList"`
			} `json:"advertDetails"`
		} `json:"pageProps"`
	} `json:"props"`
}

// nextDataAttributes maps listing attribute names to fields.
var nextDataAttributes = map[string]models.Field{
	"HEADING":                 models.FieldTitle,
	"PRICE":                   models.FieldPrice,
	"PRICE_FOR_DISPLAY":       models.FieldPrice,
	"ESTATE_SIZE/LIVING_AREA": models.FieldArea,
	"ESTATE_SIZE":             models.FieldArea,
	"NUMBER_OF_ROOMS":         models.FieldRooms,
	"LOCATION/ADDRESS_2":      models.FieldAddress,
	"POSTCODE":                models.FieldDistrict,
	"FLOOR":                   models.FieldFloor,
	"BUILDING_CONDITION":      models.FieldCondition,
	"ENERGY_HWB":              models.FieldHWB,
	"ENERGY_HWB_CLASS":        models.FieldEnergyClass,
	"ENERGY_FGEE":             models.FieldFGEE,
	"CONSTRUCTION_YEAR":       models.FieldYearBuilt,
	"FREE_AREA_TYPE_NAME":     models.FieldBalcony,
}

var nextDataLabels = []struct {
	prefix string
	field  models.Field
}{
	{"Heizungsart:", models.FieldHeatingType},
	{"Wesentliche Energieträger:", models.FieldEnergyCarrier},
	{"Verfügbar ab:", models.FieldAvailableFrom},
}

func parseNextData(body string) map[models.Field]rawValue {
	var nd nextData
	if err := json.Unmarshal([]byte(body), &nd); err != nil {
		return nil
	}
	ad := nd.Props.PageProps.AdvertDetails
	if ad == nil {
		return nil
	}

	out := make(map[models.Field]rawValue)
	set := func(f models.Field, v rawValue) {
		if _, ok := out[f]; !ok && strings.TrimSpace(v.text) != "" {
			out[f] = v
		}
	}

	for _, attr := range ad.Attributes.Attribute {
		if len(attr.Values) == 0 {
			continue
		}
		value := attr.Values[0]
		name := strings.ToUpper(attr.Name)

		if f, ok := nextDataAttributes[name]; ok {
			set(f, textValue(value))
		}
		if name == "COORDINATES" {
			if lat, lon, ok := splitCoordinates(value); ok {
				set(models.FieldLatitude, numValue(lat))
				set(models.FieldLongitude, numValue(lon))
			}
		}
		lowerName := strings.ToLower(name)
		if strings.Contains(lowerName, "baujahr") || strings.Contains(lowerName, "bautyp") ||
			strings.Contains(lowerName, "bauzeit") {
			set(models.FieldYearBuilt, textValue(value))
		}
		for _, v := range attr.Values {
			for _, l := range nextDataLabels {
				if idx := strings.Index(v, l.prefix); idx >= 0 {
					set(l.field, textValue(firstLine(v[idx+len(l.prefix):])))
				}
			}
		}
	}
	set(models.FieldDescription, textValue(ad.Description))
	if imgs := ad.AdvertImageList.AdvertImage; len(imgs) > 0 {
		set(models.FieldImageURL, textValue(imgs[0].MainImageURL))
	}
	return out
}

func splitCoordinates(s string) (float64, float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	var lat, lon float64
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%g", &lat); err != nil {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%g", &lon); err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\n\r"); i >= 0 {
		s = s[:i]
	}
	return s
}

type propertyData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Costs       struct {
		Main struct {
			Value any `json:"value"`
		} `json:"main"`
		OperatingCosts struct {
			Value any `json:"value"`
		} `json:"operatingCosts"`
	} `json:"costs"`
	Areas struct {
		Details []struct {
			Kind  string `json:"kind"`
			Value any    `json:"value"`
		} `json:"details"`
	} `json:"areas"`
	Location struct {
		Street    string   `json:"street"`
		ZipCode   string   `json:"zipCode"`
		City      string   `json:"city"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"location"`
	Condition struct {
		YearOfConstruction any    `json:"yearOfConstruction"`
		State              string `json:"state"`
		Floor              any    `json:"floor"`
	} `json:"condition"`
	EnergyConsumption struct {
		HWB struct {
			Class string `json:"class"`
			Value any    `json:"value"`
		} `json:"hwb"`
		FGEE struct {
			Value any `json:"value"`
		} `json:"fgee"`
	} `json:"energyConsumption"`
	Heating struct {
		Type    string `json:"type"`
		Carrier string `json:"carrier"`
	} `json:"heating"`
	Parking      any `json:"parking"`
	Availability struct {
		From string `json:"from"`
	} `json:"availability"`
	Features []any `json:"features"`
	Media    struct {
		Images []struct {
			Path string `json:"path"`
		} `json:"images"`
	} `json:"media"`
}

var propertyDataStart = regexp.MustCompile(`"(?:propertyData|property)"\s*:\s*\{`)

func parsePropertyData(body string) map[models.Field]rawValue {
	loc := propertyDataStart.FindStringIndex(body)
	if loc == nil {
		return nil
	}
	raw := balancedObject(body, loc[1]-1)
	if raw == "" {
		return nil
	}
	var pd propertyData
	if err := json.Unmarshal([]byte(raw), &pd); err != nil {
		return nil
	}

	out := make(map[models.Field]rawValue)
	set := func(f models.Field, v rawValue) {
		if strings.TrimSpace(v.text) != "" {
			out[f] = v
		}
	}
	setAny := func(f models.Field, v any) {
		if rv, ok := anyValue(v); ok {
			set(f, rv)
		}
	}

	set(models.FieldTitle, textValue(pd.Title))
	set(models.FieldDescription, textValue(pd.Description))
	setAny(models.FieldPrice, pd.Costs.Main.Value)
	setAny(models.FieldOperatingCost, pd.Costs.OperatingCosts.Value)
	for _, d := range pd.Areas.Details {
		switch d.Kind {
		case "LIVING_SPACE":
			setAny(models.FieldArea, d.Value)
		case "ROOM_COUNT":
			setAny(models.FieldRooms, d.Value)
		case "BALCONY", "TERRACE", "LOGGIA":
			set(models.FieldBalcony, textValue(strings.ToLower(d.Kind)))
		}
	}

	var addr []string
	if pd.Location.Street != "" {
		addr = append(addr, pd.Location.Street)
	}
	if pd.Location.ZipCode != "" || pd.Location.City != "" {
		addr = append(addr, strings.TrimSpace(pd.Location.ZipCode+" "+pd.Location.City))
	}
	set(models.FieldAddress, textValue(strings.Join(addr, ", ")))
	set(models.FieldDistrict, textValue(pd.Location.ZipCode))
	if pd.Location.Latitude != nil && pd.Location.Longitude != nil {
		set(models.FieldLatitude, numValue(*pd.Location.Latitude))
		set(models.FieldLongitude, numValue(*pd.Location.Longitude))
	}

	setAny(models.FieldYearBuilt, pd.Condition.YearOfConstruction)
	set(models.FieldCondition, textValue(pd.Condition.State))
	setAny(models.FieldFloor, pd.Condition.Floor)
	set(models.FieldEnergyClass, textValue(pd.EnergyConsumption.HWB.Class))
	setAny(models.FieldHWB, pd.EnergyConsumption.HWB.Value)
	setAny(models.FieldFGEE, pd.EnergyConsumption.FGEE.Value)
	set(models.FieldHeatingType, textValue(pd.Heating.Type))
	set(models.FieldHeating, textValue(pd.Heating.Type))
	set(models.FieldEnergyCarrier, textValue(pd.Heating.Carrier))
	setAny(models.FieldParking, pd.Parking)
	set(models.FieldAvailableFrom, textValue(pd.Availability.From))

	var features []string
	for _, f := range pd.Features {
		if rv, ok := anyValue(f); ok {
			features = append(features, rv.text)
		}
	}
	set(models.FieldSpecialFeatures, textValue(strings.Join(features, ", ")))
	if len(pd.Media.Images) > 0 {
		set(models.FieldImageURL, textValue(pd.Media.Images[0].Path))
	}
	return out
}

// balancedObject returns the JSON object starting at s[start] == '{'.
func balancedObject(s string, start int) string {
	if start < 0 || start >= len(s) || s[start] != '{' {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// anyValue turns a decoded JSON scalar, or an object with a name or value
// key, into a raw value.
func anyValue(v any) (rawValue, bool) {
	switch t := v.(type) {
	case nil:
		return rawValue{}, false
	case float64:
		return numValue(t), true
	case string:
		return textValue(t), strings.TrimSpace(t) != ""
	case bool:
		if t {
			return textValue("ja"), true
		}
		return rawValue{}, false
	case map[string]any:
		for _, k := range []string{"value", "name", "label", "text"} {
			if inner, ok := t[k]; ok {
				return anyValue(inner)
			}
		}
	case []any:
		if len(t) > 0 {
			return anyValue(t[0])
		}
	}
	return rawValue{}, false
}

var ldListingTypes = map[string]bool{
	"apartment": true, "residence": true, "house": true, "singlefamilyresidence": true,
	"accommodation": true, "product": true, "offer": true, "realestatelisting": true,
}

func parseLDJSON(body string) map[models.Field]rawValue {
	var doc any
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &doc); err != nil {
		return nil
	}
	node := findListingNode(doc)
	if node == nil {
		return nil
	}

	out := make(map[models.Field]rawValue)
	setAny := func(f models.Field, v any) {
		if _, ok := out[f]; ok {
			return
		}
		if rv, ok := anyValue(v); ok {
			out[f] = rv
		}
	}

	setAny(models.FieldTitle, node["name"])
	setAny(models.FieldDescription, node["description"])
	setAny(models.FieldRooms, node["numberOfRooms"])
	setAny(models.FieldYearBuilt, node["yearBuilt"])
	setAny(models.FieldArea, node["floorSize"])
	setAny(models.FieldImageURL, imageOf(node["image"]))

	if offers, ok := firstObject(node["offers"]); ok {
		setAny(models.FieldPrice, offers["price"])
	}
	setAny(models.FieldPrice, node["price"])

	if item, ok := firstObject(node["itemOffered"]); ok {
		setAny(models.FieldArea, item["floorSize"])
		setAny(models.FieldRooms, item["numberOfRooms"])
		setAny(models.FieldYearBuilt, item["yearBuilt"])
		if _, ok := node["address"]; !ok {
			node["address"] = item["address"]
		}
	}

	if addr, ok := firstObject(node["address"]); ok {
		street, _ := addr["streetAddress"].(string)
		zip := fmt.Sprint(valueOr(addr["postalCode"], ""))
		city, _ := addr["addressLocality"].(string)
		line := strings.TrimSpace(zip + " " + city)
		if street != "" {
			line = strings.TrimSpace(street + ", " + line)
		}
		setAny(models.FieldAddress, line)
		setAny(models.FieldDistrict, zip)
	} else if s, ok := node["address"].(string); ok {
		setAny(models.FieldAddress, s)
	}

	if geo, ok := firstObject(node["geo"]); ok {
		setAny(models.FieldLatitude, geo["latitude"])
		setAny(models.FieldLongitude, geo["longitude"])
	}
	return out
}

func findListingNode(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if n := findListingNode(item); n != nil {
				return n
			}
		}
	case map[string]any:
		if graph, ok := t["@graph"]; ok {
			if n := findListingNode(graph); n != nil {
				return n
			}
		}
		for _, typ := range typesOf(t["@type"]) {
			if ldListingTypes[strings.ToLower(typ)] {
				return t
			}
		}
	}
	return nil
}

func typesOf(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func firstObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		if len(t) > 0 {
			return firstObject(t[0])
		}
	}
	return nil, false
}

func imageOf(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return t["url"]
	case []any:
		if len(t) > 0 {
			return imageOf(t[0])
		}
	}
	return v
}

func valueOr(v any, def any) any {
	if v == nil {
		return def
	}
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return v
}

var inlineStatePatterns = map[models.Field]*regexp.Regexp{
	models.FieldPrice:     regexp.MustCompile(`"(?:price|purchasePrice)"\s*:\s*"?([\d.,]+)`),
	models.FieldArea:      regexp.MustCompile(`"(?:livingArea|livingSpace|area)"\s*:\s*"?([\d.,]+)`),
	models.FieldRooms:     regexp.MustCompile(`"(?:rooms|numberOfRooms)"\s*:\s*"?([\d.,]+)`),
	models.FieldDistrict:  regexp.MustCompile(`"(?:zip|zipCode|postalCode)"\s*:\s*"?(\d{4})`),
	models.FieldYearBuilt: regexp.MustCompile(`"(?:yearOfConstruction|constructionYear|yearBuilt)"\s*:\s*"?(\d{4})`),
	models.FieldAddress:   regexp.MustCompile(`"address"\s*:\s*"([^"]{5,200})"`),
	models.FieldTitle:     regexp.MustCompile(`"title"\s*:\s*"([^"]{5,300})"`),
}

func parseInlineState(body string) map[models.Field]rawValue {
	out := make(map[models.Field]rawValue)
	for f, re := range inlineStatePatterns {
		if m := re.FindStringSubmatch(body); m != nil {
			out[f] = textValue(m[1])
		}
	}
	return out
}
