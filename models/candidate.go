package models

// Strategy identifies which extraction tier produced a candidate value.
// Larger values carry more trust.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyPattern
	StrategySelector
	StrategyEmbedded
)

func (s Strategy) String() string {
	switch s {
	case StrategyEmbedded:
		return "embedded"
	case StrategySelector:
		return "selector"
	case StrategyPattern:
		return "pattern"
	default:
		return "none"
	}
}

// Confidence is the default confidence attached to values from this tier.
func (s Strategy) Confidence() float64 {
	switch s {
	case StrategyEmbedded:
		return 0.9
	case StrategySelector:
		return 0.7
	case StrategyPattern:
		return 0.4
	default:
		return 0
	}
}

type Field string

const (
	FieldTitle           Field = "title"
	FieldPrice           Field = "price"
	FieldArea            Field = "area"
	FieldRooms           Field = "rooms"
	FieldDistrict        Field = "district"
	FieldAddress         Field = "address"
	FieldYearBuilt       Field = "year_built"
	FieldFloor           Field = "floor"
	FieldCondition       Field = "condition"
	FieldHeating         Field = "heating"
	FieldHeatingType     Field = "heating_type"
	FieldEnergyCarrier   Field = "energy_carrier"
	FieldParking         Field = "parking"
	FieldOperatingCost   Field = "operating_cost"
	FieldEnergyClass     Field = "energy_class"
	FieldHWB             Field = "hwb_value"
	FieldFGEE            Field = "fgee_value"
	FieldAvailableFrom   Field = "available_from"
	FieldImageURL        Field = "image_url"
	FieldInfrastructure  Field = "infrastructure_text"
	FieldDescription     Field = "description"
	FieldSpecialFeatures Field = "special_features"
	FieldOwnFunds        Field = "own_funds"
	FieldMonthlyRate     Field = "monthly_rate"
	FieldBalcony         Field = "balcony_terrace"
	FieldLatitude        Field = "latitude"
	FieldLongitude       Field = "longitude"
)

// Candidate is one extracted value of unknown reliability.
type Candidate struct {
	Text       string   `json:"text,omitempty"`
	Number     *float64 `json:"number,omitempty"`
	Strategy   Strategy `json:"strategy"`
	Confidence float64  `json:"confidence"`
}

// CandidateRecord collects every field an extraction pass found. Fields that
// were not found are absent from the map, never zero-valued.
type CandidateRecord struct {
	URL            string              `json:"url"`
	Source         string              `json:"source"`
	Fields         map[Field]Candidate `json:"fields"`
	PriceOnRequest bool                `json:"price_on_request"`
}

func NewCandidateRecord(url, source string) *CandidateRecord {
	return &CandidateRecord{
		URL:    url,
		Source: source,
		Fields: make(map[Field]Candidate),
	}
}

// Set stores c under f unless a value from an equal or higher trust tier is
// already present. It reports whether the record changed.
func (r *CandidateRecord) Set(f Field, c Candidate) bool {
	if c.Text == "" && c.Number == nil {
		return false
	}
	if existing, ok := r.Fields[f]; ok && existing.Strategy >= c.Strategy {
		return false
	}
	if c.Confidence == 0 {
		c.Confidence = c.Strategy.Confidence()
	}
	r.Fields[f] = c
	return true
}

func (r *CandidateRecord) Has(f Field) bool {
	_, ok := r.Fields[f]
	return ok
}

func (r *CandidateRecord) Get(f Field) (Candidate, bool) {
	c, ok := r.Fields[f]
	return c, ok
}

func (r *CandidateRecord) Text(f Field) string {
	return r.Fields[f].Text
}

// Number returns a copy of the numeric value of f, or nil.
func (r *CandidateRecord) Number(f Field) *float64 {
	c, ok := r.Fields[f]
	if !ok || c.Number == nil {
		return nil
	}
	v := *c.Number
	return &v
}

// Confidence is the mean confidence over all present fields, 0 when empty.
func (r *CandidateRecord) Confidence() float64 {
	if len(r.Fields) == 0 {
		return 0
	}
	var sum float64
	for _, c := range r.Fields {
		sum += c.Confidence
	}
	return sum / float64(len(r.Fields))
}
