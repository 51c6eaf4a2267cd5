package nutrition

import "math"

// Field is a canonical nutrition attribute name.
type Field string

// Canonical fields known to the calculator.
const (
	FieldSugars   Field = "Sugars"
	FieldServings Field = "ServingsPerContainer"
	FieldCalories Field = "Calories"
)

// FieldStatus records what happened when a field was looked up.
type FieldStatus string

const (
	StatusAbsent      FieldStatus = "absent"
	StatusParsed      FieldStatus = "parsed"
	StatusParseFailed FieldStatus = "parse_failed"
)

// ExtractedField is the extractor's finding for one field.
type ExtractedField struct {
	Name   Field       `json:"name"`
	Status FieldStatus `json:"status"`
	// Raw is the full matched text; ValueText the value span inside it.
	Raw       string `json:"raw,omitempty"`
	ValueText string `json:"value_text,omitempty"`
	// Value is expressed in the field's base unit (grams for masses).
	Value  float64 `json:"value,omitempty"`
	Unit   string  `json:"unit,omitempty"`
	Offset int     `json:"offset"`
	Err    error   `json:"-"`
}

// Fields maps every field of a vocabulary to its extraction result.
type Fields map[Field]ExtractedField

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// OutcomeKind classifies how complete an extraction was.
type OutcomeKind string

const (
	// OutcomeComplete means sugar and serving count were both read from the label.
	OutcomeComplete OutcomeKind = "complete"
	// OutcomePartial means something was found but a target was missing,
	// unparsable or defaulted.
	OutcomePartial OutcomeKind = "partial"
	// OutcomeNotFound means no target field matched at all.
	OutcomeNotFound OutcomeKind = "not_found"
)

// NutritionResult is the assembled, immutable extraction result.
type NutritionResult struct {
	// Values holds every successfully parsed field in base units.
	Values               map[Field]float64
	ServingsPerContainer float64
	ServingsDefaulted    bool
	// TotalSugar is nil when Sugars is absent or unparsable.
	TotalSugar *float64
	Fields     Fields
	Issues     []error
}

// Sugars returns the per-serving sugar amount in grams, if known.
func (r NutritionResult) Sugars() (float64, bool) {
	v, ok := r.Values[FieldSugars]
	return v, ok
}

// Warnings renders Issues as human-readable strings.
func (r NutritionResult) Warnings() []string {
	out := make([]string, 0, len(r.Issues))
	for _, err := range r.Issues {
		out = append(out, err.Error())
	}
	return out
}

// RoundDisplay rounds v to two decimals for presentation.
func RoundDisplay(v float64) float64 {
	return math.Round(v*100) / 100
}
