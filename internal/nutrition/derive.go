package nutrition

import (
	"fmt"
	"math"
)

// DefaultServings is used when the serving count is missing or unusable.
const DefaultServings = 1.0

// Derived augments extracted fields with the serving count and total sugar.
type Derived struct {
	Fields            Fields
	Servings          float64
	ServingsDefaulted bool
	Sugars            float64
	HasSugars         bool
	TotalSugar        float64
	HasTotalSugar     bool
	// Issues holds target-field diagnostics in field order.
	Issues []error
}

// Derive applies the default policy: a missing, unparsable, fractional or
// sub-one serving count becomes 1, and total sugar exists only when sugar was
// parsed.
func Derive(fields Fields) Derived {
	d := Derived{Fields: fields.Clone(), Servings: DefaultServings, ServingsDefaulted: true}

	if s, ok := d.Fields[FieldServings]; ok {
		switch s.Status {
		case StatusParsed:
			reason := ""
			switch {
			case math.IsInf(s.Value, 0) || math.IsNaN(s.Value):
				reason = "is not finite"
			case s.Value < 1:
				reason = fmt.Sprintf("is below %v", DefaultServings)
			case s.Value != math.Trunc(s.Value):
				reason = "is not a whole number"
			}
			if reason == "" {
				d.Servings = s.Value
				d.ServingsDefaulted = false
			} else {
				s.Status = StatusParseFailed
				s.Err = &NumericParseError{Field: FieldServings, Raw: s.ValueText, Reason: reason}
				d.Fields[FieldServings] = s
				d.Issues = append(d.Issues, s.Err)
			}
		default:
			d.Issues = append(d.Issues, issueOf(s))
		}
	} else {
		d.Issues = append(d.Issues, &FieldNotFoundError{Field: FieldServings})
	}

	if s, ok := d.Fields[FieldSugars]; ok {
		if s.Status == StatusParsed {
			d.Sugars, d.HasSugars = s.Value, true
			d.TotalSugar, d.HasTotalSugar = s.Value*d.Servings, true
		} else {
			d.Issues = append(d.Issues, issueOf(s))
		}
	} else {
		d.Issues = append(d.Issues, &FieldNotFoundError{Field: FieldSugars})
	}
	return d
}

func issueOf(f ExtractedField) error {
	if f.Err != nil {
		return f.Err
	}
	if f.Status == StatusParseFailed {
		return &NumericParseError{Field: f.Name, Raw: f.ValueText}
	}
	return &FieldNotFoundError{Field: f.Name}
}
