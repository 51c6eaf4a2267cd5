package nutrition

import (
	"math"
	"slices"
)

// Assemble turns derived fields into the final result and classifies it.
//
// Missing data never produces an error; it is encoded in the result. An
// error wrapping ErrMalformedState means d violates the Derive contract.
func Assemble(d Derived) (NutritionResult, OutcomeKind, error) {
	if err := validateDerived(d); err != nil {
		return NutritionResult{}, OutcomeNotFound, err
	}

	res := NutritionResult{
		Values:               make(map[Field]float64),
		ServingsPerContainer: d.Servings,
		ServingsDefaulted:    d.ServingsDefaulted,
		Fields:               d.Fields.Clone(),
		Issues:               slices.Clone(d.Issues),
	}
	for name, f := range d.Fields {
		if f.Status == StatusParsed {
			res.Values[name] = f.Value
		}
	}
	// The serving count may have been rejected by Derive.
	if d.ServingsDefaulted {
		delete(res.Values, FieldServings)
	}
	if d.HasTotalSugar {
		total := d.TotalSugar
		res.TotalSugar = &total
	}

	return res, classify(d), nil
}

func classify(d Derived) OutcomeKind {
	sugars := d.Fields[FieldSugars]
	servings := d.Fields[FieldServings]
	if sugars.Status == StatusAbsent && servings.Status == StatusAbsent {
		return OutcomeNotFound
	}
	if sugars.Status == StatusParsed && !d.ServingsDefaulted {
		return OutcomeComplete
	}
	return OutcomePartial
}

func validateDerived(d Derived) error {
	sugars, ok := d.Fields[FieldSugars]
	if !ok {
		return malformed("missing %s entry", FieldSugars)
	}
	if _, ok := d.Fields[FieldServings]; !ok {
		return malformed("missing %s entry", FieldServings)
	}
	for name, f := range d.Fields {
		if f.Name != name {
			return malformed("field %s stored under %s", f.Name, name)
		}
		if !finite(f.Value) {
			return malformed("%s value is not finite", name)
		}
	}
	if !finite(d.Servings) || d.Servings < DefaultServings {
		return malformed("servings %v below %v", d.Servings, DefaultServings)
	}
	if d.HasSugars != (sugars.Status == StatusParsed) {
		return malformed("sugar flag disagrees with field status %s", sugars.Status)
	}
	if d.HasTotalSugar && !d.HasSugars {
		return malformed("total sugar without sugar")
	}
	if d.HasTotalSugar && !finite(d.TotalSugar) {
		return malformed("total sugar is not finite")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
