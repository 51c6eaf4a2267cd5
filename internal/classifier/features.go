package classifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
)

// Attributes are optional user details forwarded to the model.
type Attributes struct {
	Age    *float64 `json:"age,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
}

// Features is the model input: serving count, sugar per serving, total
// sugar and the optional user attributes.
type Features struct {
	Servings   float64
	Sugars     float64
	TotalSugar float64
	Attributes
}

// ErrMissingSugar means a result has no sugar value to classify.
var ErrMissingSugar = errors.New("no sugar value to classify")

// FeaturesFromResult assembles features from an extraction result.
func FeaturesFromResult(res nutrition.NutritionResult, attrs Attributes) (Features, error) {
	sugars, ok := res.Sugars()
	if !ok || res.TotalSugar == nil {
		return Features{}, ErrMissingSugar
	}
	f := Features{
		Servings:   res.ServingsPerContainer,
		Sugars:     sugars,
		TotalSugar: *res.TotalSugar,
		Attributes: attrs,
	}
	return f, f.Validate()
}

// Vector returns [servings, sugars, total, age?, weight?]. Weight without
// age is encoded with age 0.
func (f Features) Vector() []float64 {
	v := []float64{f.Servings, f.Sugars, f.TotalSugar}
	if f.Age != nil || f.Weight != nil {
		v = append(v, deref(f.Age))
	}
	if f.Weight != nil {
		v = append(v, *f.Weight)
	}
	return v
}

// Scaled divides each vector entry by the matching scale. Missing or
// non-positive scales leave the entry unchanged.
func (f Features) Scaled(scale []float64) []float64 {
	v := f.Vector()
	for i := range v {
		if i < len(scale) && scale[i] > 0 {
			v[i] /= scale[i]
		}
	}
	return v
}

// Validate requires every entry to be finite and non-negative.
func (f Features) Validate() error {
	names := []string{"servings", "sugars", "total_sugar", "age", "weight"}
	vals := []*float64{&f.Servings, &f.Sugars, &f.TotalSugar, f.Age, f.Weight}
	for i, p := range vals {
		if p == nil {
			continue
		}
		if math.IsNaN(*p) || math.IsInf(*p, 0) || *p < 0 {
			return fmt.Errorf("feature %s: invalid value %v", names[i], *p)
		}
	}
	return nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
