package nutrition

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedField(f Field, v float64) ExtractedField {
	return ExtractedField{Name: f, Status: StatusParsed, Value: v, ValueText: fmt.Sprint(v)}
}

func TestDerive_DefaultPolicy(t *testing.T) {
	t.Run("servings absent defaults to one", func(t *testing.T) {
		d := Derive(Fields{
			FieldSugars:   parsedField(FieldSugars, 4),
			FieldServings: notFound(FieldServings),
		})
		assert.Equal(t, 1.0, d.Servings)
		assert.True(t, d.ServingsDefaulted)
		assert.True(t, d.HasTotalSugar)
		assert.Equal(t, 4.0, d.TotalSugar)
	})

	t.Run("sugars absent leaves total absent", func(t *testing.T) {
		d := Derive(Fields{
			FieldSugars:   notFound(FieldSugars),
			FieldServings: parsedField(FieldServings, 3),
		})
		assert.False(t, d.HasSugars)
		assert.False(t, d.HasTotalSugar)
		assert.Zero(t, d.TotalSugar)
		require.Len(t, d.Issues, 1)
		var nf *FieldNotFoundError
		require.True(t, errors.As(d.Issues[0], &nf))
		assert.Equal(t, FieldSugars, nf.Field)
	})

	t.Run("sub-one servings are parse failures", func(t *testing.T) {
		in := Fields{
			FieldSugars:   parsedField(FieldSugars, 2),
			FieldServings: parsedField(FieldServings, 0.5),
		}
		d := Derive(in)
		assert.Equal(t, 1.0, d.Servings)
		assert.True(t, d.ServingsDefaulted)
		assert.Equal(t, StatusParseFailed, d.Fields[FieldServings].Status)
		assert.Equal(t, StatusParsed, in[FieldServings].Status, "input must not be mutated")
		var pe *NumericParseError
		require.Len(t, d.Issues, 1)
		assert.True(t, errors.As(d.Issues[0], &pe))
	})

	t.Run("fractional servings fall back to one", func(t *testing.T) {
		d := Derive(Fields{
			FieldSugars:   parsedField(FieldSugars, 2),
			FieldServings: parsedField(FieldServings, 2.5),
		})
		assert.True(t, d.ServingsDefaulted)
		assert.Equal(t, 1.0, d.Servings)
		assert.Equal(t, 2.0, d.TotalSugar)
		assert.Equal(t, StatusParseFailed, d.Fields[FieldServings].Status)
		var pe *NumericParseError
		require.Len(t, d.Issues, 1)
		require.True(t, errors.As(d.Issues[0], &pe))
		assert.Equal(t, FieldServings, pe.Field)
	})

	t.Run("missing map entries", func(t *testing.T) {
		d := Derive(Fields{})
		assert.Len(t, d.Issues, 2)
		assert.False(t, d.HasTotalSugar)
	})
}

func TestDerive_TotalSugarProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total = sugars x servings", prop.ForAll(
		func(sugars float64, servings int) bool {
			d := Derive(Fields{
				FieldSugars:   parsedField(FieldSugars, sugars),
				FieldServings: parsedField(FieldServings, float64(servings)),
			})
			res, kind, err := Assemble(d)
			if err != nil || kind != OutcomeComplete || res.TotalSugar == nil {
				return false
			}
			return math.Abs(*res.TotalSugar-sugars*float64(servings)) <= 0.01
		},
		gen.Float64Range(0, 500),
		gen.IntRange(1, 100),
	))

	properties.TestingRun(t)
}

func TestAnalyze_TotalSugarProperty(t *testing.T) {
	e := newTestEngine(t)
	properties := gopter.NewProperties(nil)

	properties.Property("text round trip", prop.ForAll(
		func(centigrams int, servings int) bool {
			sugars := float64(centigrams) / 100
			text := fmt.Sprintf("Sajian per kemasan %d\nGula %.2f g", servings, sugars)
			a, err := e.Analyze(text)
			if err != nil || a.Result.TotalSugar == nil {
				return false
			}
			return math.Abs(*a.Result.TotalSugar-sugars*float64(servings)) <= 0.01
		},
		gen.IntRange(0, 100000),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}

func TestAssemble_Outcome(t *testing.T) {
	tests := []struct {
		name     string
		sugars   ExtractedField
		servings ExtractedField
		want     OutcomeKind
	}{
		{"complete", parsedField(FieldSugars, 1), parsedField(FieldServings, 2), OutcomeComplete},
		{"defaulted servings", parsedField(FieldSugars, 1), notFound(FieldServings), OutcomePartial},
		{"no sugars", notFound(FieldSugars), parsedField(FieldServings, 2), OutcomePartial},
		{"nothing", notFound(FieldSugars), notFound(FieldServings), OutcomeNotFound},
		{
			"parse failure only",
			ExtractedField{Name: FieldSugars, Status: StatusParseFailed, ValueText: "x"},
			notFound(FieldServings),
			OutcomePartial,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, kind, err := Assemble(Derive(Fields{FieldSugars: tt.sugars, FieldServings: tt.servings}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestAssemble_ValuesExcludeRejected(t *testing.T) {
	res, _, err := Assemble(Derive(Fields{
		FieldSugars:   parsedField(FieldSugars, 3),
		FieldServings: parsedField(FieldServings, 0),
	}))
	require.NoError(t, err)
	assert.NotContains(t, res.Values, FieldServings)
	assert.Contains(t, res.Values, FieldSugars)
	require.NotNil(t, res.TotalSugar)
	assert.Equal(t, 3.0, *res.TotalSugar)
}

func TestAssemble_MalformedState(t *testing.T) {
	valid := func() Derived {
		return Derive(Fields{
			FieldSugars:   parsedField(FieldSugars, 2),
			FieldServings: parsedField(FieldServings, 2),
		})
	}

	tests := []struct {
		name   string
		mutate func(d *Derived)
	}{
		{"missing sugars entry", func(d *Derived) { delete(d.Fields, FieldSugars) }},
		{"missing servings entry", func(d *Derived) { delete(d.Fields, FieldServings) }},
		{"servings below one", func(d *Derived) { d.Servings = 0 }},
		{"servings nan", func(d *Derived) { d.Servings = math.NaN() }},
		{"total without sugars", func(d *Derived) {
			d.Fields[FieldSugars] = notFound(FieldSugars)
			d.HasSugars = false
		}},
		{"infinite total", func(d *Derived) { d.TotalSugar = math.Inf(1) }},
		{"infinite value", func(d *Derived) {
			f := d.Fields[FieldSugars]
			f.Value = math.Inf(1)
			d.Fields[FieldSugars] = f
		}},
		{"misfiled field", func(d *Derived) { d.Fields[FieldCalories] = parsedField(FieldSugars, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)
			_, _, err := Assemble(d)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedState)
		})
	}
}
