package report

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, text string) nutrition.Analysis {
	t.Helper()
	e, err := nutrition.NewDefaultEngine()
	require.NoError(t, err)
	a, err := e.Analyze(text)
	require.NoError(t, err)
	return a
}

func newReport(t *testing.T, text, lang string) *Report {
	t.Helper()
	a := analyze(t, text)
	return New(Input{Source: "label.png", Result: a.Result, Outcome: a.Outcome, Text: a.Normalized, Language: lang, Elapsed: 12 * time.Millisecond})
}

func TestNew_Complete(t *testing.T) {
	r := newReport(t, "Sajian per kemasan: 3\nSugars: 5g", "en")

	assert.Equal(t, "Success", r.Message)
	assert.Equal(t, nutrition.OutcomeComplete, r.Outcome)
	require.NotNil(t, r.NutritionInfo.TotalSugar)
	assert.InDelta(t, 15, *r.NutritionInfo.TotalSugar, 1e-9)
	assert.Equal(t, "5 g", r.NutritionInfo.Display["Sugars"])
	assert.Equal(t, "15.00 g", r.NutritionInfo.Display["Total Sugar"])
	assert.Equal(t, "3", r.NutritionInfo.Display["Servings Per Container"])
	assert.Empty(t, r.Warnings)
	assert.Equal(t, int64(12), r.ProcessingTimeMs)
	assert.False(t, r.Fatal())
	require.NoError(t, Validate(r))
}

func TestNew_NotFoundHasEmptyNutritionInfo(t *testing.T) {
	r := newReport(t, "", "id")

	assert.Equal(t, "Tidak ditemukan informasi nutrisi yang valid", r.Message)
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{}, decoded["nutrition_info"])
	assert.NotContains(t, decoded, "analysis")
	require.NoError(t, ValidateJSON(data))
}

func TestNew_PartialCarriesWarnings(t *testing.T) {
	r := newReport(t, "Sugars: abcg", "en")
	r.Analysis = nil

	assert.Equal(t, nutrition.OutcomePartial, r.Outcome)
	assert.Equal(t, "Nutrition information is incomplete", r.Message)
	assert.Nil(t, r.NutritionInfo.TotalSugar)
	assert.Nil(t, r.NutritionInfo.Sugars)
	assert.True(t, r.NutritionInfo.ServingsDefaulted)
	assert.Len(t, r.Warnings, 2)
	require.NoError(t, Validate(r))
}

func TestNew_WithAnalysisAndCalories(t *testing.T) {
	a := analyze(t, "Energi total 150 kkal\nTakaran saji 2\nGula 10g")
	an := classifier.Interpret(classifier.Prediction{SugarProbability: 0.7, RecommendationProbability: 0.2}, "id")
	r := New(Input{Result: a.Result, Outcome: a.Outcome, Analysis: &an, Warnings: []string{"model: slow"}, Language: "id"})

	assert.Equal(t, "Berhasil", r.Message)
	assert.Equal(t, "150 kkal", r.NutritionInfo.Display["Calories"])
	assert.Equal(t, []string{"model: slow"}, r.Warnings)
	require.NoError(t, Validate(r))

	text, err := ToText(r)
	require.NoError(t, err)
	assert.Contains(t, text, "Tinggi Gula")
	assert.Contains(t, text, "20.00 g")
	assert.Contains(t, text, "warning: model: slow")
}

func TestFailed(t *testing.T) {
	r := Failed("broken.png", errors.New("invalid image: empty"), time.Second)

	assert.True(t, r.Fatal())
	assert.Equal(t, "Error", r.Message)
	require.NoError(t, Validate(r))

	out, err := ToJSON(r)
	require.NoError(t, err)
	assert.Contains(t, out, `"nutrition_info": {}`)
}

func TestValidate_RejectsBrokenReports(t *testing.T) {
	r := newReport(t, "Sugars: 5g", "en")
	r.Message = ""
	assert.Error(t, Validate(r))

	fatal := Failed("x", errors.New("boom"), 0)
	zero := 0.0
	fatal.NutritionInfo.Sugars = &zero
	assert.Error(t, Validate(fatal))

	assert.Error(t, ValidateJSON([]byte(`{"message":"Success","outcome":"maybe","nutrition_info":{},"processing_time_ms":0}`)))
	assert.Error(t, ValidateJSON([]byte(`not json`)))
}

func TestToJSON_Many(t *testing.T) {
	out, err := ToJSON(Failed("a", errors.New("x"), 0), Failed("b", errors.New("y"), 0))
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 2)

	_, err = ToText(nil)
	assert.Error(t, err)
	assert.Contains(t, Schema(), "nutrition_info")
}
