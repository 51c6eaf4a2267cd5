package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ExpectedNutrition is the outcome a fixture should produce. Nil pointers
// mean the value must be absent.
type ExpectedNutrition struct {
	Outcome    string   `json:"outcome"`
	Servings   float64  `json:"servings"`
	Sugars     *float64 `json:"sugars,omitempty"`
	TotalSugar *float64 `json:"total_sugar,omitempty"`
}

// LabelFixture pairs label text with its expected extraction.
type LabelFixture struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Lines       []string          `json:"lines"`
	Expected    ExpectedNutrition `json:"expected"`
}

// Text joins the fixture lines as OCR would.
func (f LabelFixture) Text() string { return strings.Join(f.Lines, "\n") }

func ptr(v float64) *float64 { return &v }

// SampleFixtures returns the reference label scenarios.
func SampleFixtures() []LabelFixture {
	return []LabelFixture{
		{
			Name:        "english_complete",
			Description: "Serving count and sugar both present",
			Lines:       []string{"Sajian per kemasan: 3", "Sugars: 5g"},
			Expected:    ExpectedNutrition{Outcome: "complete", Servings: 3, Sugars: ptr(5), TotalSugar: ptr(15)},
		},
		{
			Name:        "indonesian_complete",
			Description: "Indonesian synonyms for both fields",
			Lines:       []string{"Takaran saji 2", "Gula 10g"},
			Expected:    ExpectedNutrition{Outcome: "complete", Servings: 2, Sugars: ptr(10), TotalSugar: ptr(20)},
		},
		{
			Name:        "empty",
			Description: "No text at all",
			Lines:       nil,
			Expected:    ExpectedNutrition{Outcome: "not_found", Servings: 1},
		},
		{
			Name:        "unparsable_sugar",
			Description: "Sugar label with a garbled number",
			Lines:       []string{"Sugars: abcg"},
			Expected:    ExpectedNutrition{Outcome: "partial", Servings: 1},
		},
		{
			Name:        "servings_defaulted",
			Description: "Sugar present, serving count missing",
			Lines:       []string{"Sugars: 5g"},
			Expected:    ExpectedNutrition{Outcome: "partial", Servings: 1, Sugars: ptr(5), TotalSugar: ptr(5)},
		},
	}
}

// WriteFixtures stores each fixture as <dir>/<name>.json.
func WriteFixtures(dir string, fixtures []LabelFixture) error {
	if err := EnsureDir(dir); err != nil {
		return err
	}
	for _, f := range fixtures {
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal fixture %s: %w", f.Name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.Name+".json"), data, 0o600); err != nil {
			return fmt.Errorf("write fixture %s: %w", f.Name, err)
		}
	}
	return nil
}

// LoadFixtures reads every *.json fixture in dir, sorted by name.
func LoadFixtures(dir string) ([]LabelFixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)
	out := make([]LabelFixture, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p) //nolint:gosec // G304: fixture paths come from a test data directory
		if err != nil {
			return nil, fmt.Errorf("read fixture: %w", err)
		}
		var f LabelFixture
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse fixture %s: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}
