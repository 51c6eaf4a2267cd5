package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ToJSON serializes reports as pretty JSON. A single report is written as an
// object, several as an array.
func ToJSON(reports ...*Report) (string, error) {
	var v any = reports
	if len(reports) == 1 {
		v = reports[0]
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToText renders a report for terminals.
func ToText(r *Report) (string, error) {
	if r == nil {
		return "", errors.New("nil report")
	}
	var sb strings.Builder
	if r.Source != "" {
		fmt.Fprintf(&sb, "%s\n", r.Source)
	}
	fmt.Fprintf(&sb, "  %s (%s)\n", r.Message, r.Outcome)
	if r.Error != "" {
		fmt.Fprintf(&sb, "  error: %s\n", r.Error)
	}

	keys := make([]string, 0, len(r.NutritionInfo.Display))
	for k := range r.NutritionInfo.Display {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-24s %s\n", k+":", r.NutritionInfo.Display[k])
	}
	if r.NutritionInfo.ServingsDefaulted {
		sb.WriteString("  (serving count not found, assumed 1)\n")
	}
	if r.OCRConfidence > 0 {
		fmt.Fprintf(&sb, "  %-24s %.0f%%\n", "OCR confidence:", r.OCRConfidence*100)
	}
	if a := r.Analysis; a != nil {
		fmt.Fprintf(&sb, "  %-24s %s\n", "Sugar category:", a.SugarCategory)
		fmt.Fprintf(&sb, "  %-24s %s\n", "Recommendation:", a.Recommendation)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "  warning: %s\n", w)
	}
	return sb.String(), nil
}
