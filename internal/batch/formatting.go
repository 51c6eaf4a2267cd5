package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/nutrigood/internal/pipeline"
	"github.com/MeKo-Tech/nutrigood/internal/report"
)

// formatBatchResults formats the batch reports in the specified format.
func formatBatchResults(reports []*report.Report, imagePaths []string, stats pipeline.ParallelStats,
	format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(reports, stats)
	case "csv":
		return formatCSV(reports, imagePaths)
	default: // text
		return formatText(reports, imagePaths, stats)
	}
}

// formatJSON formats results as one JSON document with a summary.
func formatJSON(reports []*report.Report, stats pipeline.ParallelStats) (string, error) {
	batchResult := struct {
		Summary pipeline.ParallelStats `json:"summary"`
		Reports []*report.Report       `json:"reports"`
	}{Summary: stats, Reports: reports}

	bts, err := json.MarshalIndent(batchResult, "", "  ")
	return string(bts), err
}

var csvHeader = []string{
	"file", "message", "outcome", "servings_per_container", "servings_defaulted", "sugars",
	"total_sugar", "calories", "sugar_category", "recommendation", "warnings", "error",
}

// formatCSV writes one row per image.
func formatCSV(reports []*report.Report, imagePaths []string) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write(csvHeader); err != nil {
		return "", err
	}

	for i, r := range reports {
		if r == nil {
			continue
		}
		info := r.NutritionInfo
		var category, recommendation string
		if r.Analysis != nil {
			category = r.Analysis.SugarCategory
			recommendation = r.Analysis.Recommendation
		}
		row := []string{
			imagePaths[i],
			r.Message,
			string(r.Outcome),
			formatOptional(info.ServingsPerContainer),
			strconv.FormatBool(info.ServingsDefaulted),
			formatOptional(info.Sugars),
			formatOptional(info.TotalSugar),
			formatOptional(info.Calories),
			category,
			recommendation,
			strings.Join(r.Warnings, "; "),
			r.Error,
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// formatText renders every report followed by a one-line summary.
func formatText(reports []*report.Report, imagePaths []string, stats pipeline.ParallelStats) (string, error) {
	var output strings.Builder
	for i, r := range reports {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("# %s\n", imagePaths[i]))
		if r == nil {
			continue
		}
		text, err := report.ToText(r)
		if err != nil {
			return "", err
		}
		output.WriteString(text)
	}
	output.WriteString(fmt.Sprintf("\n%d images: %d complete, %d partial, %d not found, %d failed\n",
		stats.TotalImages, stats.Complete, stats.Partial, stats.NotFound, stats.Failed))
	return output.String(), nil
}
