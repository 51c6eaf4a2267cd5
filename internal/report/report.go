// Package report renders pipeline results into the stable output contract:
// a JSON object with message, nutrition_info and analysis keys.
package report

import (
	"strconv"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
)

// MessageError is the message of every fatal report.
const MessageError = "Error"

// NutritionInfo is the extracted facts. Every key is omitted when unknown,
// so a not-found result renders as {}.
type NutritionInfo struct {
	ServingsPerContainer *float64          `json:"servings_per_container,omitempty"`
	ServingsDefaulted    bool              `json:"servings_defaulted,omitempty"`
	Sugars               *float64          `json:"sugars,omitempty"`
	TotalSugar           *float64          `json:"total_sugar,omitempty"`
	Calories             *float64          `json:"calories,omitempty"`
	Display              map[string]string `json:"display,omitempty"`
}

// Report is the structured result of one analysis.
type Report struct {
	ID               string                `json:"id,omitempty"`
	Message          string                `json:"message"`
	Outcome          nutrition.OutcomeKind `json:"outcome"`
	NutritionInfo    NutritionInfo         `json:"nutrition_info"`
	Analysis         *classifier.Analysis  `json:"analysis,omitempty"`
	Warnings         []string              `json:"warnings,omitempty"`
	Error            string                `json:"error,omitempty"`
	Source           string                `json:"source,omitempty"`
	Text             string                `json:"text,omitempty"`
	DeskewAngle      float64               `json:"deskew_angle,omitempty"`
	Blocks           int                   `json:"blocks,omitempty"`
	OCRConfidence    float64               `json:"ocr_confidence,omitempty"` // mean line confidence, 0..1
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
	CreatedAt        time.Time             `json:"created_at"`
}

// Input collects what a report is built from.
type Input struct {
	Source   string
	Result   nutrition.NutritionResult
	Outcome  nutrition.OutcomeKind
	Text     string
	Analysis *classifier.Analysis
	Warnings []string
	Language string
	Elapsed  time.Duration
}

// New builds a successful (possibly partial or not-found) report.
func New(in Input) *Report {
	r := &Report{
		Message:          outcomeMessage(in.Outcome, in.Language),
		Outcome:          in.Outcome,
		Analysis:         in.Analysis,
		Source:           in.Source,
		Text:             in.Text,
		ProcessingTimeMs: in.Elapsed.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	r.Warnings = append(in.Result.Warnings(), in.Warnings...)
	if len(r.Warnings) == 0 {
		r.Warnings = nil
	}
	if in.Outcome != nutrition.OutcomeNotFound {
		r.NutritionInfo = infoFrom(in.Result)
	}
	return r
}

// Failed builds a fatal report for err.
func Failed(source string, err error, elapsed time.Duration) *Report {
	return &Report{
		Message:          MessageError,
		Outcome:          nutrition.OutcomeNotFound,
		Error:            err.Error(),
		Source:           source,
		ProcessingTimeMs: elapsed.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
}

// Fatal reports whether r describes a failed analysis.
func (r *Report) Fatal() bool { return r.Message == MessageError }

func infoFrom(res nutrition.NutritionResult) NutritionInfo {
	info := NutritionInfo{Display: map[string]string{}}
	servings := res.ServingsPerContainer
	info.ServingsPerContainer = &servings
	info.ServingsDefaulted = res.ServingsDefaulted
	info.Display["Servings Per Container"] = strconv.FormatFloat(servings, 'f', -1, 64)

	if v, ok := res.Sugars(); ok {
		info.Sugars = &v
		info.Display["Sugars"] = strconv.FormatFloat(v, 'f', -1, 64) + " g"
	}
	if res.TotalSugar != nil {
		total := *res.TotalSugar
		info.TotalSugar = &total
		info.Display["Total Sugar"] = strconv.FormatFloat(nutrition.RoundDisplay(total), 'f', 2, 64) + " g"
	}
	if v, ok := res.Values[nutrition.FieldCalories]; ok {
		info.Calories = &v
		unit := res.Fields[nutrition.FieldCalories].Unit
		if unit == "" {
			unit = "kcal"
		}
		info.Display["Calories"] = strconv.FormatFloat(v, 'f', -1, 64) + " " + unit
	}
	return info
}
