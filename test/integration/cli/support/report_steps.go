package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/cucumber/godog"
)

// lastBody is the most recent HTTP response, or command stdout when no
// request was made since the last command.
func (testCtx *TestContext) lastBody() string {
	if testCtx.LastHTTPStatusCode != 0 {
		return testCtx.LastHTTPResponse
	}
	return testCtx.LastStdout
}

// lastReports decodes the last output as one report, an array of reports
// or a batch result.
func (testCtx *TestContext) lastReports() ([]report.Report, error) {
	body := strings.TrimSpace(testCtx.lastBody())
	if body == "" {
		return nil, errors.New("no output to decode")
	}
	if strings.HasPrefix(body, "[") {
		var reports []report.Report
		if err := json.Unmarshal([]byte(body), &reports); err != nil {
			return nil, fmt.Errorf("output is not a report array: %w\nOutput: %s", err, body)
		}
		return reports, nil
	}
	var batch struct {
		Reports []report.Report `json:"reports"`
	}
	if err := json.Unmarshal([]byte(body), &batch); err == nil && batch.Reports != nil {
		return batch.Reports, nil
	}
	var r report.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("output is not a report: %w\nOutput: %s", err, body)
	}
	return []report.Report{r}, nil
}

func (testCtx *TestContext) lastReport() (report.Report, error) {
	reports, err := testCtx.lastReports()
	if err != nil {
		return report.Report{}, err
	}
	if len(reports) != 1 {
		return report.Report{}, fmt.Errorf("expected a single report, got %d", len(reports))
	}
	return reports[0], nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.lastBody()), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.lastBody())
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContainReports(n int) error {
	reports, err := testCtx.lastReports()
	if err != nil {
		return err
	}
	if len(reports) != n {
		return fmt.Errorf("expected %d reports, got %d", n, len(reports))
	}
	return nil
}

func (testCtx *TestContext) theReportOutcomeShouldBe(outcome string) error {
	r, err := testCtx.lastReport()
	if err != nil {
		return err
	}
	if string(r.Outcome) != outcome {
		return fmt.Errorf("expected outcome %q, got %q", outcome, r.Outcome)
	}
	return nil
}

func (testCtx *TestContext) theReportMessageShouldBe(message string) error {
	r, err := testCtx.lastReport()
	if err != nil {
		return err
	}
	if r.Message != message {
		return fmt.Errorf("expected message %q, got %q", message, r.Message)
	}
	return nil
}

func (testCtx *TestContext) theReportShouldBeFatal() error {
	r, err := testCtx.lastReport()
	if err != nil {
		return err
	}
	if !r.Fatal() {
		return fmt.Errorf("expected a fatal report, got message %q", r.Message)
	}
	if r.Error == "" {
		return errors.New("fatal report carries no error")
	}
	return nil
}

// checkValue compares an optional numeric field against want.
func checkValue(name string, got *float64, want float64) error {
	if got == nil {
		return fmt.Errorf("%s is missing", name)
	}
	if math.Abs(*got-want) > 0.01 {
		return fmt.Errorf("expected %s %.2f, got %.2f", name, want, *got)
	}
	return nil
}

func (testCtx *TestContext) theTotalSugarShouldBe(want float64) error {
	r, err := testCtx.lastReport()
	if err != nil {
		return err
	}
	return checkValue("total sugar", r.NutritionInfo.TotalSugar, want)
}

func (testCtx *TestContext) theSugarsShouldBe(want float64) error {
	r, err := testCtx.lastReport()
	if err != nil {
		return err
	}
	return checkValue("sugars", r.NutritionInfo.Sugars, want)
}

func (testCtx *TestContext) theServingsPerContainerShouldBe(want float64) error {
	r, err := testCtx.lastReport()
	if err != nil {
		return err
	}
	return checkValue("servings per container", r.NutritionInfo.ServingsPerContainer, want)
}

func (testCtx *TestContext) theReportShouldHaveNoTotalSugar() error {
	r, err := testCtx.lastReport()
	if err != nil {
		return err
	}
	if r.NutritionInfo.TotalSugar != nil {
		return fmt.Errorf("expected no total sugar, got %.2f", *r.NutritionInfo.TotalSugar)
	}
	return nil
}

func (testCtx *TestContext) theNutritionInfoShouldBeEmpty() error {
	r, err := testCtx.lastReport()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(r.NutritionInfo)
	if err != nil {
		return err
	}
	if string(raw) != "{}" {
		return fmt.Errorf("expected empty nutrition_info, got %s", raw)
	}
	return nil
}

func (testCtx *TestContext) theSugarCategoryShouldBe(category string) error {
	r, err := testCtx.lastReport()
	if err != nil {
		return err
	}
	if r.Analysis == nil {
		return errors.New("report has no analysis")
	}
	if r.Analysis.SugarCategory != category {
		return fmt.Errorf("expected sugar category %q, got %q", category, r.Analysis.SugarCategory)
	}
	return nil
}

func (testCtx *TestContext) theReportShouldHaveNoAnalysis() error {
	r, err := testCtx.lastReport()
	if err != nil {
		return err
	}
	if r.Analysis != nil {
		return fmt.Errorf("expected no analysis, got %+v", *r.Analysis)
	}
	return nil
}

func (testCtx *TestContext) allReportsShouldBe(outcome string) error {
	reports, err := testCtx.lastReports()
	if err != nil {
		return err
	}
	for i, r := range reports {
		if r.Outcome != nutrition.OutcomeKind(outcome) || r.Fatal() {
			return fmt.Errorf("report %d (%s): outcome %q, message %q", i, r.Source, r.Outcome, r.Message)
		}
	}
	return nil
}

// RegisterReportSteps registers assertions on analysis reports.
func (testCtx *TestContext) RegisterReportSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should contain (\d+) reports?$`, testCtx.theOutputShouldContainReports)
	sc.Step(`^the report outcome should be "([^"]*)"$`, testCtx.theReportOutcomeShouldBe)
	sc.Step(`^the report message should be "([^"]*)"$`, testCtx.theReportMessageShouldBe)
	sc.Step(`^the report should be fatal$`, testCtx.theReportShouldBeFatal)
	sc.Step(`^the total sugar should be (\d+(?:\.\d+)?)$`, testCtx.theTotalSugarShouldBe)
	sc.Step(`^the sugars should be (\d+(?:\.\d+)?)$`, testCtx.theSugarsShouldBe)
	sc.Step(`^the servings per container should be (\d+(?:\.\d+)?)$`, testCtx.theServingsPerContainerShouldBe)
	sc.Step(`^the report should have no total sugar$`, testCtx.theReportShouldHaveNoTotalSugar)
	sc.Step(`^the nutrition info should be empty$`, testCtx.theNutritionInfoShouldBeEmpty)
	sc.Step(`^the sugar category should be "([^"]*)"$`, testCtx.theSugarCategoryShouldBe)
	sc.Step(`^the report should have no analysis$`, testCtx.theReportShouldHaveNoAnalysis)
	sc.Step(`^all reports should be "([^"]*)"$`, testCtx.allReportsShouldBe)
}
