package support

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/nutrigood/internal/testutil"
	"github.com/cucumber/godog"
)

// aLabelImageWithLines renders the doc string lines as a label photo.
func (testCtx *TestContext) aLabelImageWithLines(name string, lines *godog.DocString) error {
	return testCtx.writeLabelImage(name, strings.Split(lines.Content, "\n"), testutil.DefaultLabelOptions())
}

func (testCtx *TestContext) aSkewedLabelImageWithLines(name string, degrees float64, lines *godog.DocString) error {
	opts := testutil.DefaultLabelOptions()
	opts.Rotation = degrees
	return testCtx.writeLabelImage(name, strings.Split(lines.Content, "\n"), opts)
}

func (testCtx *TestContext) writeLabelImage(name string, lines []string, opts testutil.LabelOptions) error {
	path := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	file, err := os.Create(path) //nolint:gosec // G304: scenario-controlled path
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := png.Encode(file, testutil.RenderLabel(lines, opts)); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	testCtx.TrackFile(path)
	return file.Close()
}

func (testCtx *TestContext) aFileContaining(name string, content *godog.DocString) error {
	path := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(path, []byte(content.Content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	testCtx.TrackFile(path)
	return nil
}

// RegisterLabelSteps registers steps that create scenario inputs.
func (testCtx *TestContext) RegisterLabelSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a label image "([^"]*)" with lines:$`, testCtx.aLabelImageWithLines)
	sc.Step(`^a label image "([^"]*)" rotated by (-?\d+(?:\.\d+)?) degrees with lines:$`, testCtx.aSkewedLabelImageWithLines)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContaining)
}
