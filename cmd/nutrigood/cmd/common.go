package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"slices"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/config"
	"github.com/MeKo-Tech/nutrigood/internal/history"
	"github.com/MeKo-Tech/nutrigood/internal/ocr"
	"github.com/MeKo-Tech/nutrigood/internal/pipeline"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/spf13/cobra"
)

// recognizerOverride replaces Tesseract when set. Tests use it to run the
// image commands without OCR data installed.
var recognizerOverride ocr.Recognizer

// textOnlyRecognizer backs pipelines that only ever see text input.
var textOnlyRecognizer = ocr.RecognizerFunc(func(context.Context, image.Image) ([]ocr.Line, error) {
	return nil, errors.New("image input is not supported here")
})

// buildPipeline creates the analysis pipeline from cfg and the common
// pipeline flags of cmd. textOnly skips Tesseract initialization.
func buildPipeline(cmd *cobra.Command, cfg *config.Config, textOnly bool) (*pipeline.Pipeline, error) {
	pCfg := cfg.ToPipelineConfig()
	if cmd.Flags().Changed("language") {
		pCfg.Language, _ = cmd.Flags().GetString("language")
	}
	if cmd.Flags().Changed("model") {
		pCfg.Classifier.ModelPath, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("models-dir") {
		pCfg.Classifier.ModelsDir, _ = cmd.Flags().GetString("models-dir")
	}
	if cmd.Flags().Changed("no-classifier") {
		pCfg.DisableClassifier, _ = cmd.Flags().GetBool("no-classifier")
	}
	if cmd.Flags().Changed("validate") {
		pCfg.Validate, _ = cmd.Flags().GetBool("validate")
	}
	if !slices.Contains(classifier.Languages(), pCfg.Language) {
		return nil, fmt.Errorf("unsupported language: %s (must be one of: %v)", pCfg.Language, classifier.Languages())
	}

	b := pipeline.NewBuilder().WithConfig(pCfg)
	switch {
	case recognizerOverride != nil:
		b.WithRecognizer(recognizerOverride)
	case textOnly:
		b.WithRecognizer(textOnlyRecognizer)
	}
	p, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	return p, nil
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("language", "en", "report language (en, id)")
	cmd.Flags().String("model", "", "ONNX sugar model path or file name (heuristic when empty)")
	cmd.Flags().String("models-dir", "", "directory searched for model file names (default $NUTRIGOOD_MODELS_DIR or ./models)")
	cmd.Flags().Bool("no-classifier", false, "skip sugar classification")
	cmd.Flags().Bool("validate", false, "validate every report against the JSON schema")
}

func addAttributeFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("age", 0, "consumer age in years, forwarded to the classifier")
	cmd.Flags().Float64("weight", 0, "consumer weight in kg, forwarded to the classifier")
}

// attributesFromFlags returns the age and weight flags. Unset flags stay nil.
func attributesFromFlags(cmd *cobra.Command) (classifier.Attributes, error) {
	var attrs classifier.Attributes
	for _, f := range []struct {
		name string
		dst  **float64
	}{{"age", &attrs.Age}, {"weight", &attrs.Weight}} {
		if !cmd.Flags().Changed(f.name) {
			continue
		}
		v, err := cmd.Flags().GetFloat64(f.name)
		if err != nil {
			return attrs, err
		}
		if v < 0 {
			return attrs, fmt.Errorf("invalid %s: %v (must not be negative)", f.name, v)
		}
		*f.dst = &v
	}
	return attrs, nil
}

// openHistory opens the configured history store. When the store is
// disabled and not required it returns nil.
func openHistory(ctx context.Context, cfg *config.Config, required bool) (*history.Store, error) {
	if !cfg.History.Enabled && !required {
		return nil, nil
	}
	store, err := history.Open(ctx, history.Config{Driver: cfg.History.Driver, DSN: cfg.History.DSN}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// formatReports renders reports for the single-shot commands.
func formatReports(reports []*report.Report, format string) (string, error) {
	switch format {
	case outputFormatJSON, "":
		out, err := report.ToJSON(reports...)
		if err != nil {
			return "", err
		}
		return out + "\n", nil
	case outputFormatText:
		var out string
		for _, r := range reports {
			s, err := report.ToText(r)
			if err != nil {
				return "", err
			}
			out += s
		}
		return out, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (must be json or text)", format)
	}
}

// writeOutput writes content to outputFile, or to the command's stdout.
func writeOutput(cmd *cobra.Command, content, outputFile string) error {
	if outputFile == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func anyFatal(reports []*report.Report) bool {
	return slices.ContainsFunc(reports, func(r *report.Report) bool { return r == nil || r.Fatal() })
}

// resolveFormat returns the --format flag, falling back to output.format.
func resolveFormat(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("format") {
		f, _ := cmd.Flags().GetString("format")
		return f
	}
	if cfg.Output.Format != "" {
		return cfg.Output.Format
	}
	f, _ := cmd.Flags().GetString("format")
	return f
}

// resolveOutput returns the --output flag, falling back to output.file.
func resolveOutput(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("output") {
		f, _ := cmd.Flags().GetString("output")
		return f
	}
	return cfg.Output.File
}
