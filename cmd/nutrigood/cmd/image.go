package cmd

import (
	"log/slog"

	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/spf13/cobra"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image <files...>",
	Short: "Analyze nutrition label images",
	Long: `Analyze one or more nutrition label images.

Each image is preprocessed (grayscale, deskew, binarize), segmented into
text blocks and read with Tesseract. The serving count and sugar
content are extracted, the total sugar is derived and the sugar model
classifies the result.

Supported formats: JPEG, PNG, BMP

Examples:
  nutrigood image label.jpg
  nutrigood image front.png back.png --format text
  nutrigood image label.jpg --age 30 --weight 65 --output report.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		format := resolveFormat(cmd, cfg)
		outputFile := resolveOutput(cmd, cfg)
		attrs, err := attributesFromFlags(cmd)
		if err != nil {
			return err
		}

		pl, err := buildPipeline(cmd, cfg, false)
		if err != nil {
			return err
		}
		defer func() { _ = pl.Close() }()

		store, err := openHistory(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		if store != nil {
			defer func() { _ = store.Close() }()
		}

		reports := make([]*report.Report, 0, len(args))
		for _, path := range args {
			r, err := pl.ProcessFile(cmd.Context(), path, attrs)
			if err != nil {
				slog.Error("Analysis failed", "path", path, "error", err)
			} else if store != nil {
				if _, err := store.Save(cmd.Context(), r); err != nil {
					slog.Warn("Failed to record scan", "path", path, "error", err)
				}
			}
			reports = append(reports, r)
		}

		out, err := formatReports(reports, format)
		if err != nil {
			return err
		}
		if err := writeOutput(cmd, out, outputFile); err != nil {
			return err
		}
		if anyFatal(reports) {
			return ErrAnalysisFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.Flags().StringP("format", "f", outputFormatJSON, "output format (json, text)")
	imageCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	addAttributeFlags(imageCmd)
	addPipelineFlags(imageCmd)
}

