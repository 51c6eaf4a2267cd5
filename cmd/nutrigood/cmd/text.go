package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/spf13/cobra"
)

// textCmd analyzes label text that was already recognized.
var textCmd = &cobra.Command{
	Use:   "text [text|-]",
	Short: "Analyze recognized nutrition label text",
	Long: `Analyze nutrition label text without the image stages.

The text is read from the argument, or from stdin when the argument is "-"
or missing.

Examples:
  nutrigood text "Sajian per kemasan: 3
Sugars: 5g"
  tesseract label.png - | nutrigood text -
  nutrigood text --format text < label.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		format := resolveFormat(cmd, cfg)
		outputFile := resolveOutput(cmd, cfg)
		attrs, err := attributesFromFlags(cmd)
		if err != nil {
			return err
		}

		text, err := readTextArg(cmd, args)
		if err != nil {
			return err
		}

		pl, err := buildPipeline(cmd, cfg, true)
		if err != nil {
			return err
		}
		defer func() { _ = pl.Close() }()

		r, err := pl.ProcessText(cmd.Context(), text, attrs)
		if err != nil {
			slog.Error("Analysis failed", "source", r.Source, "error", err)
		} else {
			store, err := openHistory(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			if store != nil {
				defer func() { _ = store.Close() }()
				if _, err := store.Save(cmd.Context(), r); err != nil {
					return fmt.Errorf("failed to record scan: %w", err)
				}
			}
		}

		out, err := formatReports([]*report.Report{r}, format)
		if err != nil {
			return err
		}
		if err := writeOutput(cmd, out, outputFile); err != nil {
			return err
		}
		if r.Fatal() {
			return ErrAnalysisFailed
		}
		return nil
	},
}

func readTextArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" && len(args) == 0 {
		return "", errors.New("no text provided (pass it as an argument or on stdin)")
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(textCmd)
	textCmd.Flags().StringP("format", "f", outputFormatJSON, "output format (json, text)")
	textCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	addAttributeFlags(textCmd)
	addPipelineFlags(textCmd)
}
