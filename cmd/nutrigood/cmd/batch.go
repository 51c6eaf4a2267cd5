package cmd

import (
	"log/slog"

	"github.com/MeKo-Tech/nutrigood/internal/batch"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch <paths...>",
	Short: "Analyze many label images in parallel",
	Long: `Analyze every label image in the given files and directories with a
bounded worker pool.

Files are discovered by the include and exclude patterns (matched against
the file name). Results are written in input order as JSON, CSV or text,
followed by a summary on stderr.

Examples:
  nutrigood batch ./labels
  nutrigood batch ./labels --recursive --workers 8 --format csv --output results.csv
  nutrigood batch ./labels --include "*.jpg" --exclude "*_thumb.*"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		format := resolveFormat(cmd, cfg)
		outputFile := resolveOutput(cmd, cfg)
		attrs, err := attributesFromFlags(cmd)
		if err != nil {
			return err
		}

		workers := cfg.Batch.Workers
		if cmd.Flags().Changed("workers") {
			workers, _ = cmd.Flags().GetInt("workers")
		}
		recursive := cfg.Batch.Recursive
		if cmd.Flags().Changed("recursive") {
			recursive, _ = cmd.Flags().GetBool("recursive")
		}
		include := cfg.Batch.Include
		if cmd.Flags().Changed("include") {
			include, _ = cmd.Flags().GetStringSlice("include")
		}
		exclude := cfg.Batch.Exclude
		if cmd.Flags().Changed("exclude") {
			exclude, _ = cmd.Flags().GetStringSlice("exclude")
		}
		showProgress, _ := cmd.Flags().GetBool("progress")
		quiet, _ := cmd.Flags().GetBool("quiet")

		pl, err := buildPipeline(cmd, cfg, false)
		if err != nil {
			return err
		}
		defer func() { _ = pl.Close() }()

		store, err := openHistory(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		var onReport func(*report.Report)
		if store != nil {
			defer func() { _ = store.Close() }()
			onReport = func(r *report.Report) {
				if r.Fatal() {
					return
				}
				if _, err := store.Save(cmd.Context(), r); err != nil {
					slog.Warn("Failed to record scan", "source", r.Source, "error", err)
				}
			}
		}

		res, err := batch.ProcessBatch(cmd.Context(), pl, args, &batch.Config{
			Workers:         workers,
			Attributes:      attrs,
			Recursive:       recursive,
			IncludePatterns: include,
			ExcludePatterns: exclude,
			ShowProgress:    showProgress,
			Quiet:           quiet,
			ProgressWriter:  cmd.ErrOrStderr(),
			OnReport:        onReport,
		})
		if err != nil {
			return err
		}

		if err := res.SaveResults(cmd.OutOrStdout(), format, outputFile, quiet); err != nil {
			return err
		}
		res.PrintStats(cmd.ErrOrStderr(), quiet)
		if res.HasFailures() {
			return ErrAnalysisFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringP("format", "f", outputFormatJSON, "output format (json, csv, text)")
	batchCmd.Flags().StringP("output", "o", "", "write results to a file instead of stdout")
	batchCmd.Flags().IntP("workers", "w", 0, "number of parallel workers (default from config, else CPU count)")
	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "file name patterns to include (e.g. *.png)")
	batchCmd.Flags().StringSlice("exclude", nil, "file name patterns to exclude")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	batchCmd.Flags().BoolP("quiet", "q", false, "suppress progress and statistics")
	addAttributeFlags(batchCmd)
	addPipelineFlags(batchCmd)
}
