package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/history"
	"github.com/spf13/cobra"
)

// historyCmd groups the scan history commands.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export recorded scans",
	Long: `Inspect and export the scan history.

The store is selected by history.driver (sqlite or pgx) and history.dsn in
the config, or by NUTRIGOOD_HISTORY_DRIVER and NUTRIGOOD_HISTORY_DSN.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent scans, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		store, err := openHistory(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		recs, err := store.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return printRecords(cmd, recs, format)
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the scan history as an XLSX spreadsheet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile == "" {
			outputFile = fmt.Sprintf("nutrigood-history-%s.xlsx", time.Now().UTC().Format("20060102"))
		}

		store, err := openHistory(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		f, err := os.Create(outputFile) //nolint:gosec // G304: user-chosen output path
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		n, err := store.ExportXLSX(cmd.Context(), f)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("failed to export history: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d scans to %s\n", n, outputFile)
		return nil
	},
}

func printRecords(cmd *cobra.Command, recs []history.Record, format string) error {
	switch format {
	case outputFormatJSON:
		if recs == nil {
			recs = []history.Record{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	case outputFormatText:
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "SCANNED AT\tOUTCOME\tTOTAL SUGAR\tCATEGORY\tSOURCE\tID")
		for _, r := range recs {
			total := "-"
			if r.TotalSugar != nil {
				total = fmt.Sprintf("%.2f g", *r.TotalSugar)
			}
			category := r.SugarCategory
			if category == "" {
				category = "-"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.CreatedAt.Local().Format(time.DateTime), r.Outcome, total, category, r.Source, r.ID)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (must be json or text)", format)
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyExportCmd)
	historyListCmd.Flags().IntP("limit", "n", 20, "maximum number of scans (0 for all)")
	historyListCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	historyExportCmd.Flags().StringP("output", "o", "", "output file (default nutrigood-history-YYYYMMDD.xlsx)")
}
