package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/MeKo-Tech/nutrigood/internal/watch"
	"github.com/spf13/cobra"
)

// watchCmd analyzes images as they are dropped into directories.
var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Analyze label images as they appear in directories",
	Long: `Watch directories (recursively) and analyze every new or changed label
image. Each report is printed as one JSON line and, when history is enabled,
recorded in the history store.

Without arguments the directories from watch.dirs in the config are used.

Examples:
  nutrigood watch ./inbox
  nutrigood watch ./inbox ./scans --history --debounce 1s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		dirs := args
		if len(dirs) == 0 {
			dirs = cfg.Watch.Dirs
		}
		if len(dirs) == 0 {
			return fmt.Errorf("no directories to watch (pass them as arguments or set watch.dirs)")
		}
		debounce := cfg.Watch.Debounce
		if cmd.Flags().Changed("debounce") {
			debounce, _ = cmd.Flags().GetDuration("debounce")
		}
		if cmd.Flags().Changed("history") {
			cfg.History.Enabled, _ = cmd.Flags().GetBool("history")
		}
		skipExisting, _ := cmd.Flags().GetBool("skip-existing")
		attrs, err := attributesFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pl, err := buildPipeline(cmd, cfg, false)
		if err != nil {
			return err
		}
		defer func() { _ = pl.Close() }()

		store, err := openHistory(ctx, cfg, false)
		if err != nil {
			return err
		}
		var recorder watch.Recorder
		if store != nil {
			defer func() { _ = store.Close() }()
			recorder = store
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		w := watch.New(watch.Config{
			Dirs:            dirs,
			IncludePatterns: cfg.Batch.Include,
			ExcludePatterns: cfg.Batch.Exclude,
			InitialScan:     !skipExisting,
			Debounce:        debounce,
			Attributes:      attrs,
		}, pl, recorder, slog.Default()).OnReport(func(r *report.Report) {
			if err := enc.Encode(r); err != nil {
				slog.Error("Failed to write report", "source", r.Source, "error", err)
			}
		})

		slog.Info("Watching for label images", "dirs", dirs, "history", store != nil)
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		slog.Info("Watcher stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("debounce", 0, "quiet period before a changed file is analyzed (default from config)")
	watchCmd.Flags().Bool("skip-existing", false, "do not analyze files already present at start")
	watchCmd.Flags().Bool("history", false, "record every successful scan in the history store")
	addAttributeFlags(watchCmd)
	addPipelineFlags(watchCmd)
}
