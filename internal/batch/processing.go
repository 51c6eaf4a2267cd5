package batch

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/MeKo-Tech/nutrigood/internal/pipeline"
	"github.com/MeKo-Tech/nutrigood/internal/report"
)

// processImagesParallel fans the files out over the pipeline's worker pool.
func processImagesParallel(ctx context.Context, pl *pipeline.Pipeline, files []string,
	config *Config) ([]*report.Report, error) {
	var progress pipeline.ProgressCallback = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug)
	if config.ShowProgress && !config.Quiet {
		w := config.ProgressWriter
		if w == nil {
			w = os.Stderr
		}
		console := pipeline.NewConsoleProgressCallback(w, "Processing: ")
		if config.ProgressInterval > 0 {
			console = console.WithUpdateInterval(config.ProgressInterval)
		}
		progress = pipeline.NewMultiProgressCallback(progress, console)
	}

	var mu sync.Mutex
	return pl.ProcessParallel(ctx, files, pipeline.ParallelConfig{
		MaxWorkers:       config.workers(),
		Attributes:       config.Attributes,
		ProgressCallback: progress,
		ReportHandler: func(_ int, r *report.Report) {
			if config.OnReport == nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			config.OnReport(r)
		},
	})
}
