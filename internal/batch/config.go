package batch

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/pipeline"
	"github.com/MeKo-Tech/nutrigood/internal/report"
)

// Config holds all configuration for batch processing.
type Config struct {
	Workers    int
	Attributes classifier.Attributes

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
	ProgressWriter   io.Writer // defaults to stderr

	// OnReport is called for every finished report, in completion order.
	OnReport func(*report.Report)
}

func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Result holds the result of batch processing. Reports are in the order of
// ImagePaths.
type Result struct {
	Reports     []*report.Report
	ImagePaths  []string
	Duration    time.Duration
	WorkerCount int
}

// Stats summarizes the run.
func (r *Result) Stats() pipeline.ParallelStats {
	return pipeline.CalculateParallelStats(r.Reports, r.Duration, r.WorkerCount)
}

// HasFailures reports whether any image failed fatally.
func (r *Result) HasFailures() bool {
	return r.Stats().Failed > 0
}

// FormatResults formats the reports in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Reports, r.ImagePaths, r.Stats(), format)
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, _ = fmt.Fprint(w, output)
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", stats.TotalImages)
	_, _ = fmt.Fprintf(w, "  Complete: %d\n", stats.Complete)
	_, _ = fmt.Fprintf(w, "  Partial: %d\n", stats.Partial)
	_, _ = fmt.Fprintf(w, "  Not found: %d\n", stats.NotFound)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.Failed)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", stats.ThroughputPerSec)
}
