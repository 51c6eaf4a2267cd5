package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"golang.org/x/sync/errgroup"
)

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int                   // Number of parallel workers (0 = runtime.NumCPU())
	Attributes       classifier.Attributes // Forwarded to every analysis
	ProgressCallback ProgressCallback      // Optional progress reporting
	// Optional per-file error handler; fatal files still yield an "Error"
	// report in the results.
	ErrorHandler func(index int, path string, err error)
	// Optional handler called with every finished report, fatal or not.
	// It runs on worker goroutines.
	ReportHandler func(index int, r *report.Report)
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

// ProcessParallel analyzes image files with a bounded worker pool.
// Reports are returned in input order. A fatal file does not stop the batch;
// only cancellation of ctx does.
func (p *Pipeline) ProcessParallel(ctx context.Context, paths []string, config ParallelConfig) ([]*report.Report, error) {
	if len(paths) == 0 {
		return nil, errors.New("no images provided")
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	progress := config.ProgressCallback
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(paths))
	defer progress.OnComplete()

	reports := make([]*report.Report, len(paths))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.MaxWorkers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := p.ProcessFile(gctx, path, config.Attributes)
			reports[i] = r
			if config.ReportHandler != nil && gctx.Err() == nil {
				config.ReportHandler(i, r)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				progress.OnError(i, path, err)
				if config.ErrorHandler != nil {
					config.ErrorHandler(i, path, err)
				}
			}
			progress.OnProgress(int(done.Add(1)), len(paths))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

// ParallelStats holds statistics about a batch run.
type ParallelStats struct {
	TotalImages      int           `json:"total_images"`
	Succeeded        int           `json:"succeeded"`
	Failed           int           `json:"failed"`
	Complete         int           `json:"complete"`
	Partial          int           `json:"partial"`
	NotFound         int           `json:"not_found"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateParallelStats summarizes reports from one batch run.
func CalculateParallelStats(reports []*report.Report, duration time.Duration, workerCount int) ParallelStats {
	s := ParallelStats{TotalImages: len(reports), WorkerCount: workerCount, TotalDuration: duration}
	for _, r := range reports {
		switch {
		case r == nil || r.Fatal():
			s.Failed++
			continue
		case r.Outcome == nutrition.OutcomeComplete:
			s.Complete++
		case r.Outcome == nutrition.OutcomePartial:
			s.Partial++
		default:
			s.NotFound++
		}
		s.Succeeded++
	}
	if s.TotalImages > 0 && duration > 0 {
		s.AveragePerImage = duration / time.Duration(s.TotalImages)
		s.ThroughputPerSec = float64(s.TotalImages) / duration.Seconds()
	}
	return s
}
