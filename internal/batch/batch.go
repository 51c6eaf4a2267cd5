// Package batch analyzes many label images in one run and summarizes the
// reports.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/pipeline"
)

// ProcessBatch discovers images under inputs and analyzes them with pl.
// Files that fail are reported in the result; only discovery problems and
// cancellation return an error.
func ProcessBatch(ctx context.Context, pl *pipeline.Pipeline, inputs []string, config *Config) (*Result, error) {
	if pl == nil {
		return nil, errors.New("pipeline is required")
	}
	files, err := DiscoverImageFiles(inputs, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	startTime := time.Now()
	reports, err := processImagesParallel(ctx, pl, files, config)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	return &Result{
		Reports:     reports,
		ImagePaths:  files,
		Duration:    duration,
		WorkerCount: config.workers(),
	}, nil
}
