package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/ocr"
	"github.com/MeKo-Tech/nutrigood/internal/pipeline"
	"github.com/MeKo-Tech/nutrigood/internal/preprocess"
)

const (
	infoLevel = "info"

	// DefaultHistoryDSN is the SQLite database used when no DSN is configured.
	DefaultHistoryDSN = "nutrigood.db"
)

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validFormats       = []string{"json", "text", "csv"}
	validLanguages     = []string{"en", "id"}
	validHistoryDriver = []string{"sqlite", "pgx"}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	pre := preprocess.DefaultConfig()
	ocrCfg := ocr.DefaultConfig()
	return &Config{
		LogLevel: infoLevel,
		Preprocess: PreprocessConfig{
			MinBlockWidth:     pre.Segment.MinWidth,
			MinBlockHeight:    pre.Segment.MinHeight,
			MergeKernelWidth:  pre.Segment.MergeKernelW,
			MergeKernelHeight: pre.Segment.MergeKernelH,
			Deskew:            pre.Deskew,
			MinDeskewAngle:    pre.MinDeskewAngle,
			MaxImageDimension: pre.MaxImageDimension,
		},
		OCR: OCRConfig{
			Languages:        ocrCfg.Languages,
			Timeout:          ocrCfg.Timeout,
			PoolSize:         2,
			FullPageFallback: true,
			CacheTTL:         10 * time.Minute,
			CacheCapacity:    256,
		},
		Classifier: ClassifierConfig{
			Enabled:           true,
			Timeout:           5 * time.Second,
			HeuristicFallback: true,
		},
		Output: OutputConfig{
			Format:   "json",
			Language: "en",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     10,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 5000,
				MaxDataPerDayMB:   500,
			},
		},
		Batch: BatchConfig{
			Workers: runtime.NumCPU(),
			Include: []string{"*.png", "*.jpg", "*.jpeg", "*.bmp"},
		},
		History: HistoryConfig{
			Driver: "sqlite",
			DSN:    DefaultHistoryDSN,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if c.Output.Language != "" && !slices.Contains(validLanguages, c.Output.Language) {
		return fmt.Errorf("invalid output language: %s (must be one of: %s)", c.Output.Language, strings.Join(validLanguages, ", "))
	}

	if c.Preprocess.MinBlockWidth < 0 || c.Preprocess.MinBlockHeight < 0 {
		return fmt.Errorf("invalid minimum block size: %dx%d (must not be negative)", c.Preprocess.MinBlockWidth, c.Preprocess.MinBlockHeight)
	}
	if c.Preprocess.MergeKernelWidth < 1 || c.Preprocess.MergeKernelHeight < 1 {
		return fmt.Errorf("invalid merge kernel: %dx%d (must be at least 1x1)", c.Preprocess.MergeKernelWidth, c.Preprocess.MergeKernelHeight)
	}
	if c.Preprocess.MinDeskewAngle < 0 {
		return fmt.Errorf("invalid min deskew angle: %.2f (must not be negative)", c.Preprocess.MinDeskewAngle)
	}
	if c.Preprocess.MaxImageDimension < 0 {
		return fmt.Errorf("invalid max image dimension: %d (must not be negative)", c.Preprocess.MaxImageDimension)
	}

	if len(c.OCR.Languages) == 0 {
		return fmt.Errorf("ocr.languages must name at least one language")
	}
	if c.OCR.Timeout <= 0 {
		return fmt.Errorf("invalid OCR timeout: %v (must be positive)", c.OCR.Timeout)
	}
	if c.OCR.PoolSize < 0 || c.OCR.CacheCapacity < 0 || c.OCR.CacheTTL < 0 {
		return fmt.Errorf("ocr pool size, cache capacity and cache ttl must not be negative")
	}

	if c.Classifier.Timeout < 0 {
		return fmt.Errorf("invalid classifier timeout: %v (must not be negative)", c.Classifier.Timeout)
	}
	for i, s := range c.Classifier.FeatureScale {
		if s < 0 {
			return fmt.Errorf("invalid classifier.feature_scale[%d]: %v (must not be negative)", i, s)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayMB < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.History.Driver != "" && !slices.Contains(validHistoryDriver, c.History.Driver) {
		return fmt.Errorf("invalid history driver: %s (must be one of: %s)", c.History.Driver, strings.Join(validHistoryDriver, ", "))
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("invalid watch debounce: %v (must not be negative)", c.Watch.Debounce)
	}
	return nil
}

// ToPipelineConfig converts the config to the pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()

	cfg.Preprocess.Deskew = c.Preprocess.Deskew
	cfg.Preprocess.MinDeskewAngle = c.Preprocess.MinDeskewAngle
	cfg.Preprocess.MaxImageDimension = c.Preprocess.MaxImageDimension
	cfg.Preprocess.Segment.MinWidth = c.Preprocess.MinBlockWidth
	cfg.Preprocess.Segment.MinHeight = c.Preprocess.MinBlockHeight
	cfg.Preprocess.Segment.MergeKernelW = c.Preprocess.MergeKernelWidth
	cfg.Preprocess.Segment.MergeKernelH = c.Preprocess.MergeKernelHeight

	cfg.OCR.Languages = slices.Clone(c.OCR.Languages)
	cfg.OCR.Timeout = c.OCR.Timeout
	cfg.OCR.PoolSize = c.OCR.PoolSize
	cfg.OCR.DataPath = c.OCR.TessdataPrefix
	cfg.FullPageFallback = c.OCR.FullPageFallback
	cfg.CacheTTL = c.OCR.CacheTTL
	cfg.CacheCapacity = uint64(c.OCR.CacheCapacity) //nolint:gosec // validated non-negative

	cfg.VocabularyPath = c.Extraction.SynonymsFile

	cfg.Classifier = classifier.DefaultConfig()
	cfg.Classifier.ModelPath = c.Classifier.ModelPath
	cfg.Classifier.ModelsDir = c.Classifier.ModelsDir
	cfg.Classifier.NumThreads = c.Classifier.NumThreads
	cfg.Classifier.HeuristicFallback = c.Classifier.HeuristicFallback
	cfg.Classifier.FeatureScale = slices.Clone(c.Classifier.FeatureScale)
	cfg.Classifier.GPU.UseGPU = c.Classifier.UseGPU
	cfg.ClassifierTimeout = c.Classifier.Timeout
	cfg.DisableClassifier = !c.Classifier.Enabled

	if c.Output.Language != "" {
		cfg.Language = c.Output.Language
	}
	cfg.Validate = c.Output.Validate
	if c.Batch.Workers > 0 {
		cfg.Parallel.MaxWorkers = c.Batch.Workers
	}
	return cfg
}
