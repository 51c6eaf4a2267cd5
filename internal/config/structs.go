//nolint:lll
package config

import "time"

// Config represents the complete nutrigood configuration. It is shared by
// every command and is loaded from a YAML file, NUTRIGOOD_* environment
// variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction" json:"extraction"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier" json:"classifier"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	Batch   BatchConfig   `mapstructure:"batch" yaml:"batch" json:"batch"`
	History HistoryConfig `mapstructure:"history" yaml:"history" json:"history"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch" json:"watch"`
}

// PreprocessConfig contains image preprocessing settings.
type PreprocessConfig struct {
	MinBlockWidth     int     `mapstructure:"min_block_width" yaml:"min_block_width" json:"min_block_width"`
	MinBlockHeight    int     `mapstructure:"min_block_height" yaml:"min_block_height" json:"min_block_height"`
	MergeKernelWidth  int     `mapstructure:"merge_kernel_width" yaml:"merge_kernel_width" json:"merge_kernel_width"`
	MergeKernelHeight int     `mapstructure:"merge_kernel_height" yaml:"merge_kernel_height" json:"merge_kernel_height"`
	Deskew            bool    `mapstructure:"deskew" yaml:"deskew" json:"deskew"`
	MinDeskewAngle    float64 `mapstructure:"min_deskew_angle" yaml:"min_deskew_angle" json:"min_deskew_angle"`
	MaxImageDimension int     `mapstructure:"max_image_dimension" yaml:"max_image_dimension" json:"max_image_dimension"`
}

// OCRConfig contains Tesseract settings.
type OCRConfig struct {
	Languages        []string      `mapstructure:"languages" yaml:"languages" json:"languages"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	PoolSize         int           `mapstructure:"pool_size" yaml:"pool_size" json:"pool_size"`
	FullPageFallback bool          `mapstructure:"full_page_fallback" yaml:"full_page_fallback" json:"full_page_fallback"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" json:"cache_ttl"`
	CacheCapacity    int           `mapstructure:"cache_capacity" yaml:"cache_capacity" json:"cache_capacity"`
	TessdataPrefix   string        `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix" json:"tessdata_prefix"`
}

// ExtractionConfig contains nutrition extraction settings.
type ExtractionConfig struct {
	SynonymsFile string `mapstructure:"synonyms_file" yaml:"synonyms_file" json:"synonyms_file"`
}

// ClassifierConfig contains sugar model settings.
type ClassifierConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ModelPath         string        `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	ModelsDir         string        `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	NumThreads        int           `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	HeuristicFallback bool          `mapstructure:"heuristic_fallback" yaml:"heuristic_fallback" json:"heuristic_fallback"`
	FeatureScale      []float64     `mapstructure:"feature_scale" yaml:"feature_scale" json:"feature_scale"`
	UseGPU            bool          `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format   string `mapstructure:"format" yaml:"format" json:"format"`
	File     string `mapstructure:"file" yaml:"file" json:"file"`
	Language string `mapstructure:"language" yaml:"language" json:"language"`
	Validate bool   `mapstructure:"validate" yaml:"validate" json:"validate"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers   int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include   []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude   []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
}

// HistoryConfig selects the scan history store.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Driver  string `mapstructure:"driver" yaml:"driver" json:"driver"`
	DSN     string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// WatchConfig contains folder watcher settings.
type WatchConfig struct {
	Dirs     []string      `mapstructure:"dirs" yaml:"dirs" json:"dirs"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}
