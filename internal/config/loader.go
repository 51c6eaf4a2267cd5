package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "nutrigood"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "NUTRIGOOD"
)

// Loader handles loading configuration from files, environment variables
// and bound flags.
type Loader struct {
	v *viper.Viper
}

// NewLoaderWithViper creates a loader on v.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load resolves the configuration from the standard search paths and
// validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile resolves the configuration from configFile, or from the
// standard search paths when configFile is empty, and validates it.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation is LoadWithFile without the final Validate.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("preprocess.min_block_width", d.Preprocess.MinBlockWidth)
	l.v.SetDefault("preprocess.min_block_height", d.Preprocess.MinBlockHeight)
	l.v.SetDefault("preprocess.merge_kernel_width", d.Preprocess.MergeKernelWidth)
	l.v.SetDefault("preprocess.merge_kernel_height", d.Preprocess.MergeKernelHeight)
	l.v.SetDefault("preprocess.deskew", d.Preprocess.Deskew)
	l.v.SetDefault("preprocess.min_deskew_angle", d.Preprocess.MinDeskewAngle)
	l.v.SetDefault("preprocess.max_image_dimension", d.Preprocess.MaxImageDimension)

	l.v.SetDefault("ocr.languages", d.OCR.Languages)
	l.v.SetDefault("ocr.timeout", d.OCR.Timeout.String())
	l.v.SetDefault("ocr.pool_size", d.OCR.PoolSize)
	l.v.SetDefault("ocr.full_page_fallback", d.OCR.FullPageFallback)
	l.v.SetDefault("ocr.cache_ttl", d.OCR.CacheTTL.String())
	l.v.SetDefault("ocr.cache_capacity", d.OCR.CacheCapacity)
	l.v.SetDefault("ocr.tessdata_prefix", d.OCR.TessdataPrefix)

	l.v.SetDefault("extraction.synonyms_file", d.Extraction.SynonymsFile)

	l.v.SetDefault("classifier.enabled", d.Classifier.Enabled)
	l.v.SetDefault("classifier.model_path", d.Classifier.ModelPath)
	l.v.SetDefault("classifier.models_dir", d.Classifier.ModelsDir)
	l.v.SetDefault("classifier.timeout", d.Classifier.Timeout.String())
	l.v.SetDefault("classifier.num_threads", d.Classifier.NumThreads)
	l.v.SetDefault("classifier.heuristic_fallback", d.Classifier.HeuristicFallback)
	l.v.SetDefault("classifier.feature_scale", d.Classifier.FeatureScale)
	l.v.SetDefault("classifier.use_gpu", d.Classifier.UseGPU)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)
	l.v.SetDefault("output.language", d.Output.Language)
	l.v.SetDefault("output.validate", d.Output.Validate)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day_mb", d.Server.RateLimit.MaxDataPerDayMB)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.recursive", d.Batch.Recursive)
	l.v.SetDefault("batch.include", d.Batch.Include)
	l.v.SetDefault("batch.exclude", d.Batch.Exclude)

	l.v.SetDefault("history.enabled", d.History.Enabled)
	l.v.SetDefault("history.driver", d.History.Driver)
	l.v.SetDefault("history.dsn", d.History.DSN)

	l.v.SetDefault("watch.dirs", d.Watch.Dirs)
	l.v.SetDefault("watch.debounce", d.Watch.Debounce.String())
}

// GenerateDefaultConfigFile writes the defaults to filename
// (nutrigood.yaml when empty).
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "nutrigood"))
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "nutrigood"))
	}
	return append(paths, "/etc/nutrigood")
}
