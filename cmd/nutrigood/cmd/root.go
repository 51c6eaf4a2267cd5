package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MeKo-Tech/nutrigood/internal/config"
	"github.com/MeKo-Tech/nutrigood/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// ErrAnalysisFailed is returned when at least one report carries the
// "Error" message. Its output has already been written.
var ErrAnalysisFailed = errors.New("one or more analyses failed")

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nutrigood",
	Short: "Nutrition label reader and sugar classifier",
	Long: `nutrigood reads the nutrition facts panel of a packaged food label,
extracts the serving count and sugar content, derives the total sugar per
package and classifies it with a sugar model.

This tool provides:
- Label image analysis (preprocessing, deskew, Tesseract OCR)
- Text analysis for already-recognized labels
- Parallel batch processing and folder watching
- An HTTP and WebSocket API with scan history

Examples:
  nutrigood image label.jpg
  nutrigood text "Takaran saji 2
Gula 10g"
  nutrigood batch ./labels --format csv
  nutrigood serve --port 8080`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, ErrAnalysisFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is nutrigood.yaml in ., $HOME/.config/nutrigood, $XDG_CONFIG_HOME/nutrigood, /etc/nutrigood)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		slog.SetDefault(newLogger(globalConfig, cmd.ErrOrStderr()))
		return nil
	}
}

// initConfig reads the config file, NUTRIGOOD_* variables and bound flags.
func initConfig() error {
	loader := GetConfigLoader()
	cfg, err := loader.LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	globalConfig = cfg
	return nil
}

// newLogger builds the JSON logger on w, the command's stderr, so reports on
// stdout stay machine readable.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch strings.ToLower(cfg.LogLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// GetConfig returns the resolved configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return config.DefaultConfig()
		}
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = newConfigLoader()
	}
	return configLoader
}

// newConfigLoader creates a loader with the global flags bound.
func newConfigLoader() *config.Loader {
	v := viper.New()
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	return config.NewLoaderWithViper(v)
}
