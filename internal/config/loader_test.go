package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	return NewLoaderWithViper(viper.New())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	cfg, err := newTestLoader(t).Load()
	require.NoError(t, err)

	assert.Equal(t, infoLevel, cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, []string{"ind", "eng"}, cfg.OCR.Languages)
}

func TestLoadWithYAMLFile(t *testing.T) {
	loader := newTestLoader(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
ocr:
  languages: [eng]
  timeout: 45s
classifier:
  model_path: /models/sugar.onnx
  feature_scale: [10, 50, 150]
output:
  format: text
  language: id
server:
  port: 9090
  rate_limit:
    enabled: true
    requests_per_minute: 5
history:
  driver: pgx
  dsn: postgres://localhost/nutrigood
watch:
  dirs: [/srv/inbox]
  debounce: 2s
`), 0o600))

	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"eng"}, cfg.OCR.Languages)
	assert.Equal(t, 45*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, "/models/sugar.onnx", cfg.Classifier.ModelPath)
	assert.Equal(t, []float64{10, 50, 150}, cfg.Classifier.FeatureScale)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, "id", cfg.Output.Language)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.Server.RateLimit.RequestsPerMinute)
	assert.Equal(t, 1000, cfg.Server.RateLimit.RequestsPerHour)
	assert.Equal(t, "pgx", cfg.History.Driver)
	assert.Equal(t, []string{"/srv/inbox"}, cfg.Watch.Dirs)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, path, loader.GetConfigFileUsed())
}

func TestLoadFromSearchPath(t *testing.T) {
	loader := newTestLoader(t)
	require.NoError(t, os.WriteFile(ConfigFileName+".yaml", []byte("server:\n  port: 7070\n"), 0o600))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadWithEnvironment(t *testing.T) {
	loader := newTestLoader(t)
	t.Setenv("NUTRIGOOD_LOG_LEVEL", "warn")
	t.Setenv("NUTRIGOOD_SERVER_PORT", "9999")
	t.Setenv("NUTRIGOOD_OUTPUT_LANGUAGE", "id")
	t.Setenv("NUTRIGOOD_CLASSIFIER_TIMEOUT", "750ms")

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "id", cfg.Output.Language)
	assert.Equal(t, 750*time.Millisecond, cfg.Classifier.Timeout)
}

func TestLoadErrors(t *testing.T) {
	loader := newTestLoader(t)

	_, err := loader.LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0o600))
	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(bad)
	assert.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("log_level: chatty\n"), 0o600))
	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFileWithoutValidation(invalid)
	require.NoError(t, err)
	assert.Equal(t, "chatty", cfg.LogLevel)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nutrigood.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
	assert.Equal(t, DefaultConfig().OCR.Timeout, cfg.OCR.Timeout)
	assert.Equal(t, DefaultConfig().OCR.Languages, cfg.OCR.Languages)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()

	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/xdg", "nutrigood"))
	assert.Equal(t, "/etc/nutrigood", paths[len(paths)-1])
}
