package pipeline

import (
	"testing"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
	"github.com/MeKo-Tech/nutrigood/internal/ocr"
	"github.com/MeKo-Tech/nutrigood/internal/preprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.FullPageFallback)
	assert.True(t, cfg.Preprocess.Deskew)
	assert.Equal(t, []string{"ind", "eng"}, cfg.OCR.Languages)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, 5*time.Second, cfg.ClassifierTimeout)
	assert.Positive(t, cfg.Parallel.MaxWorkers)
	assert.False(t, cfg.DisableClassifier)
}

func TestBuilder_Chaining(t *testing.T) {
	b := NewBuilder()
	got := b.WithDeskew(false).
		WithOCRLanguages("eng").
		WithOCRTimeout(time.Second).
		WithOCRPoolSize(3).
		WithTessdataPrefix("/opt/tessdata").
		WithFullPageFallback(false).
		WithCache(time.Minute, 16).
		WithVocabularyFile("synonyms.yaml").
		WithModelPath("model.onnx").
		WithClassifier(false).
		WithClassifierTimeout(2 * time.Second).
		WithLanguage("id").
		WithValidation(true).
		WithParallelWorkers(4)
	assert.Same(t, b, got)

	cfg := b.Config()
	assert.False(t, cfg.Preprocess.Deskew)
	assert.Equal(t, []string{"eng"}, cfg.OCR.Languages)
	assert.Equal(t, time.Second, cfg.OCR.Timeout)
	assert.Equal(t, 3, cfg.OCR.PoolSize)
	assert.Equal(t, "/opt/tessdata", cfg.OCR.DataPath)
	assert.False(t, cfg.FullPageFallback)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, uint64(16), cfg.CacheCapacity)
	assert.Equal(t, "synonyms.yaml", cfg.VocabularyPath)
	assert.Equal(t, "model.onnx", cfg.Classifier.ModelPath)
	assert.True(t, cfg.DisableClassifier)
	assert.Equal(t, 2*time.Second, cfg.ClassifierTimeout)
	assert.Equal(t, "id", cfg.Language)
	assert.True(t, cfg.Validate)
	assert.Equal(t, 4, cfg.Parallel.MaxWorkers)
}

func TestBuilder_WithPreprocessAndProgress(t *testing.T) {
	pre := preprocess.DefaultConfig()
	pre.MaxImageDimension = 800
	cb := NoOpProgressCallback{}

	cfg := NewBuilder().WithPreprocess(pre).WithProgressCallback(cb).Config()
	assert.Equal(t, 800, cfg.Preprocess.MaxImageDimension)
	assert.Equal(t, cb, cfg.Parallel.ProgressCallback)
}

func TestBuilder_IgnoresZeroValues(t *testing.T) {
	b := NewBuilder().
		WithOCRLanguages().
		WithOCRTimeout(0).
		WithOCRPoolSize(-1).
		WithLanguage("").
		WithParallelWorkers(0)

	def := DefaultConfig()
	cfg := b.Config()
	assert.Equal(t, def.OCR.Languages, cfg.OCR.Languages)
	assert.Equal(t, def.OCR.Timeout, cfg.OCR.Timeout)
	assert.Equal(t, def.OCR.PoolSize, cfg.OCR.PoolSize)
	assert.Equal(t, def.Language, cfg.Language)
	assert.Equal(t, def.Parallel.MaxWorkers, cfg.Parallel.MaxWorkers)
}

func TestBuilder_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OCR.Languages = nil
	assert.Error(t, NewBuilder().WithConfig(cfg).Validate())

	// An injected recognizer does not need Tesseract settings.
	assert.NoError(t, NewBuilder().WithConfig(cfg).WithRecognizer(ocr.NewStatic("")).Validate())

	cfg = DefaultConfig()
	cfg.ClassifierTimeout = -time.Second
	assert.Error(t, NewBuilder().WithConfig(cfg).Validate())
}

func TestBuilder_Build(t *testing.T) {
	p, err := NewBuilder().WithRecognizer(ocr.NewStatic("Sugars 5g")).Build()
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.NotNil(t, p.Preprocessor)
	assert.NotNil(t, p.Engine)
	assert.IsType(t, &ocr.Cached{}, p.Recognizer)
	assert.IsType(t, classifier.Heuristic{}, p.Predictor)

	stats, ok := p.CacheStats()
	assert.True(t, ok)
	assert.Zero(t, stats.Hits)
}

func TestBuilder_BuildWithoutCacheOrClassifier(t *testing.T) {
	static := ocr.NewStatic("")
	p, err := NewBuilder().WithRecognizer(static).WithCache(0, 0).WithClassifier(false).Build()
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Same(t, static, p.Recognizer)
	assert.Nil(t, p.Predictor)
	_, ok := p.CacheStats()
	assert.False(t, ok)
}

func TestBuilder_BuildWithVocabulary(t *testing.T) {
	v := nutrition.DefaultVocabulary()
	v.Fields[0].Synonyms = append(v.Fields[0].Synonyms, "Zucker")

	p, err := NewBuilder().WithRecognizer(ocr.NewStatic("")).WithVocabulary(v).Build()
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	a, err := p.Engine.Analyze("Zucker 4g")
	require.NoError(t, err)
	sugars, ok := a.Result.Sugars()
	require.True(t, ok)
	assert.InDelta(t, 4, sugars, 1e-9)
}

func TestBuilder_BuildRejectsMissingVocabularyFile(t *testing.T) {
	_, err := NewBuilder().
		WithRecognizer(ocr.NewStatic("")).
		WithVocabularyFile("/nonexistent/synonyms.yaml").
		Build()
	assert.Error(t, err)
}

func TestBuilder_BuildFallsBackToHeuristic(t *testing.T) {
	p, err := NewBuilder().WithRecognizer(ocr.NewStatic("")).WithModelPath("/nonexistent/model.onnx").Build()
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.IsType(t, classifier.Heuristic{}, p.Predictor)
}
