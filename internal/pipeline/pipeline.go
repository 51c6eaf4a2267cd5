// Package pipeline wires preprocessing, OCR, nutrition extraction and the
// sugar classifier into one analysis run per label image.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
	"github.com/MeKo-Tech/nutrigood/internal/ocr"
	"github.com/MeKo-Tech/nutrigood/internal/preprocess"
)

// Config holds configuration for the analysis pipeline and its components.
type Config struct {
	Preprocess preprocess.Config
	OCR        ocr.Config
	// FullPageFallback retries OCR once on the whole deskewed page when the
	// per-block pass yields no text.
	FullPageFallback bool
	CacheTTL         time.Duration // 0 disables the OCR cache
	CacheCapacity    uint64

	VocabularyPath string // optional YAML synonym table

	Classifier        classifier.Config
	ClassifierTimeout time.Duration
	DisableClassifier bool

	Language string // report and label language (en, id)
	Validate bool   // validate every report against the JSON schema

	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Preprocess:        preprocess.DefaultConfig(),
		OCR:               ocr.DefaultConfig(),
		FullPageFallback:  true,
		CacheTTL:          ocr.DefaultCacheTTL,
		CacheCapacity:     256,
		Classifier:        classifier.DefaultConfig(),
		ClassifierTimeout: 5 * time.Second,
		Language:          "en",
		Parallel:          DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg        Config
	recognizer ocr.Recognizer
	predictor  classifier.Predictor
	vocabulary *nutrition.Vocabulary
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithPreprocess sets the preprocessing configuration.
func (b *Builder) WithPreprocess(cfg preprocess.Config) *Builder {
	b.cfg.Preprocess = cfg
	return b
}

// WithDeskew enables or disables skew correction.
func (b *Builder) WithDeskew(enabled bool) *Builder {
	b.cfg.Preprocess.Deskew = enabled
	return b
}

// WithOCRLanguages sets the Tesseract languages.
func (b *Builder) WithOCRLanguages(langs ...string) *Builder {
	if len(langs) > 0 {
		b.cfg.OCR.Languages = langs
	}
	return b
}

// WithOCRTimeout bounds a single recognition call.
func (b *Builder) WithOCRTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.cfg.OCR.Timeout = d
	}
	return b
}

// WithOCRPoolSize sets the number of Tesseract clients.
func (b *Builder) WithOCRPoolSize(n int) *Builder {
	if n > 0 {
		b.cfg.OCR.PoolSize = n
	}
	return b
}

// WithTessdataPrefix points Tesseract at a tessdata directory.
func (b *Builder) WithTessdataPrefix(dir string) *Builder {
	if dir != "" {
		b.cfg.OCR.DataPath = dir
	}
	return b
}

// WithRecognizer uses r instead of building a Tesseract recognizer.
func (b *Builder) WithRecognizer(r ocr.Recognizer) *Builder {
	b.recognizer = r
	return b
}

// WithFullPageFallback toggles the full-page OCR retry.
func (b *Builder) WithFullPageFallback(enabled bool) *Builder {
	b.cfg.FullPageFallback = enabled
	return b
}

// WithCache configures the OCR result cache. A zero ttl disables it.
func (b *Builder) WithCache(ttl time.Duration, capacity uint64) *Builder {
	b.cfg.CacheTTL = ttl
	b.cfg.CacheCapacity = capacity
	return b
}

// WithVocabularyFile loads the synonym table from a YAML file at build time.
func (b *Builder) WithVocabularyFile(path string) *Builder {
	b.cfg.VocabularyPath = path
	return b
}

// WithVocabulary uses v as the synonym table.
func (b *Builder) WithVocabulary(v nutrition.Vocabulary) *Builder {
	b.vocabulary = &v
	return b
}

// WithModelPath sets the ONNX sugar model.
func (b *Builder) WithModelPath(path string) *Builder {
	b.cfg.Classifier.ModelPath = path
	return b
}

// WithPredictor uses p instead of building one from the classifier config.
func (b *Builder) WithPredictor(p classifier.Predictor) *Builder {
	b.predictor = p
	return b
}

// WithClassifier enables or disables sugar classification.
func (b *Builder) WithClassifier(enabled bool) *Builder {
	b.cfg.DisableClassifier = !enabled
	return b
}

// WithClassifierTimeout bounds a single prediction.
func (b *Builder) WithClassifierTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.cfg.ClassifierTimeout = d
	}
	return b
}

// WithLanguage sets the output language.
func (b *Builder) WithLanguage(lang string) *Builder {
	if lang != "" {
		b.cfg.Language = lang
	}
	return b
}

// WithValidation enables schema validation of every report.
func (b *Builder) WithValidation(enabled bool) *Builder {
	b.cfg.Validate = enabled
	return b
}

// WithParallelWorkers sets the number of parallel workers for batch processing.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for batch processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane.
func (b *Builder) Validate() error {
	if b.recognizer == nil {
		if len(b.cfg.OCR.Languages) == 0 {
			return errors.New("at least one OCR language is required")
		}
		if b.cfg.OCR.Timeout <= 0 {
			return errors.New("OCR timeout must be > 0")
		}
	}
	if b.cfg.Preprocess.MaxImageDimension < 0 {
		return errors.New("max image dimension must be >= 0")
	}
	if b.cfg.ClassifierTimeout < 0 {
		return errors.New("classifier timeout must be >= 0")
	}
	if b.cfg.Parallel.MaxWorkers < 0 {
		return errors.New("parallel workers must be >= 0")
	}
	return nil
}

// Pipeline wires together preprocessing, OCR, extraction and classification.
type Pipeline struct {
	cfg          Config
	Preprocessor *preprocess.Preprocessor
	Recognizer   ocr.Recognizer
	Engine       *nutrition.Engine
	Predictor    classifier.Predictor // nil when classification is disabled

	closers []io.Closer
}

// Build initializes the pipeline components.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	engine, err := b.buildEngine()
	if err != nil {
		return nil, fmt.Errorf("init extraction: %w", err)
	}
	p := &Pipeline{
		cfg:          b.cfg,
		Preprocessor: preprocess.New(b.cfg.Preprocess),
		Engine:       engine,
	}

	rec := b.recognizer
	if rec == nil {
		tess, err := ocr.NewTesseract(b.cfg.OCR)
		if err != nil {
			return nil, fmt.Errorf("init OCR: %w", err)
		}
		p.closers = append(p.closers, tess)
		rec = tess
	}
	if b.cfg.CacheTTL > 0 {
		cached := ocr.NewCached(rec, fmt.Sprintf("%T", rec), b.cfg.CacheTTL, b.cfg.CacheCapacity)
		p.closers = append(p.closers, cached)
		rec = cached
	}
	p.Recognizer = rec

	if !b.cfg.DisableClassifier {
		pred := b.predictor
		if pred == nil {
			pred, err = classifier.New(b.cfg.Classifier)
			if err != nil {
				_ = p.Close()
				return nil, fmt.Errorf("init classifier: %w", err)
			}
			if c, ok := pred.(io.Closer); ok {
				p.closers = append(p.closers, c)
			}
		}
		p.Predictor = pred
	}

	slog.Debug("Pipeline ready",
		"recognizer", fmt.Sprintf("%T", rec),
		"predictor", fmt.Sprintf("%T", p.Predictor),
		"language", b.cfg.Language)
	return p, nil
}

func (b *Builder) buildEngine() (*nutrition.Engine, error) {
	switch {
	case b.vocabulary != nil:
		return nutrition.NewEngine(*b.vocabulary)
	case b.cfg.VocabularyPath != "":
		v, err := nutrition.LoadVocabularyFile(b.cfg.VocabularyPath)
		if err != nil {
			return nil, err
		}
		return nutrition.NewEngine(v)
	default:
		return nutrition.NewDefaultEngine()
	}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// CacheStats returns OCR cache counters, if the cache is enabled.
func (p *Pipeline) CacheStats() (ocr.CacheStats, bool) {
	if c, ok := p.Recognizer.(*ocr.Cached); ok {
		return c.Stats(), true
	}
	return ocr.CacheStats{}, false
}

// Close releases all resources. Components are closed in reverse order of
// construction.
func (p *Pipeline) Close() error {
	var firstErr error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}
