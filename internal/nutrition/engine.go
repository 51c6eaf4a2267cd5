package nutrition

import "fmt"

// Engine bundles the normalizer and extractor built from one vocabulary.
// It is immutable and safe for concurrent use.
type Engine struct {
	table      *SynonymTable
	normalizer *Normalizer
	extractor  *Extractor
}

// Analysis is the outcome of running the engine over one text.
type Analysis struct {
	Normalized string
	Result     NutritionResult
	Outcome    OutcomeKind
}

// NewEngine validates v and compiles its normalizer and extractor.
func NewEngine(v Vocabulary) (*Engine, error) {
	table, err := v.Table()
	if err != nil {
		return nil, err
	}
	n, err := NewNormalizer(table, v.Replacements)
	if err != nil {
		return nil, fmt.Errorf("normalizer: %w", err)
	}
	x, err := NewExtractor(table)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	return &Engine{table: table, normalizer: n, extractor: x}, nil
}

// NewDefaultEngine builds an engine from DefaultVocabulary.
func NewDefaultEngine() (*Engine, error) {
	return NewEngine(DefaultVocabulary())
}

// Table returns the engine's synonym table.
func (e *Engine) Table() *SynonymTable { return e.table }

// Normalize exposes the engine's normalizer.
func (e *Engine) Normalize(raw string) string { return e.normalizer.Normalize(raw) }

// Analyze normalizes raw, extracts fields, derives totals and assembles the
// result.
func (e *Engine) Analyze(raw string) (Analysis, error) {
	normalized := e.normalizer.Normalize(raw)
	d := Derive(e.extractor.Extract(normalized))
	res, kind, err := Assemble(d)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Normalized: normalized, Result: res, Outcome: kind}, nil
}
