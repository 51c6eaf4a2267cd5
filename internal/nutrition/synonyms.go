package nutrition

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Grammar selects how a field's label and value may be arranged.
type Grammar int

const (
	// GrammarLabelValue matches "<label> [:|-|space]* <value><unit>".
	GrammarLabelValue Grammar = iota
	// GrammarBidirectional matches "<number> <label>" or "<label> <number>".
	GrammarBidirectional
)

func (g Grammar) String() string {
	if g == GrammarBidirectional {
		return "bidirectional"
	}
	return "label_value"
}

// UnmarshalYAML accepts "label_value" or "bidirectional".
func (g *Grammar) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(node.Value) {
	case "", "label_value":
		*g = GrammarLabelValue
	case "bidirectional":
		*g = GrammarBidirectional
	default:
		return fmt.Errorf("unknown grammar %q", node.Value)
	}
	return nil
}

// MarshalYAML writes the grammar name.
func (g Grammar) MarshalYAML() (any, error) { return g.String(), nil }

// FieldSpec describes one canonical field and its surface forms.
type FieldSpec struct {
	Name Field `yaml:"name"`
	// Label is the canonical text the normalizer writes for any synonym.
	Label        string   `yaml:"label"`
	Synonyms     []string `yaml:"synonyms"`
	Grammar      Grammar  `yaml:"grammar"`
	Units        []string `yaml:"units,omitempty"`
	UnitRequired bool     `yaml:"unit_required,omitempty"`
	// Target fields decide the outcome; others are informational.
	Target bool `yaml:"target,omitempty"`
}

// Replacement is a literal OCR fix-up applied on word boundaries.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Vocabulary is the full, file-loadable description of label language.
type Vocabulary struct {
	Fields       []FieldSpec   `yaml:"fields"`
	Replacements []Replacement `yaml:"replacements"`
}

// SynonymTable is the validated, immutable field table.
type SynonymTable struct {
	specs []FieldSpec
}

// NewSynonymTable validates specs and freezes them into a table. Sugars
// (label/value) and ServingsPerContainer (bidirectional) are required.
func NewSynonymTable(specs []FieldSpec) (*SynonymTable, error) {
	seen := make(map[Field]bool, len(specs))
	frozen := make([]FieldSpec, 0, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, errors.New("synonym table: field without name")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("synonym table: duplicate field %s", s.Name)
		}
		seen[s.Name] = true
		if strings.TrimSpace(s.Label) == "" {
			return nil, fmt.Errorf("synonym table: field %s has no label", s.Name)
		}
		if len(s.Synonyms) == 0 {
			return nil, fmt.Errorf("synonym table: field %s has no synonyms", s.Name)
		}
		for _, syn := range s.Synonyms {
			if strings.TrimSpace(syn) == "" || strings.ContainsAny(syn, "\r\n") {
				return nil, fmt.Errorf("synonym table: field %s has an empty or multi-line synonym", s.Name)
			}
		}
		if s.UnitRequired && len(s.Units) == 0 {
			return nil, fmt.Errorf("synonym table: field %s requires a unit but lists none", s.Name)
		}
		s.Synonyms = slices.Clone(s.Synonyms)
		s.Units = slices.Clone(s.Units)
		frozen = append(frozen, s)
	}

	t := &SynonymTable{specs: frozen}
	if s, ok := t.Spec(FieldSugars); !ok || s.Grammar != GrammarLabelValue {
		return nil, errors.New("synonym table: Sugars must be defined with the label_value grammar")
	}
	if s, ok := t.Spec(FieldServings); !ok || s.Grammar != GrammarBidirectional {
		return nil, errors.New("synonym table: ServingsPerContainer must be defined with the bidirectional grammar")
	}
	return t, nil
}

// Specs returns a copy of the field specs in declaration order.
func (t *SynonymTable) Specs() []FieldSpec {
	out := make([]FieldSpec, len(t.specs))
	for i, s := range t.specs {
		s.Synonyms = slices.Clone(s.Synonyms)
		s.Units = slices.Clone(s.Units)
		out[i] = s
	}
	return out
}

// Spec looks up a field.
func (t *SynonymTable) Spec(f Field) (FieldSpec, bool) {
	for _, s := range t.specs {
		if s.Name == f {
			s.Synonyms = slices.Clone(s.Synonyms)
			s.Units = slices.Clone(s.Units)
			return s, true
		}
	}
	return FieldSpec{}, false
}

// Targets lists the fields that decide the outcome.
func (t *SynonymTable) Targets() []Field {
	var out []Field
	for _, s := range t.specs {
		if s.Target {
			out = append(out, s.Name)
		}
	}
	return out
}

// DefaultVocabulary returns the built-in Indonesian/English label vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Fields: []FieldSpec{
			{
				Name:         FieldSugars,
				Label:        "Sugars",
				Grammar:      GrammarLabelValue,
				Units:        []string{"mg", "g", "gr", "gram", "grams"},
				UnitRequired: true,
				Target:       true,
				Synonyms: []string{
					"Gula", "Sugar", "Sugars", "Sucrose", "Fructose", "Glucose",
					"Lactose", "Maltose", "High fructose corn syrup", "Brown Sugar",
					"Powdered Sugar", "Invert Sugar", "Dextrose", "Honey", "Molasses",
					"Agave", "Agave Syrup", "Syrup", "Barley Malt", "Cane Sugar",
					"Coconut Sugar", "Palm Sugar", "Maple Syrup", "Rice Syrup",
					"Muscovado", "Caramel", "Turbinado Sugar", "Raw Sugar",
				},
			},
			{
				Name:    FieldServings,
				Label:   "Servings Per Container",
				Grammar: GrammarBidirectional,
				Target:  true,
				Synonyms: []string{
					"Sajian per kemasan", "Sajian perkemasan", "Jumlah sajian per kemasan",
					"Sajian per kemasan sekitar", "Serving per pack", "Serving per package",
					"Servings per pack", "Servings Per Container", "Servings Per Container about",
					"Sajian perkemasan/Serving per pack", "Takaran saji",
				},
			},
			{
				Name:    FieldCalories,
				Label:   "Calories",
				Grammar: GrammarLabelValue,
				Units:   []string{"kcal", "kkal", "cal"},
				Synonyms: []string{
					"Calories", "Kalori", "Energi total", "Energi", "Total Energy", "Energy",
				},
			},
		},
		Replacements: []Replacement{
			{From: "Energitotal", To: "Energi total"},
			{From: "Lemaktotal", To: "Lemak total"},
			{From: "natrium", To: "Sodium"},
			{From: "Kalori", To: "Calories"},
		},
	}
}

// LoadVocabularyFile reads a YAML vocabulary. Missing sections fall back to
// the built-in defaults.
func LoadVocabularyFile(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied vocabulary path
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes a YAML vocabulary document.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}
	def := DefaultVocabulary()
	if len(v.Fields) == 0 {
		v.Fields = def.Fields
	}
	if v.Replacements == nil {
		v.Replacements = def.Replacements
	}
	return v, nil
}

// Table validates the vocabulary's fields.
func (v Vocabulary) Table() (*SynonymTable, error) {
	return NewSynonymTable(v.Fields)
}

// DefaultSynonymTable returns the validated built-in field table.
func DefaultSynonymTable() *SynonymTable {
	t, err := DefaultVocabulary().Table()
	if err != nil {
		panic(fmt.Sprintf("built-in vocabulary is invalid: %v", err))
	}
	return t
}
