package nutrition

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

var numberRun = regexp.MustCompile(`[0-9.]+`)

// measurementUnits follow a bare number when it is a serving size or an
// energy value rather than a serving count.
var measurementUnits = map[string]bool{
	"g": true, "gr": true, "gram": true, "grams": true, "mg": true, "mcg": true,
	"kg": true, "ml": true, "l": true, "oz": true,
	"kcal": true, "kkal": true, "cal": true, "kj": true,
}

// unitScale converts a unit to its field's base unit (grams for masses).
var unitScale = map[string]float64{
	"mg":  0.001,
	"mcg": 0.000001,
	"kg":  1000,
}

type matcher struct {
	spec FieldSpec
	re   *regexp.Regexp
}

// Extractor finds field values in normalized text.
type Extractor struct {
	matchers []matcher
}

// NewExtractor compiles one matcher per field of table.
func NewExtractor(table *SynonymTable) (*Extractor, error) {
	e := &Extractor{}
	for _, s := range table.Specs() {
		re, err := compileMatcher(s)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", s.Name, err)
		}
		e.matchers = append(e.matchers, matcher{spec: s, re: re})
	}
	return e, nil
}

func compileMatcher(s FieldSpec) (*regexp.Regexp, error) {
	labels := alternation(append([]string{s.Label}, s.Synonyms...), true)
	units := alternation(s.Units, false)

	var expr string
	switch {
	case s.Grammar == GrammarBidirectional:
		expr = `(?i)(?:` + labels + `)[ \t:\-]*(\d+(?:\.\d+)?)(?:[ \t]*([a-z]+))?` +
			`|(\d+(?:\.\d+)?)[ \t]*(?:` + labels + `)`
	case s.UnitRequired:
		expr = `(?i)(?:` + labels + `)[ \t:\-]*(\S+?)[ \t]*(` + units + `)\b`
	case len(s.Units) > 0:
		expr = `(?i)(?:` + labels + `)[ \t:\-]*(\d[\d.]*)(?:[ \t]*(` + units + `)\b)?`
	default:
		expr = `(?i)(?:` + labels + `)[ \t:\-]*(\d[\d.]*)()`
	}
	return regexp.Compile(expr)
}

// alternation quotes items longest first. With bounded set, items get a \b
// on every edge that is a word character.
func alternation(items []string, bounded bool) string {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b string) int {
		return utf8.RuneCountInString(b) - utf8.RuneCountInString(a)
	})
	sorted = slices.Compact(sorted)
	parts := make([]string, 0, len(sorted))
	for _, it := range sorted {
		p := regexp.QuoteMeta(it)
		if bounded {
			first, _ := utf8.DecodeRuneInString(it)
			last, _ := utf8.DecodeLastRuneInString(it)
			if isASCIIWord(first) {
				p = `\b` + p
			}
			if isASCIIWord(last) {
				p += `\b`
			}
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "|")
}

func isASCIIWord(r rune) bool {
	return r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// Extract looks up every field of the table in text. Fields that do not
// match are reported as StatusAbsent with a FieldNotFoundError.
func (e *Extractor) Extract(text string) Fields {
	out := make(Fields, len(e.matchers))
	for _, m := range e.matchers {
		if m.spec.Grammar == GrammarBidirectional {
			out[m.spec.Name] = extractBidirectional(m, text)
		} else {
			out[m.spec.Name] = extractLabelValue(m, text)
		}
	}
	return out
}

func notFound(f Field) ExtractedField {
	return ExtractedField{Name: f, Status: StatusAbsent, Offset: -1, Err: &FieldNotFoundError{Field: f}}
}

func extractLabelValue(m matcher, text string) ExtractedField {
	loc := m.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return notFound(m.spec.Name)
	}
	unit := ""
	if loc[4] >= 0 {
		unit = strings.ToLower(text[loc[4]:loc[5]])
	}
	return parsed(m.spec.Name, text, loc[0], loc[1], text[loc[2]:loc[3]], unit)
}

func extractBidirectional(m matcher, text string) ExtractedField {
	for _, loc := range m.re.FindAllStringSubmatchIndex(text, -1) {
		if loc[2] >= 0 {
			if loc[4] >= 0 && measurementUnits[strings.ToLower(text[loc[4]:loc[5]])] {
				continue
			}
			return parsed(m.spec.Name, text, loc[0], loc[1], text[loc[2]:loc[3]], "")
		}
		return parsed(m.spec.Name, text, loc[0], loc[1], text[loc[6]:loc[7]], "")
	}
	return notFound(m.spec.Name)
}

func parsed(f Field, text string, start, end int, value, unit string) ExtractedField {
	ef := ExtractedField{
		Name:      f,
		Raw:       text[start:end],
		ValueText: value,
		Unit:      unit,
		Offset:    start,
	}
	v, err := parseNumber(value)
	if err != nil {
		ef.Status = StatusParseFailed
		ef.Err = &NumericParseError{Field: f, Raw: value, Reason: err.Error()}
		return ef
	}
	if scale, ok := unitScale[unit]; ok {
		v *= scale
	}
	ef.Status = StatusParsed
	ef.Value = v
	return ef
}

// parseNumber reads the first run of digits and dots in s. Only '.' is a
// decimal separator.
func parseNumber(s string) (float64, error) {
	run := numberRun.FindString(s)
	if run == "" {
		return 0, fmt.Errorf("has no digits")
	}
	v, err := strconv.ParseFloat(run, 64)
	if err != nil {
		return 0, fmt.Errorf("is not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("is out of range")
	}
	return v, nil
}
