package nutrition

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalizer rewrites raw OCR text into canonical label vocabulary.
//
// Steps run in a fixed order: NFKC folding, line-ending and whitespace
// cleanup, OCR fix-ups in declaration order, then one synonym collapse per
// field in table order. Every rewrite is whole-word and case-insensitive.
// Rewrites that could change already-normalized text are rejected or
// skipped at construction time, which keeps Normalize idempotent.
type Normalizer struct {
	steps []rewriter
}

type rewriter struct {
	re *regexp.Regexp
	to string
}

// NewNormalizer compiles the rewrite steps for table and fixes.
func NewNormalizer(table *SynonymTable, fixes []Replacement) (*Normalizer, error) {
	specs := table.Specs()
	labels := make([]string, 0, len(specs))
	for _, s := range specs {
		if err := checkCanonical(s.Label); err != nil {
			return nil, fmt.Errorf("field %s label: %w", s.Name, err)
		}
		labels = append(labels, s.Label)
	}

	n := &Normalizer{}
	for i, f := range fixes {
		if !wordEdged(f.From) {
			return nil, fmt.Errorf("replacement %q: must start and end with a letter or digit", f.From)
		}
		if err := checkCanonical(f.To); err != nil {
			return nil, fmt.Errorf("replacement %q: %w", f.From, err)
		}
		for _, l := range labels {
			if newRewriter([]string{l}, "\x00").apply(f.From) != f.From {
				return nil, fmt.Errorf("replacement %q contains canonical label %q", f.From, l)
			}
		}
		rw := newRewriter([]string{f.From}, f.To)
		later := append([]string{f.To}, labels...)
		for _, r := range fixes[i+1:] {
			later = append(later, r.To)
		}
		for _, o := range later {
			if rw.apply(o) != o {
				return nil, fmt.Errorf("replacement %q would rewrite normalized text %q", f.From, o)
			}
		}
		n.steps = append(n.steps, rw)
	}

	for i, s := range specs {
		var kept []string
		for _, v := range append([]string{s.Label}, s.Synonyms...) {
			if collapsible(v, s.Label, labels[i:], labels) {
				kept = append(kept, v)
			} else {
				slog.Debug("Synonym left to the extractor", "field", s.Name, "synonym", v)
			}
		}
		n.steps = append(n.steps, newRewriter(kept, s.Label))
	}
	return n, nil
}

// collapsible reports whether variant v may be rewritten to label without
// breaking idempotence: v must not contain any canonical label (other than
// being that label), and rewriting v must leave later labels intact.
func collapsible(v, label string, later, all []string) bool {
	if !wordEdged(v) {
		return false
	}
	for _, l := range all {
		if !strings.EqualFold(v, l) && newRewriter([]string{l}, "\x00").apply(v) != v {
			return false
		}
	}
	rw := newRewriter([]string{v}, label)
	for _, l := range later {
		if rw.apply(l) != l {
			return false
		}
	}
	return true
}

func checkCanonical(s string) error {
	if s == "" {
		return fmt.Errorf("empty")
	}
	if norm.NFKC.String(s) != s || collapseWhitespace(s) != s {
		return fmt.Errorf("%q is not in normalized form", s)
	}
	return nil
}

func newRewriter(variants []string, to string) rewriter {
	alts := slices.Clone(variants)
	slices.SortStableFunc(alts, func(a, b string) int {
		return utf8.RuneCountInString(b) - utf8.RuneCountInString(a)
	})
	for i, a := range alts {
		alts[i] = regexp.QuoteMeta(a)
	}
	if len(alts) == 0 {
		return rewriter{to: to}
	}
	re := regexp.MustCompile(`(?i)(` + strings.Join(alts, "|") + `)(?:[^\p{L}\p{M}\p{N}_]|$)`)
	return rewriter{re: re, to: to}
}

// apply replaces whole-word matches left to right. The trailing delimiter
// captured by the pattern is preserved.
func (r rewriter) apply(s string) string {
	if r.re == nil {
		return s
	}
	var b strings.Builder
	emitted, pos := 0, 0
	for pos < len(s) {
		loc := r.re.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[2], pos+loc[3]
		if start > 0 {
			if prev, _ := utf8.DecodeLastRuneInString(s[:start]); isWordRune(prev) {
				_, size := utf8.DecodeRuneInString(s[start:])
				pos = start + size
				continue
			}
		}
		b.WriteString(s[emitted:start])
		b.WriteString(r.to)
		emitted, pos = end, end
	}
	if emitted == 0 {
		return s
	}
	b.WriteString(s[emitted:])
	return b.String()
}

// Normalize returns the canonical form of raw. It is pure, deterministic and
// idempotent.
func (n *Normalizer) Normalize(raw string) string {
	s := collapseWhitespace(norm.NFKC.String(raw))
	for _, step := range n.steps {
		s = step.apply(s)
	}
	return s
}

// collapseWhitespace unifies line endings, squeezes horizontal whitespace to
// single spaces and trims every line.
func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.FieldsFunc(l, unicode.IsSpace), " ")
	}
	return strings.Join(lines, "\n")
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

func wordEdged(s string) bool {
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)
	return s != "" && isWordRune(first) && isWordRune(last) && first != '_' && last != '_'
}
