package classifier

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgHighSugar = "High sugar"
	msgLowSugar  = "Low sugar"
	msgReduce    = "Reduce consumption"
	msgSafe      = "Safe to consume"
)

var (
	supported = []language.Tag{language.English, language.Indonesian}
	matcher   = language.NewMatcher(supported)
	labels    = newCatalog()
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, m := range []string{msgHighSugar, msgLowSugar, msgReduce, msgSafe} {
		_ = b.SetString(language.English, m, m)
	}
	_ = b.SetString(language.Indonesian, msgHighSugar, "Tinggi Gula")
	_ = b.SetString(language.Indonesian, msgLowSugar, "Rendah Gula")
	_ = b.SetString(language.Indonesian, msgReduce, "Kurangi Konsumsi")
	_ = b.SetString(language.Indonesian, msgSafe, "Aman Dikonsumsi")
	return b
}

// Languages lists the supported label languages.
func Languages() []string {
	out := make([]string, len(supported))
	for i, t := range supported {
		out[i] = t.String()
	}
	return out
}

func printer(lang string) *message.Printer {
	tag, _, _ := matcher.Match(language.Make(lang))
	base, _ := tag.Base()
	return message.NewPrinter(language.Make(base.String()), message.Catalog(labels))
}
