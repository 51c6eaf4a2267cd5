package report

import (
	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgComplete = "Success"
	msgPartial  = "Nutrition information is incomplete"
	msgNotFound = "No valid nutrition information found"
)

var (
	matcher  = language.NewMatcher([]language.Tag{language.English, language.Indonesian})
	messages = func() *catalog.Builder {
		b := catalog.NewBuilder(catalog.Fallback(language.English))
		for _, m := range []string{msgComplete, msgPartial, msgNotFound} {
			_ = b.SetString(language.English, m, m)
		}
		_ = b.SetString(language.Indonesian, msgComplete, "Berhasil")
		_ = b.SetString(language.Indonesian, msgPartial, "Informasi nutrisi tidak lengkap")
		_ = b.SetString(language.Indonesian, msgNotFound, "Tidak ditemukan informasi nutrisi yang valid")
		return b
	}()
)

func outcomeMessage(kind nutrition.OutcomeKind, lang string) string {
	tag, _, _ := matcher.Match(language.Make(lang))
	base, _ := tag.Base()
	p := message.NewPrinter(language.Make(base.String()), message.Catalog(messages))
	switch kind {
	case nutrition.OutcomeComplete:
		return p.Sprintf(msgComplete)
	case nutrition.OutcomePartial:
		return p.Sprintf(msgPartial)
	default:
		return p.Sprintf(msgNotFound)
	}
}
