package services

import "golang.org/x/text/language"

// Display languages, first one is the fallback.
const (
	LangRU = "ru"
	LangEN = "en"
	LangKY = "ky"
)

var (
	supportedLangs = []string{LangRU, LangEN, LangKY}
	langMatcher    = language.NewMatcher([]language.Tag{
		language.Russian,
		language.English,
		language.MustParse("ky"),
	})
)

// ResolveLang maps any client language hint ("en-US", "ky", "") to a supported display language.
func ResolveLang(hint string) string {
	if hint == "" {
		return LangRU
	}
	_, idx := language.MatchStrings(langMatcher, hint)
	if idx < 0 || idx >= len(supportedLangs) {
		return LangRU
	}
	return supportedLangs[idx]
}

// pickLocalized returns the variant for lang, falling back to the Russian text.
func pickLocalized(lang, ru, en, ky string) string {
	switch ResolveLang(lang) {
	case LangEN:
		if en != "" {
			return en
		}
	case LangKY:
		if ky != "" {
			return ky
		}
	}
	return ru
}
