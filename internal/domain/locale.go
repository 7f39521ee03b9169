package domain

type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleArabic  Locale = "ar"

	DefaultLocale = LocaleEnglish
)

// SupportedLocales lists the storefront languages, default first.
var SupportedLocales = []Locale{LocaleEnglish, LocaleArabic}

func (l Locale) Valid() bool {
	return l == LocaleEnglish || l == LocaleArabic
}

// RTL reports whether text in the locale is laid out right-to-left.
func (l Locale) RTL() bool {
	return l == LocaleArabic
}

// LocalizedText holds one display string per supported locale.
type LocalizedText struct {
	EN string `json:"en"`
	AR string `json:"ar"`
}

// In returns the text for the locale, falling back to English.
func (t LocalizedText) In(locale Locale) string {
	if locale == LocaleArabic && t.AR != "" {
		return t.AR
	}
	return t.EN
}
