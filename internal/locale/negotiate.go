package locale

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
)

var matcher = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// Parse accepts exactly the supported locale codes, as used in URL prefixes.
func Parse(value string) (domain.Locale, bool) {
	locale := domain.Locale(strings.TrimSpace(value))
	return locale, locale.Valid()
}

// Match picks the best supported locale for an Accept-Language header value,
// falling back to the default locale.
func Match(acceptLanguage string) domain.Locale {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return domain.DefaultLocale
	}

	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return domain.DefaultLocale
	}

	return domain.SupportedLocales[index]
}
