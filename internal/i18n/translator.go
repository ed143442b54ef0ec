package i18n

import (
	"embed"
	"fmt"

	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

// Supported lists the locales with message files, default first.
var Supported = []language.Tag{language.English, language.French}

// Translator renders message IDs from the embedded TOML catalogs.
type Translator struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
	logger  *log.Logger
}

func NewTranslator(logger *log.Logger) (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, tag := range Supported {
		file := fmt.Sprintf("active.%s.toml", tag)
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("i18n: load %s: %w", file, err)
		}
	}

	return &Translator{
		bundle:  bundle,
		matcher: language.NewMatcher(Supported),
		logger:  logger,
	}, nil
}

// Match picks the best supported locale for an Accept-Language header value.
// Empty or unparsable input yields the default locale.
func (t *Translator) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Supported[0].String()
	}

	_, index, _ := t.matcher.Match(tags...)
	return Supported[index].String()
}

// T renders id in locale, falling back to the default locale and then to id itself.
func (t *Translator) T(locale, id string, data map[string]any) string {
	localizer := i18n.NewLocalizer(t.bundle, locale, Supported[0].String())

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		t.logger.Warn("i18n: localize failed", "id", id, "locale", locale, "error", err)
		return id
	}
	return msg
}
