// Package i18n holds the embedded message catalogues and the locale carried
// through request contexts.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed messages/*.json
var messagesFS embed.FS

// Supported locales
const (
	LocaleEnglish = "en"
	LocaleSpanish = "es"
	DefaultLocale = LocaleSpanish
)

var supportedLocales = []string{LocaleSpanish, LocaleEnglish}

// fallbackDateLayout is used when a catalogue has no formats.date entry.
const fallbackDateLayout = "2006-01-02"

type localeKey struct{}

// catalogue maps a flattened dotted key such as "errors.not_found" to its text.
type catalogue map[string]string

var (
	catalogues     map[string]catalogue
	cataloguesOnce sync.Once
)

func loadCatalogues() map[string]catalogue {
	cataloguesOnce.Do(func() {
		catalogues = make(map[string]catalogue, len(supportedLocales))
		for _, locale := range supportedLocales {
			cat, err := readCatalogue(locale)
			if err != nil {
				// Embedded files are fixed at build time; a broken one is a
				// programming error.
				panic(err)
			}
			catalogues[locale] = cat
		}
	})
	return catalogues
}

func readCatalogue(locale string) (catalogue, error) {
	data, err := messagesFS.ReadFile("messages/" + locale + ".json")
	if err != nil {
		return nil, fmt.Errorf("i18n: read %s catalogue: %w", locale, err)
	}

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("i18n: parse %s catalogue: %w", locale, err)
	}

	cat := catalogue{}
	flatten("", tree, cat)
	return cat, nil
}

func flatten(prefix string, node map[string]any, into catalogue) {
	for key, value := range node {
		if prefix != "" {
			key = prefix + "." + key
		}
		switch v := value.(type) {
		case string:
			into[key] = v
		case map[string]any:
			flatten(key, v, into)
		}
	}
}

// IsSupported reports whether locale has a message catalogue.
func IsSupported(locale string) bool {
	for _, l := range supportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

// Localizer resolves message keys for one locale, falling back to
// DefaultLocale for keys the locale lacks.
type Localizer struct {
	locale string
	own    catalogue
	base   catalogue
}

// NewLocalizer creates a new localizer for the given locale. Unknown locales
// fall back to DefaultLocale.
func NewLocalizer(locale string) *Localizer {
	cats := loadCatalogues()
	if !IsSupported(locale) {
		locale = DefaultLocale
	}
	return &Localizer{locale: locale, own: cats[locale], base: cats[DefaultLocale]}
}

// LocalizerFromContext creates a localizer for the locale of ctx
func LocalizerFromContext(ctx context.Context) *Localizer {
	return NewLocalizer(LocaleFromContext(ctx))
}

// Locale returns the locale the localizer resolved to
func (l *Localizer) Locale() string {
	return l.locale
}

// T translates key, replacing {name} placeholders from params. A missing key
// is returned as is.
func (l *Localizer) T(key string, params ...map[string]string) string {
	msg, ok := l.lookup(key)
	if !ok {
		return key
	}
	if len(params) == 0 || len(params[0]) == 0 {
		return msg
	}

	pairs := make([]string, 0, 2*len(params[0]))
	for name, value := range params[0] {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// DateLayout returns the Go time layout used to render dates for the locale.
func (l *Localizer) DateLayout() string {
	if layout, ok := l.lookup("formats.date"); ok {
		return layout
	}
	return fallbackDateLayout
}

// CategoryLabel returns the display name of a field category, or the
// category itself when the catalogue has none.
func (l *Localizer) CategoryLabel(category string) string {
	if label, ok := l.lookup("categories." + category); ok {
		return label
	}
	return category
}

func (l *Localizer) lookup(key string) (string, bool) {
	if msg, ok := l.own[key]; ok {
		return msg, true
	}
	msg, ok := l.base[key]
	return msg, ok
}

// WithLocale adds locale to context
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFromContext returns the locale of ctx, or DefaultLocale.
func LocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(localeKey{}).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// ParseAcceptLanguage returns the first supported language listed in an
// Accept-Language header, in header order. Quality values are ignored.
func ParseAcceptLanguage(header string) string {
	for _, part := range strings.Split(strings.ToLower(header), ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		base := strings.SplitN(tag, "-", 2)[0]
		if IsSupported(base) {
			return base
		}
	}
	return DefaultLocale
}
