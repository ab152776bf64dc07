// Package i18n picks a per-locale Translator for each event from a Store
// built over a golang.org/x/text message catalog.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Translator renders catalog messages for one locale. Keys missing from the
// catalog are rendered as their own format string.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// NewTranslator returns a translator for tag over cat.
func NewTranslator(tag language.Tag, cat catalog.Catalog) *Translator {
	return &Translator{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}
}

// Locale returns the translator's language tag.
func (t *Translator) Locale() language.Tag { return t.tag }

// Text formats the message stored under key with args.
func (t *Translator) Text(key string, args ...any) string {
	return t.printer.Sprintf(key, args...)
}
