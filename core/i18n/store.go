package i18n

import (
	"golang.org/x/text/language"
)

// Store holds translators by locale. The first one is the default, used for
// events whose language is unknown or unsupported.
type Store struct {
	translators []*Translator
	matcher     language.Matcher
}

// NewStore returns a store with def as the fallback translator.
func NewStore(def *Translator, more ...*Translator) *Store {
	all := append([]*Translator{def}, more...)
	tags := make([]language.Tag, len(all))
	for i, t := range all {
		tags[i] = t.Locale()
	}
	return &Store{translators: all, matcher: language.NewMatcher(tags)}
}

// Default returns the fallback translator.
func (s *Store) Default() *Translator { return s.translators[0] }

// Lookup returns the translator matching an IETF language code such as the
// language_code Telegram reports for a user.
func (s *Store) Lookup(code string) *Translator {
	if code == "" {
		return s.Default()
	}
	tag, err := language.Parse(code)
	if err != nil {
		return s.Default()
	}
	_, i, conf := s.matcher.Match(tag)
	if conf == language.No {
		return s.Default()
	}
	return s.translators[i]
}

// Locales lists the supported locales, default first.
func (s *Store) Locales() []string {
	out := make([]string, len(s.translators))
	for i, t := range s.translators {
		out[i] = t.Locale().String()
	}
	return out
}
