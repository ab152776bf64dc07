package i18n

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// pluralForms lists CLDR plural categories in the order they are tried.
// "other" matches any count, so it goes last.
var pluralForms = []string{"zero", "one", "two", "few", "many", "other"}

// Parse builds a store from a YAML document mapping locales to messages:
//
//	en:
//	  greeting: "Hello, %s!"
//	  apples:
//	    one: "%d apple"
//	    other: "%d apples"
//
// A message given as a mapping is selected by the plural form of its first
// argument. Keys absent from a locale fall back to the def locale.
func Parse(data []byte, def string) (*Store, error) {
	defTag, err := language.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("i18n: default locale %q: %w", def, err)
	}
	var doc map[string]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("i18n: parse catalog: %w", err)
	}

	b := catalog.NewBuilder()
	locales := make([]string, 0, len(doc))
	for locale := range doc {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	var (
		defaults map[string]any
		tags     = make(map[string]language.Tag, len(locales))
	)
	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("i18n: locale %q: %w", locale, err)
		}
		tags[locale] = tag
		if tag == defTag {
			defaults = doc[locale]
		}
	}

	var more []*Translator
	for _, locale := range locales {
		tag := tags[locale]
		msgs := doc[locale]
		for key, raw := range msgs {
			if err := set(b, tag, key, raw); err != nil {
				return nil, fmt.Errorf("i18n: %s.%s: %w", locale, key, err)
			}
		}
		if tag == defTag {
			continue
		}
		for key, raw := range defaults {
			if _, ok := msgs[key]; ok {
				continue
			}
			if err := set(b, tag, key, raw); err != nil {
				return nil, fmt.Errorf("i18n: %s.%s: %w", def, key, err)
			}
		}
		more = append(more, NewTranslator(tag, b))
	}
	return NewStore(NewTranslator(defTag, b), more...), nil
}

// LoadFile parses the catalog at path.
func LoadFile(path, def string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("i18n: read catalog: %w", err)
	}
	return Parse(data, def)
}

func set(b *catalog.Builder, tag language.Tag, key string, raw any) error {
	switch v := raw.(type) {
	case string:
		return b.SetString(tag, key, v)
	case map[string]any:
		cases, err := pluralCases(v)
		if err != nil {
			return err
		}
		return b.Set(tag, key, plural.Selectf(1, "%d", cases...))
	default:
		return fmt.Errorf("unsupported message type %T", raw)
	}
}

func pluralCases(forms map[string]any) ([]any, error) {
	var exact, named []any
	seen := 0
	for form, raw := range forms {
		msg, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("plural form %q is not a string", form)
		}
		if strings.HasPrefix(form, "=") {
			exact = append(exact, form, msg)
			seen++
		}
	}
	for _, form := range pluralForms {
		if raw, ok := forms[form]; ok {
			named = append(named, form, raw.(string))
			seen++
		}
	}
	if seen != len(forms) {
		return nil, fmt.Errorf("unknown plural form; allowed: =N, %s", strings.Join(pluralForms, ", "))
	}
	if _, ok := forms["other"]; !ok {
		return nil, fmt.Errorf("plural message needs an \"other\" form")
	}
	return append(exact, named...), nil
}
