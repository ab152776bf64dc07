package i18n

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"

	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/store"
	"github.com/m3rciful/botflow/core/update/updatetest"
)

const testCatalog = `
en:
  apple: "Apple"
  hello: "Hello, %s!"
  apples:
    one: "%d apple"
    other: "%d apples"
  only_en: "English only"
ru:
  apple: "Яблоко"
  hello: "Привет, %s!"
  apples:
    one: "%d яблоко"
    few: "%d яблока"
    many: "%d яблок"
    other: "%d яблока"
`

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Parse([]byte(testCatalog), "en")
	require.NoError(t, err)
	return s
}

func TestParseTranslates(t *testing.T) {
	s := testStore(t)
	en := s.Lookup("en")
	ru := s.Lookup("ru")

	cases := []struct {
		tr   *Translator
		key  string
		args []any
		want string
	}{
		{en, "apple", nil, "Apple"},
		{ru, "apple", nil, "Яблоко"},
		{en, "hello", []any{"Ann"}, "Hello, Ann!"},
		{ru, "hello", []any{"Аня"}, "Привет, Аня!"},
		{en, "apples", []any{1}, "1 apple"},
		{en, "apples", []any{2}, "2 apples"},
		{ru, "apples", []any{1}, "1 яблоко"},
		{ru, "apples", []any{3}, "3 яблока"},
		{ru, "apples", []any{5}, "5 яблок"},
		{ru, "only_en", nil, "English only"},
		{en, "Not in catalog %d", []any{7}, "Not in catalog 7"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.tr.Text(tc.key, tc.args...), "%s %s", tc.tr.Locale(), tc.key)
	}
}

func TestLookupFallsBackToDefault(t *testing.T) {
	s := testStore(t)
	require.Equal(t, []string{"en", "ru"}, s.Locales())
	require.Equal(t, language.Russian, s.Lookup("ru-RU").Locale())
	require.Equal(t, language.English, s.Lookup("").Locale())
	require.Equal(t, language.English, s.Lookup("de").Locale())
	require.Equal(t, language.English, s.Lookup("not a tag!").Locale())
	require.Same(t, s.Default(), s.Lookup("de"))
}

func TestParseErrors(t *testing.T) {
	cases := map[string]struct {
		doc string
		def string
	}{
		"bad default":       {doc: "en: {a: b}", def: "??"},
		"bad yaml":          {doc: "en: [", def: "en"},
		"bad locale":        {doc: "not a tag!: {a: b}", def: "en"},
		"list message":      {doc: "en: {a: [1, 2]}", def: "en"},
		"unknown form":      {doc: "en: {a: {one: x, lots: y, other: z}}", def: "en"},
		"missing other":     {doc: "en: {a: {one: x}}", def: "en"},
		"non-string plural": {doc: "en: {a: {one: 1, other: z}}", def: "en"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), tc.def)
			require.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locales.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))
	s, err := LoadFile(path, "ru")
	require.NoError(t, err)
	require.Equal(t, language.Russian, s.Default().Locale())
	require.Equal(t, "Яблоко", s.Lookup("fr").Text("apple"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), "en")
	require.Error(t, err)
}

func TestFromEvent(t *testing.T) {
	ctx := context.Background()
	st := store.New()
	store.Put(st, testStore(t))
	ex := FromEvent()

	tr, ok := ex.Extract(ctx, dispatch.NewInput(st, updatetest.WithLanguage(updatetest.Message(1, 1, "hi"), "ru"))).Value()
	require.True(t, ok)
	require.Equal(t, "Яблоко", tr.Text("apple"))

	tr, ok = ex.Extract(ctx, dispatch.NewInput(st, updatetest.Message(1, 1, "hi"))).Value()
	require.True(t, ok)
	require.Equal(t, "Apple", tr.Text("apple"))

	tr, ok = ex.Extract(ctx, dispatch.NewInput(st, updatetest.Empty())).Value()
	require.True(t, ok)
	require.Equal(t, language.English, tr.Locale())

	out := ex.Extract(ctx, dispatch.NewInput(store.New(), updatetest.Message(1, 1, "hi")))
	require.ErrorIs(t, out.Err(), ErrStoreNotFound)
}

func TestNewStoreWithoutCatalog(t *testing.T) {
	s := NewStore(NewTranslator(language.English, catalog.NewBuilder()))
	require.Equal(t, "hi 3", s.Lookup("ru").Text("hi %d", 3))
}
