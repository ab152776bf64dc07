package i18n

import (
	"context"
	"errors"

	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/store"
)

// ErrStoreNotFound reports a FromEvent extraction without a *Store in the
// app store.
var ErrStoreNotFound = errors.New("i18n: translator store not found")

// FromEvent extracts the translator for the sender's language_code. Events
// without a sender or a supported language get the default translator.
func FromEvent() dispatch.Extractor[*Translator] {
	return dispatch.ExtractorFunc[*Translator](func(_ context.Context, in *dispatch.Input) dispatch.Outcome[*Translator] {
		s, ok := store.Get[*Store](in.Store)
		if !ok || s == nil {
			return dispatch.Failed[*Translator](ErrStoreNotFound)
		}
		var code string
		if in.Event != nil {
			if u := in.Event.Sender(); u != nil {
				code = u.LanguageCode
			}
		}
		return dispatch.Present(s.Lookup(code))
	})
}
