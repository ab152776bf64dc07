package session

import (
	"context"

	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/store"
)

// IDOf extracts the session id of the event.
func IDOf() dispatch.Extractor[ID] {
	return dispatch.ExtractorFunc[ID](func(_ context.Context, in *dispatch.Input) dispatch.Outcome[ID] {
		id, ok := IDFromEvent(in.Event)
		if !ok {
			return dispatch.Absent[ID]()
		}
		return dispatch.Present(id)
	})
}

// FromEvent extracts the event session from the *Manager in the store. A
// missing manager fails; an event without chat or user is absent.
func FromEvent() dispatch.Extractor[*Session] {
	return dispatch.ExtractorFunc[*Session](func(_ context.Context, in *dispatch.Input) dispatch.Outcome[*Session] {
		m, ok := store.Get[*Manager](in.Store)
		if !ok || m == nil {
			return dispatch.Failed[*Session](ErrManagerNotFound)
		}
		id, ok := IDFromEvent(in.Event)
		if !ok {
			return dispatch.Absent[*Session]()
		}
		return dispatch.Present(m.Get(id))
	})
}
