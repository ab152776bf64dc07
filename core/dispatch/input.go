package dispatch

import (
	"github.com/m3rciful/botflow/core/store"
	"github.com/m3rciful/botflow/core/update"
)

// Input is shared by every extraction of one dispatch cycle.
type Input struct {
	Store *store.Store
	Event *update.Event
}

// NewInput pairs the shared store with one event.
func NewInput(s *store.Store, ev *update.Event) *Input {
	if s == nil {
		s = store.New()
	}
	return &Input{Store: s, Event: ev}
}
