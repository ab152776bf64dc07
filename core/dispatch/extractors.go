package dispatch

import (
	"context"
	"errors"

	"github.com/tidwall/gjson"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botflow/core/update"
)

// view builds an extractor from an event accessor returning (value, ok).
func view[T any](get func(*update.Event) (T, bool)) Extractor[T] {
	return ExtractorFunc[T](func(_ context.Context, in *Input) Outcome[T] {
		if in.Event == nil {
			return Absent[T]()
		}
		v, ok := get(in.Event)
		if !ok {
			return Absent[T]()
		}
		return Present(v)
	})
}

func nonNil[T any](get func(*update.Event) *T) func(*update.Event) (*T, bool) {
	return func(ev *update.Event) (*T, bool) {
		v := get(ev)
		return v, v != nil
	}
}

// EventOf extracts the event itself.
func EventOf() Extractor[*update.Event] {
	return view(func(ev *update.Event) (*update.Event, bool) { return ev, true })
}

// ChatID extracts the chat id.
func ChatID() Extractor[int64] { return view((*update.Event).ChatID) }

// ChatUsername extracts the chat username.
func ChatUsername() Extractor[string] { return view((*update.Event).ChatUsername) }

// Chat extracts the chat.
func Chat() Extractor[*tele.Chat] { return view(nonNil((*update.Event).Chat)) }

// UserID extracts the sender id.
func UserID() Extractor[int64] { return view((*update.Event).UserID) }

// Username extracts the sender username.
func Username() Extractor[string] { return view((*update.Event).Username) }

// User extracts the sender.
func User() Extractor[*tele.User] { return view(nonNil((*update.Event).Sender)) }

// Text extracts message text or caption.
func Text() Extractor[string] { return view((*update.Event).Text) }

// Message extracts the message.
func Message() Extractor[*tele.Message] { return view(nonNil((*update.Event).Message)) }

// Callback extracts the callback query.
func Callback() Extractor[*tele.Callback] { return view(nonNil((*update.Event).Callback)) }

// InlineQuery extracts the inline query.
func InlineQuery() Extractor[*tele.Query] { return view(nonNil((*update.Event).Query)) }

// CommandOf extracts the parsed command. Non-command events are absent; a
// malformed command entity fails.
func CommandOf() Extractor[update.Command] {
	return ExtractorFunc[update.Command](func(_ context.Context, in *Input) Outcome[update.Command] {
		if in.Event == nil {
			return Absent[update.Command]()
		}
		cmd, err := in.Event.Command()
		switch {
		case errors.Is(err, update.ErrNoCommand):
			return Absent[update.Command]()
		case err != nil:
			return Failed[update.Command](err)
		}
		return Present(cmd)
	})
}

// CallbackField extracts path from a JSON callback payload.
func CallbackField(path string) Extractor[gjson.Result] {
	return view(func(ev *update.Event) (gjson.Result, bool) { return ev.CallbackValue(path) })
}
