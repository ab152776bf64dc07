// Package update wraps a raw Telegram update with the read-only views the
// dispatch pipeline extracts from.
package update

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Kind names the payload carried by an update.
type Kind string

const (
	KindMessage           Kind = "message"
	KindEditedMessage     Kind = "edited_message"
	KindChannelPost       Kind = "channel_post"
	KindEditedChannelPost Kind = "edited_channel_post"
	KindCallback          Kind = "callback_query"
	KindInlineQuery       Kind = "inline_query"
	KindInlineResult      Kind = "chosen_inline_result"
	KindShippingQuery     Kind = "shipping_query"
	KindPreCheckoutQuery  Kind = "pre_checkout_query"
	KindPoll              Kind = "poll"
	KindPollAnswer        Kind = "poll_answer"
	KindMyChatMember      Kind = "my_chat_member"
	KindChatMember        Kind = "chat_member"
	KindChatJoinRequest   Kind = "chat_join_request"
	KindUnknown           Kind = "unknown"
)

// Event is one inbound update. It is never mutated after New.
type Event struct {
	raw tele.Update
}

// New wraps u.
func New(u tele.Update) *Event {
	return &Event{raw: u}
}

// ID returns the update id.
func (e *Event) ID() int { return e.raw.ID }

// Raw returns a copy of the wrapped update.
func (e *Event) Raw() tele.Update { return e.raw }

// Kind reports which payload the update carries.
func (e *Event) Kind() Kind {
	u := &e.raw
	switch {
	case u.Message != nil:
		return KindMessage
	case u.EditedMessage != nil:
		return KindEditedMessage
	case u.ChannelPost != nil:
		return KindChannelPost
	case u.EditedChannelPost != nil:
		return KindEditedChannelPost
	case u.Callback != nil:
		return KindCallback
	case u.Query != nil:
		return KindInlineQuery
	case u.InlineResult != nil:
		return KindInlineResult
	case u.ShippingQuery != nil:
		return KindShippingQuery
	case u.PreCheckoutQuery != nil:
		return KindPreCheckoutQuery
	case u.Poll != nil:
		return KindPoll
	case u.PollAnswer != nil:
		return KindPollAnswer
	case u.MyChatMember != nil:
		return KindMyChatMember
	case u.ChatMember != nil:
		return KindChatMember
	case u.ChatJoinRequest != nil:
		return KindChatJoinRequest
	}
	return KindUnknown
}

// Message returns the message carried directly by the update, or the message
// a callback button was attached to.
func (e *Event) Message() *tele.Message {
	u := &e.raw
	switch {
	case u.Message != nil:
		return u.Message
	case u.EditedMessage != nil:
		return u.EditedMessage
	case u.ChannelPost != nil:
		return u.ChannelPost
	case u.EditedChannelPost != nil:
		return u.EditedChannelPost
	case u.Callback != nil:
		return u.Callback.Message
	}
	return nil
}

// Chat returns the chat the update belongs to.
func (e *Event) Chat() *tele.Chat {
	if m := e.Message(); m != nil && m.Chat != nil {
		return m.Chat
	}
	u := &e.raw
	switch {
	case u.MyChatMember != nil:
		return u.MyChatMember.Chat
	case u.ChatMember != nil:
		return u.ChatMember.Chat
	case u.ChatJoinRequest != nil:
		return u.ChatJoinRequest.Chat
	}
	return nil
}

// ChatID returns the chat id when the update has a chat.
func (e *Event) ChatID() (int64, bool) {
	if c := e.Chat(); c != nil {
		return c.ID, true
	}
	return 0, false
}

// ChatUsername returns the public username of the chat.
func (e *Event) ChatUsername() (string, bool) {
	if c := e.Chat(); c != nil && c.Username != "" {
		return c.Username, true
	}
	return "", false
}

// Sender returns the user that caused the update.
func (e *Event) Sender() *tele.User {
	u := &e.raw
	switch {
	case u.Callback != nil:
		return u.Callback.Sender
	case u.Query != nil:
		return u.Query.Sender
	case u.InlineResult != nil:
		return u.InlineResult.Sender
	case u.ShippingQuery != nil:
		return u.ShippingQuery.Sender
	case u.PreCheckoutQuery != nil:
		return u.PreCheckoutQuery.Sender
	case u.PollAnswer != nil:
		return u.PollAnswer.Sender
	case u.MyChatMember != nil:
		return u.MyChatMember.Sender
	case u.ChatMember != nil:
		return u.ChatMember.Sender
	case u.ChatJoinRequest != nil:
		return u.ChatJoinRequest.Sender
	}
	if m := e.Message(); m != nil {
		return m.Sender
	}
	return nil
}

// UserID returns the sender id.
func (e *Event) UserID() (int64, bool) {
	if s := e.Sender(); s != nil {
		return s.ID, true
	}
	return 0, false
}

// Username returns the sender username without the leading "@".
func (e *Event) Username() (string, bool) {
	if s := e.Sender(); s != nil && s.Username != "" {
		return s.Username, true
	}
	return "", false
}

// Text returns the text or caption of a message update.
func (e *Event) Text() (string, bool) {
	u := &e.raw
	if u.Callback != nil {
		return "", false
	}
	m := e.Message()
	if m == nil {
		return "", false
	}
	if m.Text != "" {
		return m.Text, true
	}
	if m.Caption != "" {
		return m.Caption, true
	}
	return "", false
}

// Callback returns the callback query.
func (e *Event) Callback() *tele.Callback { return e.raw.Callback }

// Query returns the inline query.
func (e *Event) Query() *tele.Query { return e.raw.Query }

// ChatType returns the chat type, empty when the update has no chat.
func (e *Event) ChatType() string {
	if c := e.Chat(); c != nil {
		return string(c.Type)
	}
	return ""
}

func trimMention(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}
