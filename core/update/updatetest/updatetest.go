// Package updatetest builds events for tests.
package updatetest

import (
	"strings"
	"sync/atomic"
	"unicode/utf16"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botflow/core/update"
)

var nextID atomic.Int64

func id() int { return int(nextID.Add(1)) }

func chat(chatID int64) *tele.Chat {
	typ := tele.ChatPrivate
	if chatID < 0 {
		typ = tele.ChatSuperGroup
	}
	return &tele.Chat{ID: chatID, Type: typ}
}

func user(userID int64) *tele.User {
	return &tele.User{ID: userID, FirstName: "test"}
}

// Message returns a text message from userID in chatID.
func Message(chatID, userID int64, text string) *update.Event {
	return update.New(tele.Update{
		ID: id(),
		Message: &tele.Message{
			ID:     id(),
			Sender: user(userID),
			Chat:   chat(chatID),
			Text:   text,
		},
	})
}

// Command returns a message whose first word is tagged as a bot_command entity.
func Command(chatID, userID int64, text string) *update.Event {
	ev := Message(chatID, userID, text)
	raw := ev.Raw()
	head, _, _ := strings.Cut(text, " ")
	raw.Message.Entities = tele.Entities{{
		Type:   tele.EntityCommand,
		Offset: 0,
		Length: len(utf16.Encode([]rune(head))),
	}}
	return update.New(raw)
}

// Photo returns a photo message captioned with caption. A caption starting
// with "/" gets a bot_command entity on its first word.
func Photo(chatID, userID int64, caption string) *update.Event {
	msg := &tele.Message{
		ID:      id(),
		Sender:  user(userID),
		Chat:    chat(chatID),
		Photo:   &tele.Photo{File: tele.File{FileID: "photo"}},
		Caption: caption,
	}
	if strings.HasPrefix(caption, "/") {
		head, _, _ := strings.Cut(caption, " ")
		msg.CaptionEntities = tele.Entities{{
			Type:   tele.EntityCommand,
			Length: len(utf16.Encode([]rune(head))),
		}}
	}
	return update.New(tele.Update{ID: id(), Message: msg})
}

// WithUsername returns a copy of ev whose sender carries username.
func WithUsername(ev *update.Event, username string) *update.Event {
	return withSender(ev, func(u *tele.User) { u.Username = username })
}

// WithLanguage returns a copy of ev whose sender reports the language code.
func WithLanguage(ev *update.Event, code string) *update.Event {
	return withSender(ev, func(u *tele.User) { u.LanguageCode = code })
}

func withSender(ev *update.Event, edit func(*tele.User)) *update.Event {
	raw := ev.Raw()
	if raw.Message != nil && raw.Message.Sender != nil {
		sender := *raw.Message.Sender
		edit(&sender)
		msg := *raw.Message
		msg.Sender = &sender
		raw.Message = &msg
	}
	return update.New(raw)
}

// Callback returns a button press carrying data on a message in chatID.
func Callback(chatID, userID int64, data string) *update.Event {
	return update.New(tele.Update{
		ID: id(),
		Callback: &tele.Callback{
			ID:     "cb",
			Sender: user(userID),
			Data:   data,
			Message: &tele.Message{
				ID:   id(),
				Chat: chat(chatID),
			},
		},
	})
}

// InlineQuery returns an inline query without a chat.
func InlineQuery(userID int64, text string) *update.Event {
	return update.New(tele.Update{
		ID:    id(),
		Query: &tele.Query{ID: "q", Sender: user(userID), Text: text},
	})
}

// Empty returns an update without any payload.
func Empty() *update.Event {
	return update.New(tele.Update{ID: id()})
}
