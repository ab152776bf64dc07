// Package access decides whether an event may be processed and exposes that
// decision as a dispatch predicate.
package access

import (
	"fmt"
	"strings"

	"github.com/m3rciful/botflow/core/update"
)

// Principal matches the events a rule applies to.
type Principal interface {
	Matches(ev *update.Event) bool
	String() string
}

type allPrincipal struct{}

// All matches every event.
func All() Principal { return allPrincipal{} }

func (allPrincipal) Matches(*update.Event) bool { return true }
func (allPrincipal) String() string            { return "all" }

type userPrincipal int64

// User matches events sent by the user id.
func User(id int64) Principal { return userPrincipal(id) }

func (p userPrincipal) Matches(ev *update.Event) bool {
	id, ok := ev.UserID()
	return ok && id == int64(p)
}

func (p userPrincipal) String() string { return fmt.Sprintf("user:%d", int64(p)) }

type usernamePrincipal string

// Username matches events sent by the user name, compared without "@" and
// ignoring case.
func Username(name string) Principal { return usernamePrincipal(normalizeName(name)) }

func (p usernamePrincipal) Matches(ev *update.Event) bool {
	name, ok := ev.Username()
	return ok && strings.EqualFold(normalizeName(name), string(p))
}

func (p usernamePrincipal) String() string { return "user:@" + string(p) }

type chatPrincipal int64

// Chat matches events from the chat id.
func Chat(id int64) Principal { return chatPrincipal(id) }

func (p chatPrincipal) Matches(ev *update.Event) bool {
	id, ok := ev.ChatID()
	return ok && id == int64(p)
}

func (p chatPrincipal) String() string { return fmt.Sprintf("chat:%d", int64(p)) }

type chatUsernamePrincipal string

// ChatUsername matches events from the public chat name.
func ChatUsername(name string) Principal { return chatUsernamePrincipal(normalizeName(name)) }

func (p chatUsernamePrincipal) Matches(ev *update.Event) bool {
	name, ok := ev.ChatUsername()
	return ok && strings.EqualFold(normalizeName(name), string(p))
}

func (p chatUsernamePrincipal) String() string { return "chat:@" + string(p) }

type chatUserPrincipal struct {
	chat Principal
	user Principal
}

// ChatUser matches events from a user inside a chat.
func ChatUser(chatID, userID int64) Principal {
	return chatUserPrincipal{chat: Chat(chatID), user: User(userID)}
}

func (p chatUserPrincipal) Matches(ev *update.Event) bool {
	return p.chat.Matches(ev) && p.user.Matches(ev)
}

func (p chatUserPrincipal) String() string { return p.chat.String() + "/" + p.user.String() }

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}
