package update

import (
	"errors"
	"strings"
	"unicode/utf16"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrNoCommand reports that the update is not a bot command.
	ErrNoCommand = errors.New("update: not a command")
	// ErrBadCommand reports a command entity that does not fit the text.
	ErrBadCommand = errors.New("update: malformed command entity")
)

// Command is a parsed "/name@bot arg1 arg2" message.
type Command struct {
	// Name includes the leading "/".
	Name string
	// Bot is the mentioned bot username, empty when absent.
	Bot string
	// Args are the whitespace separated words after the command.
	Args []string
	// Payload is the raw text after the command.
	Payload string
}

// Command parses the command at the start of a message update. Media
// messages carry it in the caption.
func (e *Event) Command() (Command, error) {
	if e.raw.Callback != nil {
		return Command{}, ErrNoCommand
	}
	m := e.Message()
	if m == nil {
		return Command{}, ErrNoCommand
	}
	if m.Text == "" && m.Caption != "" {
		return ParseCommand(m.Caption, m.CaptionEntities)
	}
	return ParseCommand(m.Text, m.Entities)
}

// ParseCommand extracts a command from text. When entities are present the
// command must be a bot_command entity at offset 0; otherwise the first word
// is used when it starts with "/".
func ParseCommand(text string, entities tele.Entities) (Command, error) {
	head, rest, err := splitCommand(text, entities)
	if err != nil {
		return Command{}, err
	}
	name, bot, _ := strings.Cut(head, "@")
	if len(name) < 2 {
		return Command{}, ErrBadCommand
	}
	payload := strings.TrimSpace(rest)
	return Command{
		Name:    name,
		Bot:     trimMention(bot),
		Args:    strings.Fields(payload),
		Payload: payload,
	}, nil
}

func splitCommand(text string, entities tele.Entities) (string, string, error) {
	if len(entities) == 0 {
		if !strings.HasPrefix(text, "/") {
			return "", "", ErrNoCommand
		}
		head, rest, _ := strings.Cut(text, " ")
		if i := strings.IndexAny(head, "\n\t"); i >= 0 {
			head, rest = head[:i], head[i:]+" "+rest
		}
		return head, rest, nil
	}
	for _, ent := range entities {
		if ent.Type != tele.EntityCommand || ent.Offset != 0 {
			continue
		}
		// Entity offsets count UTF-16 code units.
		units := utf16.Encode([]rune(text))
		if ent.Length <= 0 || ent.Length > len(units) {
			return "", "", ErrBadCommand
		}
		head := string(utf16.Decode(units[:ent.Length]))
		return head, string(utf16.Decode(units[ent.Length:])), nil
	}
	return "", "", ErrNoCommand
}
