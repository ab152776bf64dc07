package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botflow/core/logger"
)

// menuCommands drops entries without a name or description, strips the
// leading slash and sorts by name. Later duplicates are ignored.
func menuCommands(cmds []tele.Command) []tele.Command {
	seen := make(map[string]struct{}, len(cmds))
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		name := strings.TrimPrefix(strings.TrimSpace(c.Text), "/")
		desc := strings.TrimSpace(c.Description)
		if name == "" || desc == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, tele.Command{Text: name, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

func publishCommands(ctx context.Context, bot *tele.Bot, cmds []tele.Command) {
	menu := menuCommands(cmds)
	if len(menu) == 0 {
		return
	}
	names := make([]string, len(menu))
	for i, c := range menu {
		names[i] = c.Text
	}
	summary, _ := logger.SummarizeStrings(names, 10)
	if err := bot.SetCommands(menu); err != nil {
		logger.Error(ctx, logger.CompTelegram, "tg.commands", slog.String("command", summary), logger.Err(err))
		return
	}
	logger.Info(ctx, logger.CompTelegram, "tg.commands", slog.String("command", summary), slog.Int("count", len(menu)))
}
