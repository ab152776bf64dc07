// Package telegram connects a dispatch.App to the Bot API through telebot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/logger"
	"github.com/m3rciful/botflow/core/store"
)

// RunOptions controls Run.
type RunOptions struct {
	Config *coreconfig.Config
	App    *dispatch.App

	// Poller replaces the poller built from Config.
	Poller tele.Poller
	// Offline skips the getMe call on startup.
	Offline bool
	// KeepWebhook leaves a registered webhook in place in long polling mode.
	KeepWebhook bool
	// Commands are published as the bot command menu on startup.
	Commands []tele.Command

	OnStart func(ctx context.Context, bot *tele.Bot) error
}

// Run polls updates and dispatches them until ctx is done. The bot is put
// into the app store before the first update is dispatched.
func Run(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.App == nil {
		return errors.New("telegram: nil app provided")
	}
	cfg := opts.Config

	poller := opts.Poller
	if poller == nil {
		poller = BuildPoller(cfg)
	}

	workers := newPool(ctx, opts.App, cfg.Telegram.Workers)
	defer workers.close()

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  tele.NewMiddlewarePoller(poller, workers.filter),
		Client:  BuildHTTPClient(longPollTimeout(cfg)),
		Offline: opts.Offline,
		OnError: func(err error, _ tele.Context) {
			logger.Error(ctx, logger.CompTelegram, "tg.error", logger.Err(err))
		},
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	store.Put(opts.App.Store(), bot)
	logMode(ctx, cfg, poller, logger.Took(start))

	if _, ok := poller.(*tele.LongPoller); ok && !opts.KeepWebhook && !opts.Offline {
		if err := bot.RemoveWebhook(); err != nil {
			logger.Warn(ctx, logger.CompTelegram, "tg.delete_webhook", logger.Err(err))
		} else {
			logger.Info(ctx, logger.CompTelegram, "tg.delete_webhook")
		}
	}

	if !opts.Offline {
		publishCommands(ctx, bot, opts.Commands)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, bot); err != nil {
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		stopBot(bot, runDone)
	case <-runDone:
	}
	logger.Info(ctx, logger.CompTelegram, "tg.stopped", slog.Int("workers", max(cfg.Telegram.Workers, 1)))
	return nil
}

// stopBot repeats Stop until Start returns; a Stop issued before Start
// registered its stop channel is otherwise lost.
func stopBot(bot *tele.Bot, done <-chan struct{}) {
	for {
		bot.Stop()
		select {
		case <-done:
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func logMode(ctx context.Context, cfg *coreconfig.Config, poller tele.Poller, took time.Duration) {
	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, logger.CompTelegram, "tg.mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(took)),
		)
	case *tele.LongPoller:
		logger.Info(ctx, logger.CompTelegram, "tg.mode",
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", p.Timeout),
			slog.Int("workers", cfg.Telegram.Workers),
			slog.Duration("duration", logger.RoundMS(took)),
		)
	default:
		logger.Info(ctx, logger.CompTelegram, "tg.mode",
			slog.String("mode", fmt.Sprintf("%T", poller)),
			slog.Duration("duration", logger.RoundMS(took)),
		)
	}
}
