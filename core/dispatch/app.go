package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/botflow/core/logger"
	"github.com/m3rciful/botflow/core/store"
	"github.com/m3rciful/botflow/core/update"
)

// ErrNilEvent is returned by Dispatch for a nil event.
var ErrNilEvent = errors.New("dispatch: nil event")

// App dispatches events through a root handler with the shared store.
type App struct {
	store *store.Store
	root  Handler
	log   *slog.Logger
}

// NewApp returns an App. A nil store is replaced by an empty one.
func NewApp(s *store.Store, root Handler) *App {
	if s == nil {
		s = store.New()
	}
	return &App{store: s, root: Recover(root), log: logger.Component(logger.CompDispatch)}
}

// Store returns the shared store.
func (a *App) Store() *store.Store { return a.store }

// Dispatch runs one event through the root handler and logs the outcome.
func (a *App) Dispatch(ctx context.Context, ev *update.Event) Result {
	if ev == nil {
		return Fail(ErrNilEvent)
	}
	start := time.Now()
	chatID, _ := ev.ChatID()
	userID, _ := ev.UserID()
	ctx = logger.WithRID(ctx, logger.BuildRID(ev.ID(), chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, ev.ID(), userID, chatID)
	ctx = logger.WithTrace(ctx, uuid.NewString())
	ctx = logger.WithLogger(ctx, a.log)

	if logger.ShouldSampleDebug() {
		attrs := []slog.Attr{slog.String("update_kind", string(ev.Kind()))}
		if ct := ev.ChatType(); ct != "" {
			attrs = append(attrs, slog.String("chat_type", ct))
		}
		if name, ok := ev.Username(); ok {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(name, 64)))
		}
		if text, ok := ev.Text(); ok {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(text, 256)))
		}
		logger.LogEvent(ctx, a.log, slog.LevelDebug, "update.received", attrs...)
	}

	res := a.root.Handle(ctx, NewInput(a.store, ev))

	attrs := []slog.Attr{
		slog.String("result", res.Kind().String()),
		slog.Duration("duration", logger.Took(start)),
	}
	if res.IsError() {
		var pe *PanicError
		if errors.As(res.Err(), &pe) {
			attrs = append(attrs, slog.String("cause", "panic"))
		}
		attrs = append(attrs, slog.String("status", logger.Status(res.Err())), logger.Err(res.Err()))
		logger.LogEvent(ctx, a.log, slog.LevelError, "update.done", attrs...)
		return res
	}
	attrs = append(attrs, slog.String("status", logger.Status(nil)))
	logger.LogEvent(ctx, a.log, slog.LevelDebug, "update.done", attrs...)
	return res
}
