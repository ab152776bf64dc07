package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/botflow/core/logger"
)

// OnError replaces an Error result of h with whatever fn returns.
func OnError(h Handler, fn func(ctx context.Context, err error) Result) Handler {
	return HandlerFunc(func(ctx context.Context, in *Input) Result {
		res := h.Handle(ctx, in)
		if !res.IsError() {
			return res
		}
		return fn(ctx, res.Err())
	})
}

// LogErrors logs failures of h and turns them into fallback.
func LogErrors(h Handler, fallback Result) Handler {
	return OnError(h, func(ctx context.Context, err error) Result {
		logger.Error(ctx, logger.CompDispatch, "handler.recovered",
			slog.String("handler", logger.HandlerFrom(ctx)),
			slog.String("result", fallback.Kind().String()),
			logger.Err(err),
		)
		return fallback
	})
}

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("dispatch: panic: %v", e.Value) }

// Recover turns a panic in h into an Error result.
func Recover(h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, in *Input) (res Result) {
		defer func() {
			if r := recover(); r != nil {
				res = Fail(&PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		return h.Handle(ctx, in)
	})
}

// Named runs h with its name attached to the log context.
func Named(name string, h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, in *Input) Result {
		return h.Handle(logger.WithHandler(ctx, name), in)
	})
}
