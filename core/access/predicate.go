package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/logger"
)

// Predicate stops the chain for inputs the policy forbids. Policy errors
// fail the guarded handler.
func Predicate(policy Policy) dispatch.Handler {
	return dispatch.HandlerFunc(func(ctx context.Context, in *dispatch.Input) dispatch.Result {
		granted, err := policy.IsGranted(ctx, in)
		if err != nil {
			logger.Error(ctx, logger.CompAccess, "access.check", slog.String("status", "error"), logger.Err(err))
			return dispatch.Fail(fmt.Errorf("access: policy: %w", err))
		}
		if !granted {
			logger.Info(ctx, logger.CompAccess, "access.forbidden", principalAttrs(in)...)
			return dispatch.Stop()
		}
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, logger.CompAccess, "access.granted", principalAttrs(in)...)
		}
		return dispatch.Continue()
	})
}

// Protect guards h with Predicate(policy).
func Protect(policy Policy, h dispatch.Handler) dispatch.Handler {
	return dispatch.Guard(Predicate(policy), h)
}

func principalAttrs(in *dispatch.Input) []slog.Attr {
	if in == nil || in.Event == nil {
		return nil
	}
	var attrs []slog.Attr
	if id, ok := in.Event.UserID(); ok {
		attrs = append(attrs, slog.Int64("user_id", id))
	}
	if name, ok := in.Event.Username(); ok {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(name, 64)))
	}
	if id, ok := in.Event.ChatID(); ok {
		attrs = append(attrs, slog.Int64("chat_id", id))
	}
	return attrs
}
