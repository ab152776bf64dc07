package dispatch

import (
	"context"

	"github.com/m3rciful/botflow/core/update"
)

// Guard runs inner only when predicate continues. Any other predicate result
// is returned as is and inner is not called.
func Guard(predicate, inner Handler) Handler {
	return HandlerFunc(func(ctx context.Context, in *Input) Result {
		res := predicate.Handle(ctx, in)
		if !res.IsContinue() {
			return res
		}
		return inner.Handle(ctx, in)
	})
}

// Check adapts a boolean test to a predicate handler. An error fails and an
// absent value skips. false stops: a failed check is a refusal, so in a Once
// chain it ends the dispatch instead of letting later members run. Use
// Command, or return Skipped from a custom predicate, to pass the event on.
func Check[T any](ex Extractor[T], test func(context.Context, T) (bool, error)) Handler {
	return Bind(ex, func(ctx context.Context, v T) Result {
		ok, err := test(ctx, v)
		switch {
		case err != nil:
			return Fail(err)
		case !ok:
			return Stop()
		}
		return Continue()
	})
}

// Command is a predicate matching the exact command name, e.g. "/start".
// Unlike Check, a mismatch skips rather than stops: other commands and
// non-command events are not refused, so a Once chain tries its next member.
func Command(name string) Handler {
	return Bind(CommandOf(), func(_ context.Context, cmd update.Command) Result {
		if name == "" || name[0] != '/' || cmd.Name != name {
			return Skipped()
		}
		return Continue()
	})
}

// OnCommand is Guard(Command(name), h).
func OnCommand(name string, h Handler) Handler {
	return Guard(Command(name), h)
}
