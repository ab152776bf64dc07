package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/update/updatetest"
)

func TestGuard(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		predicate dispatch.Result
		want      dispatch.Kind
		ran       bool
	}{
		{name: "continue runs inner", predicate: dispatch.Continue(), want: dispatch.KindStop, ran: true},
		{name: "stop suppresses inner", predicate: dispatch.Stop(), want: dispatch.KindStop},
		{name: "error propagates", predicate: dispatch.Fail(boom), want: dispatch.KindError},
		{name: "skip propagates", predicate: dispatch.Skipped(), want: dispatch.KindSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			h := dispatch.Guard(rec.handler("pred", tt.predicate), rec.handler("inner", dispatch.Stop()))
			res := h.Handle(context.Background(), input(updatetest.Empty()))
			require.Equal(t, tt.want, res.Kind())
			require.Equal(t, tt.ran, len(rec.calls) == 2)
		})
	}
}

func TestCommandPredicate(t *testing.T) {
	tests := []struct {
		name string
		in   *dispatch.Input
		want dispatch.Kind
	}{
		{name: "exact", in: input(updatetest.Command(1, 2, "/start")), want: dispatch.KindContinue},
		{name: "with args", in: input(updatetest.Command(1, 2, "/start abc")), want: dispatch.KindContinue},
		{name: "with mention", in: input(updatetest.Command(1, 2, "/start@demo_bot")), want: dispatch.KindContinue},
		{name: "longer name", in: input(updatetest.Command(1, 2, "/start2")), want: dispatch.KindSkipped},
		{name: "no delimiter", in: input(updatetest.Message(1, 2, "start")), want: dispatch.KindSkipped},
		{name: "callback", in: input(updatetest.Callback(1, 2, "/start")), want: dispatch.KindSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := dispatch.Command("/start").Handle(context.Background(), tt.in)
			require.Equal(t, tt.want, res.Kind())
		})
	}

	res := dispatch.Command("start").Handle(context.Background(), input(updatetest.Command(1, 2, "/start")))
	require.True(t, res.IsSkipped())
}

func TestCommandRoutingInOnce(t *testing.T) {
	rec := &recorder{}
	router := dispatch.Once(
		dispatch.OnCommand("/start", rec.handler("start", dispatch.Stop())),
		dispatch.OnCommand("/help", rec.handler("help", dispatch.Stop())),
	)
	res := router.Handle(context.Background(), input(updatetest.Command(1, 2, "/help")))
	require.True(t, res.IsStop())
	require.Equal(t, []string{"help"}, rec.calls)
}

func TestCheck(t *testing.T) {
	even := dispatch.Check(dispatch.UserID(), func(_ context.Context, id int64) (bool, error) {
		if id < 0 {
			return false, errors.New("negative")
		}
		return id%2 == 0, nil
	})
	ctx := context.Background()
	require.True(t, even.Handle(ctx, input(updatetest.Message(1, 2, "x"))).IsContinue())
	require.True(t, even.Handle(ctx, input(updatetest.Message(1, 3, "x"))).IsStop())
	require.True(t, even.Handle(ctx, input(updatetest.Message(1, -4, "x"))).IsError())
	require.True(t, even.Handle(ctx, input(updatetest.Empty())).IsSkipped())
}

func TestCheckRefusalEndsOnceWhileCommandMismatchMovesOn(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	evenOnly := dispatch.Check(dispatch.UserID(), func(_ context.Context, id int64) (bool, error) {
		return id%2 == 0, nil
	})
	router := dispatch.Once(
		dispatch.OnCommand("/help", rec.handler("help", dispatch.Stop())),
		dispatch.Guard(evenOnly, rec.handler("even", dispatch.Stop())),
		rec.handler("fallback", dispatch.Stop()),
	)

	require.True(t, router.Handle(ctx, input(updatetest.Command(1, 3, "/start"))).IsStop())
	require.Empty(t, rec.calls, "odd user is refused by Check before the fallback")

	require.True(t, router.Handle(ctx, input(updatetest.Command(1, 2, "/start"))).IsStop())
	require.Equal(t, []string{"even"}, rec.calls)
}
