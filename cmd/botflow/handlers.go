package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botflow/core/dialogue"
	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/i18n"
	"github.com/m3rciful/botflow/core/ratelimit"
	"github.com/m3rciful/botflow/core/session"
	"github.com/m3rciful/botflow/core/store"
)

const visitsKey = "visits"

// Sender is the part of *tele.Bot the handlers send with.
type Sender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// senderFrom returns an explicitly stored Sender, falling back to the bot.
func senderFrom(s *store.Store) (Sender, error) {
	if v, ok := store.Get[Sender](s); ok && v != nil {
		return v, nil
	}
	if b, ok := store.Get[*tele.Bot](s); ok && b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("sender: %w", dispatch.ErrNotInStore)
}

func sender() dispatch.Extractor[Sender] {
	return dispatch.ExtractorFunc[Sender](func(_ context.Context, in *dispatch.Input) dispatch.Outcome[Sender] {
		v, err := senderFrom(in.Store)
		if err != nil {
			return dispatch.Failed[Sender](err)
		}
		return dispatch.Present(v)
	})
}

func reply(s Sender, chat *tele.Chat, text string) error {
	_, err := s.Send(chat, text)
	return err
}

type signupStep string

const (
	stepStart signupStep = "start"
	stepName  signupStep = "name"
	stepAge   signupStep = "age"
)

type signup struct {
	Step signupStep `json:"step"`
	Name string     `json:"name,omitempty"`
}

func signupStepFunc(ctx context.Context, st signup, in *dispatch.Input) (dialogue.Transition[signup], error) {
	s, err := senderFrom(in.Store)
	if err != nil {
		return dialogue.Transition[signup]{}, err
	}
	out := i18n.FromEvent().Extract(ctx, in)
	tr, ok := out.Value()
	if !ok {
		return dialogue.Transition[signup]{}, out.Err()
	}
	chat := in.Event.Chat()
	if chat == nil {
		return dialogue.Next(st), nil
	}
	text, _ := in.Event.Text()
	text = strings.TrimSpace(text)

	switch st.Step {
	case stepStart:
		if err := reply(s, chat, tr.Text("What is your name?")); err != nil {
			return dialogue.Transition[signup]{}, err
		}
		return dialogue.Next(signup{Step: stepName}), nil
	case stepName:
		if text == "" {
			return dialogue.Next(st), reply(s, chat, tr.Text("Please send your name as text."))
		}
		if err := reply(s, chat, tr.Text("How old are you?")); err != nil {
			return dialogue.Transition[signup]{}, err
		}
		return dialogue.Next(signup{Step: stepAge, Name: text}), nil
	case stepAge:
		age, err := strconv.Atoi(text)
		if err != nil || age <= 0 {
			return dialogue.Next(st), reply(s, chat, tr.Text("Age must be a positive number."))
		}
		if err := reply(s, chat, tr.Text("Welcome, %s (%d)!", st.Name, age)); err != nil {
			return dialogue.Transition[signup]{}, err
		}
		return dialogue.Exit[signup](), nil
	}
	return dialogue.Exit[signup](), nil
}

func startHandler() dispatch.Handler {
	return dispatch.Bind3(sender(), dispatch.Join2(dispatch.Chat(), i18n.FromEvent()), session.FromEvent(),
		func(ctx context.Context, s Sender, to dispatch.Tuple2[*tele.Chat, *i18n.Translator], sess *session.Session) dispatch.Result {
			visits, _, err := session.Value[int](ctx, sess, visitsKey)
			if err != nil {
				return dispatch.Fail(err)
			}
			visits++
			if err := sess.Set(ctx, visitsKey, visits); err != nil {
				return dispatch.Fail(err)
			}
			if err := reply(s, to.A, to.B.Text("Hello! Visit #%d. Try /signup.", visits)); err != nil {
				return dispatch.Fail(err)
			}
			return dispatch.Stop()
		})
}

// likeHandler answers callbacks whose JSON payload carries an "item".
func likeHandler() dispatch.Handler {
	return dispatch.Bind3(sender(), dispatch.Chat(), dispatch.CallbackField("item"),
		func(_ context.Context, s Sender, chat *tele.Chat, item gjson.Result) dispatch.Result {
			if err := reply(s, chat, "liked "+item.String()); err != nil {
				return dispatch.Fail(err)
			}
			return dispatch.Stop()
		})
}

func echoHandler() dispatch.Handler {
	return dispatch.Bind3(sender(), dispatch.Chat(), dispatch.Text(),
		func(_ context.Context, s Sender, chat *tele.Chat, text string) dispatch.Result {
			if err := reply(s, chat, text); err != nil {
				return dispatch.Fail(err)
			}
			return dispatch.Stop()
		})
}

func buildHandler() (dispatch.Handler, error) {
	signupDialogue, err := dialogue.New("signup", signup{Step: stepStart}, signupStepFunc,
		dialogue.WithGate(dispatch.Command("/signup")))
	if err != nil {
		return nil, err
	}
	perUser, err := ratelimit.NewKeyed(ratelimit.PerInterval(3, time.Minute), ratelimit.UserKey)
	if err != nil {
		return nil, err
	}
	return dispatch.Once(
		dispatch.Named("signup", signupDialogue),
		dispatch.Named("start", dispatch.OnCommand("/start", startHandler())),
		dispatch.Named("like", likeHandler()),
		dispatch.Named("echo", dispatch.LogErrors(perUser.Guard(echoHandler()), dispatch.Stop())),
	), nil
}
