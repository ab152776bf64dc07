// Package dialogue runs multi-step conversations whose state is kept in the
// event session.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/logger"
	"github.com/m3rciful/botflow/core/session"
)

// ErrEmptyName reports a dialogue without a name.
var ErrEmptyName = errors.New("dialogue: empty name")

// Transition is what a step returns: the next state or the end.
type Transition[S any] struct {
	next S
	exit bool
}

// Next keeps the dialogue running in state s.
func Next[S any](s S) Transition[S] { return Transition[S]{next: s} }

// Exit ends the dialogue and clears its state.
func Exit[S any]() Transition[S] { return Transition[S]{exit: true} }

// StepFunc handles one event in state.
type StepFunc[S any] func(ctx context.Context, state S, in *dispatch.Input) (Transition[S], error)

// Option configures a Dialogue.
type Option func(*settings)

type settings struct {
	gate dispatch.Handler
}

// WithGate sets the predicate deciding whether a dialogue without stored
// state starts on an event. Without a gate every eligible event starts it.
func WithGate(gate dispatch.Handler) Option {
	return func(s *settings) { s.gate = gate }
}

// Dialogue is a handler driving step with the state stored under its name.
type Dialogue[S any] struct {
	name    string
	initial S
	step    StepFunc[S]
	gate    dispatch.Handler
}

// New returns a dialogue starting in initial. Names must be unique among the
// dialogues sharing a session.
func New[S any](name string, initial S, step StepFunc[S], opts ...Option) (*Dialogue[S], error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if step == nil {
		return nil, fmt.Errorf("dialogue %s: nil step", name)
	}
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dialogue[S]{name: name, initial: initial, step: step, gate: cfg.gate}, nil
}

// Name returns the dialogue name.
func (d *Dialogue[S]) Name() string { return d.name }

// Key returns the session key holding the state.
func (d *Dialogue[S]) Key() string { return "dialogue:" + d.name }

// State returns the stored state, or the initial one when none is stored.
func (d *Dialogue[S]) State(ctx context.Context, s *session.Session) (S, bool, error) {
	state, ok, err := session.Value[S](ctx, s, d.Key())
	if err != nil || !ok {
		return d.initial, false, err
	}
	return state, true, nil
}

// Handle implements dispatch.Handler. Events without a session and events
// rejected by the gate are skipped; Next continues and Exit stops the chain.
func (d *Dialogue[S]) Handle(ctx context.Context, in *dispatch.Input) dispatch.Result {
	out := session.FromEvent().Extract(ctx, in)
	sess, ok := out.Value()
	if !ok {
		if out.IsAbsent() {
			return dispatch.Skipped()
		}
		return dispatch.Fail(fmt.Errorf("dialogue %s: %w", d.name, out.Err()))
	}

	state, stored, err := d.State(ctx, sess)
	if err != nil {
		return dispatch.Fail(fmt.Errorf("dialogue %s: load: %w", d.name, err))
	}
	if !stored && d.gate != nil {
		res := d.gate.Handle(ctx, in)
		switch {
		case res.IsError():
			return res
		case !res.IsContinue():
			return dispatch.Skipped()
		}
	}

	tr, err := d.step(ctx, state, in)
	if err != nil {
		return dispatch.Fail(fmt.Errorf("dialogue %s: step: %w", d.name, err))
	}

	if tr.exit {
		if err := sess.Remove(ctx, d.Key()); err != nil {
			return dispatch.Fail(fmt.Errorf("dialogue %s: exit: %w", d.name, err))
		}
		logger.Debug(ctx, logger.CompDialogue, "dialogue.exit",
			slog.String("dialogue", d.name),
			slog.String("session_id", sess.ID().String()),
		)
		return dispatch.Stop()
	}
	if err := sess.Set(ctx, d.Key(), tr.next); err != nil {
		return dispatch.Fail(fmt.Errorf("dialogue %s: save: %w", d.name, err))
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, logger.CompDialogue, "dialogue.next",
			slog.String("dialogue", d.name),
			slog.String("session_id", sess.ID().String()),
			slog.Any("state", tr.next),
		)
	}
	return dispatch.Continue()
}
