package access

import (
	"context"
	"fmt"

	"github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/dispatch"
)

// Policy grants or forbids processing of one dispatch input.
type Policy interface {
	IsGranted(ctx context.Context, in *dispatch.Input) (bool, error)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, in *dispatch.Input) (bool, error)

// IsGranted calls f.
func (f PolicyFunc) IsGranted(ctx context.Context, in *dispatch.Input) (bool, error) {
	return f(ctx, in)
}

// Rule pairs a principal with a decision.
type Rule struct {
	Principal Principal
	Granted   bool
}

// Allow grants access to p.
func Allow(p Principal) Rule { return Rule{Principal: p, Granted: true} }

// Deny forbids access to p.
func Deny(p Principal) Rule { return Rule{Principal: p} }

func (r Rule) String() string {
	if r.Granted {
		return "allow " + r.Principal.String()
	}
	return "deny " + r.Principal.String()
}

// Rules is an in-memory policy. The first matching rule decides; an event
// matching no rule is forbidden.
type Rules []Rule

// IsGranted implements Policy.
func (rs Rules) IsGranted(_ context.Context, in *dispatch.Input) (bool, error) {
	r, ok := rs.Match(in)
	return ok && r.Granted, nil
}

// Match returns the first rule whose principal matches the event.
func (rs Rules) Match(in *dispatch.Input) (Rule, bool) {
	if in == nil || in.Event == nil {
		return Rule{}, false
	}
	for _, r := range rs {
		if r.Principal != nil && r.Principal.Matches(in.Event) {
			return r, true
		}
	}
	return Rule{}, false
}

// RulesFromConfig converts normalized config rules in order.
func RulesFromConfig(cfg config.AccessConfig) (Rules, error) {
	rules := make(Rules, 0, len(cfg.Rules))
	for i, r := range cfg.Rules {
		var p Principal
		switch {
		case r.ChatID != 0 && r.UserID != 0:
			p = ChatUser(r.ChatID, r.UserID)
		case r.UserID != 0:
			p = User(r.UserID)
		case r.Username != "":
			p = Username(r.Username)
		case r.ChatID != 0:
			p = Chat(r.ChatID)
		case r.ChatUsername != "":
			p = ChatUsername(r.ChatUsername)
		default:
			p = All()
		}
		switch r.Action {
		case "allow":
			rules = append(rules, Allow(p))
		case "deny":
			rules = append(rules, Deny(p))
		default:
			return nil, fmt.Errorf("access: rule %d: unknown action %q", i, r.Action)
		}
	}
	return rules, nil
}
