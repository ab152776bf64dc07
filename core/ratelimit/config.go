package ratelimit

import (
	"fmt"
	"time"

	"github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/dispatch"
)

// FromConfig builds the configured limiter. It returns nil when limiting is
// disabled.
func FromConfig(cfg config.RateLimitConfig) (dispatch.Handler, error) {
	if cfg.Capacity == 0 {
		return nil, nil
	}
	q := PerInterval(cfg.Capacity, cfg.Interval())
	opts := []Option{WithMethod(Discard)}
	if cfg.Method == config.LimitWait {
		opts = []Option{WithMethod(Wait), WithJitter(Jitter{Min: ms(cfg.JitterMinMS), Max: ms(cfg.JitterMaxMS)})}
	}

	switch cfg.Key {
	case config.KeyNone:
		d, err := NewDirect(q, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.KeyChat:
		return keyedInt64(q, ChatKey, cfg.Keys, opts)
	case config.KeyUser:
		return keyedInt64(q, UserKey, cfg.Keys, opts)
	case config.KeyChatUser:
		k, err := NewKeyed(q, ChatUserKey, opts...)
		if err != nil {
			return nil, err
		}
		return k, nil
	}
	return nil, fmt.Errorf("ratelimit: unknown key %q", cfg.Key)
}

func keyedInt64(q Quota, key KeyFunc[int64], keys []int64, opts []Option) (dispatch.Handler, error) {
	k, err := NewKeyed(q, key, opts...)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		k.WithKeys(keys...)
	}
	return k, nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
