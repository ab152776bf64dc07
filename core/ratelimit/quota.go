// Package ratelimit provides token bucket predicates for dispatch chains.
//
// A bucket holds up to Capacity tokens and refills at Capacity per Interval.
// Each event takes one token. When the bucket is empty the predicate either
// stops the chain (Discard) or suspends the dispatch until a token is ready
// (Wait), optionally sleeping a random jitter on top.
package ratelimit

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// ErrInvalidQuota reports a quota without capacity or interval.
var ErrInvalidQuota = errors.New("ratelimit: invalid quota")

// Quota is a burst capacity refilled over Interval.
type Quota struct {
	Capacity int
	Interval time.Duration
}

// PerInterval returns a quota of capacity events per interval.
func PerInterval(capacity int, interval time.Duration) Quota {
	return Quota{Capacity: capacity, Interval: interval}
}

// Validate checks that the quota can build a bucket.
func (q Quota) Validate() error {
	if q.Capacity <= 0 || q.Interval <= 0 {
		return fmt.Errorf("%w: capacity=%d interval=%s", ErrInvalidQuota, q.Capacity, q.Interval)
	}
	return nil
}

func (q Quota) bucket() *rate.Limiter {
	return rate.NewLimiter(rate.Every(q.Interval/time.Duration(q.Capacity)), q.Capacity)
}

// Method selects what happens when a bucket is empty.
type Method uint8

const (
	// Discard stops the chain.
	Discard Method = iota
	// Wait suspends until a token is available.
	Wait
)

func (m Method) String() string {
	if m == Wait {
		return "wait"
	}
	return "discard"
}

// Jitter is a random extra delay in [Min, Max] added after a wait.
type Jitter struct {
	Min time.Duration
	Max time.Duration
}

func (j Jitter) sample() time.Duration {
	if j.Max <= 0 || j.Max < j.Min {
		return max(j.Min, 0)
	}
	span := int64(j.Max - j.Min)
	if span <= 0 {
		return j.Min
	}
	return j.Min + time.Duration(rand.Int64N(span+1))
}

// Option configures a limiter.
type Option func(*options)

type options struct {
	method Method
	jitter Jitter
	now    func() time.Time
	sleep  func(time.Duration) <-chan time.Time
}

func defaultOptions() options {
	return options{method: Discard, now: time.Now, sleep: time.After}
}

// WithMethod sets the empty bucket behavior.
func WithMethod(m Method) Option { return func(o *options) { o.method = m } }

// WithJitter enables Wait and adds j after every actual wait.
func WithJitter(j Jitter) Option {
	return func(o *options) {
		o.method = Wait
		o.jitter = j
	}
}

// WithClock replaces the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
