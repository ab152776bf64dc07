package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/logger"
)

var errReservation = errors.New("ratelimit: reservation exceeds burst")

// take consumes one token from b according to o.
func take(ctx context.Context, b *rate.Limiter, o *options, attrs []slog.Attr) dispatch.Result {
	now := o.now()
	if o.method == Discard {
		if b.AllowN(now, 1) {
			return dispatch.Continue()
		}
		logger.Warn(ctx, logger.CompRateLimit, "ratelimit.discard", attrs...)
		return dispatch.Stop()
	}

	r := b.ReserveN(now, 1)
	if !r.OK() {
		return dispatch.Fail(errReservation)
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return dispatch.Continue()
	}
	jitter := o.jitter.sample()
	select {
	case <-o.sleep(delay + jitter):
	case <-ctx.Done():
		r.CancelAt(o.now())
		return dispatch.Fail(fmt.Errorf("ratelimit: wait: %w", ctx.Err()))
	}
	if logger.ShouldSampleDebug() {
		attrs = append(attrs, slog.Duration("wait", delay), slog.Duration("jitter", jitter))
		logger.Debug(ctx, logger.CompRateLimit, "ratelimit.waited", attrs...)
	}
	return dispatch.Continue()
}

// Direct is a predicate sharing one bucket across all events.
type Direct struct {
	bucket *rate.Limiter
	opts   options
}

// NewDirect returns a global limiter.
func NewDirect(q Quota, opts ...Option) (*Direct, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	d := &Direct{bucket: q.bucket(), opts: defaultOptions()}
	for _, opt := range opts {
		opt(&d.opts)
	}
	return d, nil
}

// Handle implements dispatch.Handler.
func (d *Direct) Handle(ctx context.Context, _ *dispatch.Input) dispatch.Result {
	return take(ctx, d.bucket, &d.opts, []slog.Attr{slog.String("mode", "direct")})
}

// Tokens reports the tokens available now.
func (d *Direct) Tokens() float64 { return d.bucket.TokensAt(d.opts.now()) }

// Guard wraps h with the limiter.
func (d *Direct) Guard(h dispatch.Handler) dispatch.Handler { return dispatch.Guard(d, h) }
