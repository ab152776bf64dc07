package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/botflow/core/logger"
)

// Collector evicts sessions idle for longer than the lifetime.
type Collector struct {
	backend  Backend
	period   time.Duration
	lifetime time.Duration
}

// NewCollector returns a collector sweeping b every period.
func NewCollector(b Backend, period, lifetime time.Duration) *Collector {
	return &Collector{backend: b, period: period, lifetime: lifetime}
}

// SweepStats summarizes one pass.
type SweepStats struct {
	Count   int
	Evicted int
	Failed  int
}

// Sweep runs one pass. A failure on one session is logged and does not stop
// the others; only listing errors are returned.
func (c *Collector) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	start := time.Now()
	ctx = logger.WithTrace(ctx, uuid.NewString())

	ids, err := c.backend.Sessions(ctx)
	if err != nil {
		logger.Error(ctx, logger.CompSession, "collector.list", slog.String("status", "error"), logger.Err(err))
		return stats, fmt.Errorf("session: list: %w", err)
	}
	stats.Count = len(ids)
	for _, id := range ids {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		removed, err := c.backend.Expire(ctx, id, c.lifetime)
		switch {
		case err != nil:
			stats.Failed++
			logger.Error(ctx, logger.CompSession, "collector.expire",
				slog.String("status", "error"),
				slog.String("session_id", id.String()),
				logger.Err(err),
			)
		case removed:
			stats.Evicted++
		}
	}

	level := slog.LevelDebug
	if stats.Evicted > 0 || stats.Failed > 0 {
		level = slog.LevelInfo
	}
	logger.Event(ctx, logger.CompSession, level, "collector.sweep",
		slog.String("status", logger.Status(nil)),
		slog.Int("count", stats.Count),
		slog.Int("evicted", stats.Evicted),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", logger.Took(start)),
	)
	return stats, nil
}

// Handle controls a running collector.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the collector and waits for it to exit.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed once the collector exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Start sweeps every period until ctx is cancelled or Stop is called.
func (c *Collector) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		c.run(ctx)
	}()
	return h
}

func (c *Collector) run(ctx context.Context) {
	period := c.period
	if period <= 0 {
		period = time.Minute
	}
	logger.Info(ctx, logger.CompSession, "collector.start",
		slog.Duration("period", period),
		slog.Duration("lifetime", c.lifetime),
	)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, logger.CompSession, "collector.stop")
			return
		case <-ticker.C:
			// Sweep logs its own failures.
			_, _ = c.Sweep(ctx)
		}
	}
}
