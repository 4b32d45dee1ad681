// Package reaper deletes rooms that have been idle longer than a threshold.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/telemetry"
)

type Store interface {
	ReapBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Reaper struct {
	store     Store
	threshold time.Duration
	interval  time.Duration
	now       func() time.Time
	metrics   *telemetry.Metrics
	log       *slog.Logger
}

func New(store Store, threshold, interval time.Duration, m *telemetry.Metrics) *Reaper {
	if m == nil {
		m = telemetry.Noop()
	}
	return &Reaper{
		store:     store,
		threshold: threshold,
		interval:  interval,
		now:       time.Now,
		metrics:   m,
		log:       slog.Default().With("module", "reaper"),
	}
}

func (r *Reaper) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Run ticks until ctx is done. Store failures are logged and retried on the
// next tick.
func (r *Reaper) Run(ctx context.Context) {
	r.log.Info("reaper started", "threshold", r.threshold, "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return
		case <-ticker.C:
			_, _ = r.Tick(ctx)
		}
	}
}

// Tick deletes every room whose last activity is strictly before now-threshold.
func (r *Reaper) Tick(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.threshold)
	n, err := r.store.ReapBefore(ctx, cutoff)
	if err != nil {
		r.log.ErrorContext(ctx, "reap failed", "cutoff", cutoff, "err", err)
		return 0, err
	}
	if n > 0 {
		r.metrics.RoomsReaped.Add(ctx, n)
		r.log.InfoContext(ctx, "idle rooms reaped", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
