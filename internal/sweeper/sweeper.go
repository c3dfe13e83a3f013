// Package sweeper periodically marks overdue scheduled appointments as
// NO_SHOW.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Target interface {
	SweepNoShows(ctx context.Context, grace time.Duration) (int, error)
}

type Worker struct {
	target   Target
	interval time.Duration
	grace    time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

func New(target Target, interval, grace time.Duration, log zerolog.Logger) *Worker {
	timeout := 20 * time.Second
	if interval > 0 && interval < timeout {
		timeout = interval
	}
	return &Worker{
		target:   target,
		interval: interval,
		grace:    grace,
		timeout:  timeout,
		log:      log.With().Str("component", "noshow_sweeper").Logger(),
	}
}

// Run sweeps once immediately, then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Dur("grace", w.grace).Msg("sweeper started")

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	n, err := w.target.SweepNoShows(runCtx, w.grace)
	if err != nil {
		w.log.Error().Err(err).Msg("sweep run failed")
		return
	}
	ev := w.log.Debug()
	if n > 0 {
		ev = w.log.Info()
	}
	ev.Int("marked", n).Dur("took", time.Since(start)).Msg("sweep run complete")
}
