package workers

import (
	"context"
	"log/slog"
	"time"
)

type StaleEvictor interface {
	EvictStale(ctx context.Context) int
}

// LocationSweeper runs the periodic staleness sweep over the location store.
// Disconnect-driven eviction happens inline in the presence service; this
// catches citizens whose sockets are alive but silent.
type LocationSweeper struct {
	locations StaleEvictor
	period    time.Duration
	logger    *slog.Logger
}

func NewLocationSweeper(locations StaleEvictor, period time.Duration, logger *slog.Logger) *LocationSweeper {
	if period <= 0 {
		period = 5 * time.Minute
	}
	return &LocationSweeper{
		locations: locations,
		period:    period,
		logger:    logger,
	}
}

func (w *LocationSweeper) Run(ctx context.Context) {
	w.logger.Info("location sweeper STARTED", slog.Duration("period", w.period))

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("location sweeper STOPPED", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			evicted := w.locations.EvictStale(ctx)
			if evicted > 0 {
				w.logger.Debug("sweep pass done", slog.Int("evicted", evicted))
			}
		}
	}
}
