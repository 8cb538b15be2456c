package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is what the sweeper drives; *service.Screens satisfies it.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// ScreenSweeper closes order screens nobody has touched for ttl.
type ScreenSweeper struct {
	screens  Sweeper
	ttl      time.Duration
	interval time.Duration
}

func NewScreenSweeper(screens Sweeper, ttl time.Duration) *ScreenSweeper {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	return &ScreenSweeper{
		screens:  screens,
		ttl:      ttl,
		interval: interval,
	}
}

func (w *ScreenSweeper) Start(ctx context.Context) {
	slog.Info("starting screen sweeper", "ttl", w.ttl, "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("screen sweeper stopped")
			return
		case <-ticker.C:
			if n := w.screens.Sweep(w.ttl); n > 0 {
				slog.Info("idle screens closed", "count", n)
			}
		}
	}
}
