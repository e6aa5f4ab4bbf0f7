package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mercata/storefront-api/internal/service"
)

// Sweeper periodically flags idle checkouts as abandoned and purges guest
// carts past the retention window.
type Sweeper struct {
	abandoned *service.AbandonedService
	interval  time.Duration
	log       *slog.Logger
	done      chan struct{}
}

func NewSweeper(abandoned *service.AbandonedService, interval time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{
		abandoned: abandoned,
		interval:  interval,
		log:       log,
		done:      make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				result, err := s.abandoned.Sweep(ctx)
				if err != nil {
					s.log.Error("abandonment sweep failed", "error", err)
					continue
				}
				if result.Abandoned > 0 || result.PurgedGuestCarts > 0 {
					s.log.Info("abandonment sweep",
						"abandoned", result.Abandoned, "purged_guest_carts", result.PurgedGuestCarts)
				}
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	s.log.Info("abandonment sweeper started", "interval", s.interval)
}

func (s *Sweeper) Stop() { close(s.done) }
