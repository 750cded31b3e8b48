package service

import (
	"context"
	"time"

	"github.com/lockbridge/gateway/pkg/slogx"
)

// DefaultSweepInterval is how often expired sessions are swept when the
// config doesn't say otherwise.
const DefaultSweepInterval = 5 * time.Minute

// Housekeeper periodically deletes expired sessions so the store doesn't
// grow without bound. One instance runs per process.
type Housekeeper struct {
	tokens   *TokenService
	interval time.Duration
}

// NewHousekeeper builds a Housekeeper sweeping at the given interval.
func NewHousekeeper(tokens *TokenService, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Housekeeper{tokens: tokens, interval: interval}
}

// Run sweeps until the context is cancelled. Sweep failures are logged
// and retried on the next tick rather than stopping the loop.
func (h *Housekeeper) Run(ctx context.Context) {
	log := slogx.FromContext(ctx)
	log.Info("housekeeping started", "interval", h.interval)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("housekeeping stopped")
			return
		case <-ticker.C:
			removed, err := h.tokens.SweepExpired(ctx)
			if err != nil {
				log.Error("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Info("expired sessions swept", "removed", removed)
			}
		}
	}
}
