package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper runs the two periodic presence scans on fixed-interval timers:
// idle detection and custom-status expiry. Both are idempotent and safe to
// overlap with each other and with any concurrent operation, so no mutual
// exclusion is needed beyond what the tracker already provides.
type Sweeper struct {
	Presence       *PresenceTracker
	IdleInterval   time.Duration
	ExpiryInterval time.Duration
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	idle := time.NewTicker(s.IdleInterval)
	defer idle.Stop()
	expiry := time.NewTicker(s.ExpiryInterval)
	defer expiry.Stop()

	log.Info().Str("module", "app.sweeper").Dur("idle_interval", s.IdleInterval).Dur("expiry_interval", s.ExpiryInterval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.sweeper").Msg("sweeper stopped")
			return
		case <-idle.C:
			s.Presence.IdleSweep(ctx)
		case <-expiry.C:
			s.Presence.ExpireCustomStatuses(ctx)
		}
	}
}
