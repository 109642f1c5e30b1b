package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type expirer interface {
	ExpireStaleOffers(ctx context.Context) (int, error)
}

// Sweeper periodically expires stale offers until its context is cancelled.
type Sweeper struct {
	admin    expirer
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper creates a sweeper. A non-positive interval disables it.
func NewSweeper(admin AdminService, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		admin:    admin,
		interval: interval,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info().Msg("periodic expiry disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.admin.ExpireStaleOffers(ctx); err != nil {
				s.logger.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}
