// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CacheSweeper is implemented by the recommendation engine.
type CacheSweeper interface {
	// SweepCache removes expired entries and returns how many were removed.
	SweepCache() int
}

// JanitorService periodically sweeps expired entries out of the response
// cache. Expired entries are also dropped lazily on read; the sweep keeps
// memory bounded when keys stop being requested.
type JanitorService struct {
	sweeper  CacheSweeper
	interval time.Duration
	logger   zerolog.Logger
}

// NewJanitorService creates a janitor sweeping every interval.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewJanitorService(sweeper CacheSweeper, interval time.Duration, logger zerolog.Logger) *JanitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &JanitorService{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With().Str("service", "janitor").Logger(),
	}
}

// Serve implements suture.Service.
func (s *JanitorService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("cache janitor starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.sweeper.SweepCache(); removed > 0 {
				s.logger.Debug().Int("removed", removed).Msg("swept expired cache entries")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *JanitorService) String() string {
	return "cache-janitor"
}
