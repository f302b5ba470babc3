// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"shopgraph/internal/graph"
	"shopgraph/internal/metrics"
)

// ProberService periodically pings the graph store and publishes the result
// on the graph_store_up gauge. When the store is wrapped in a circuit
// breaker the ping bypasses it, so a successful probe reflects actual
// backend recovery rather than a half-open trial.
type ProberService struct {
	store    graph.Store
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewProberService creates a prober that pings store every interval, with
// each ping bounded by timeout.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewProberService(store graph.Store, interval, timeout time.Duration, logger zerolog.Logger) *ProberService {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 || timeout >= interval {
		timeout = interval / 2
	}
	return &ProberService{
		store:    store,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("service", "prober").Logger(),
	}
}

// Serve implements suture.Service. It probes immediately on start, then on
// every tick, until the context is canceled.
func (s *ProberService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("timeout", s.timeout).
		Msg("store prober starting")

	s.probe(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *ProberService) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Ping(pingCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.StoreUp.Set(0)
		s.logger.Warn().Err(err).Msg("store ping failed")
		return
	}
	metrics.StoreUp.Set(1)
}

// String identifies the service in supervisor logs.
func (s *ProberService) String() string {
	return "store-prober"
}
