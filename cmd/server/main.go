// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the Shopgraph recommendation server.
//
// Shopgraph serves product recommendations from a property graph of
// customers, orders, products and interaction events. Scores from several
// sources (order co-occurrence, interaction-based collaborative filtering,
// category affinity, global popularity) are merged per request with
// configurable weights.
//
// # Startup order
//
//  1. Configuration: defaults, then config file, then environment (koanf v2)
//  2. Logging: zerolog, level and format from config
//  3. Graph store: Neo4j driver, or the in-memory store for development;
//     optionally wrapped in a circuit breaker
//  4. Recommendation engine with its response cache
//  5. HTTP router (chi) and the suture supervision tree
//
// # Configuration
//
// Highest priority wins:
//   - environment variables (NEO4J_URI, HTTP_PORT, LOG_LEVEL, ...)
//   - config file (config.yaml, or CONFIG_PATH)
//   - built-in defaults
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server stops
// accepting connections and drains in-flight requests before the store is
// closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"shopgraph/internal/api"
	"shopgraph/internal/config"
	"shopgraph/internal/graph"
	"shopgraph/internal/logging"
	"shopgraph/internal/recommend"
	"shopgraph/internal/supervisor"
	"shopgraph/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logger.Info().
		Str("driver", cfg.Graph.Driver).
		Int("port", cfg.Server.Port).
		Msg("starting shopgraph")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open graph store: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("closing graph store")
		}
	}()

	engine, err := recommend.NewEngine(store, &cfg.Recommend, logger)
	if err != nil {
		return fmt.Errorf("build recommendation engine: %w", err)
	}

	router := api.NewRouter(engine, store, cfg.API)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.Timeout,
	})
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.Timeout))
	tree.AddMaintenanceService(services.NewProberService(
		store, cfg.Prober.Interval, cfg.Prober.Timeout, logger))
	tree.AddMaintenanceService(services.NewJanitorService(
		engine, cfg.Janitor.Interval, logger))

	logger.Info().Str("addr", server.Addr).Msg("listening")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

// buildStore opens the configured graph backend. The memory driver serves
// development and tests; production points at Neo4j.
func buildStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (graph.Store, error) {
	var store graph.Store

	switch cfg.Graph.Driver {
	case "neo4j":
		neoStore, err := graph.NewNeo4jStore(ctx, graph.Neo4jConfig{
			URI:      cfg.Graph.URI,
			Username: cfg.Graph.Username,
			Password: cfg.Graph.Password,
			Database: cfg.Graph.Database,
		}, logger)
		if err != nil {
			return nil, err
		}
		store = neoStore
	case "memory":
		store = graph.NewMemStore(graph.Snapshot{})
	default:
		return nil, fmt.Errorf("unknown graph driver %q", cfg.Graph.Driver)
	}

	if cfg.Graph.BreakerEnabled {
		store = graph.NewBreakerStore(store, logger)
	}
	return store, nil
}
