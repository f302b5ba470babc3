// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopgraph/internal/config"
	"shopgraph/internal/graph"
	"shopgraph/internal/recommend"
)

// Router wires handlers and middleware into the HTTP route tree.
type Router struct {
	handler *Handler
	cfg     config.APIConfig
}

// NewRouter creates a router serving the given engine and store.
func NewRouter(engine *recommend.Engine, store graph.Store, cfg config.APIConfig) *Router {
	return &Router{
		handler: NewHandler(engine, store),
		cfg:     cfg,
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(AccessLog())

	// Operational endpoints stay outside the rate limiter so monitoring
	// keeps working under load.
	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/recommendations", func(r chi.Router) {
		r.Use(RateLimit(router.cfg.RateLimitRPS, router.cfg.RateLimitBurst))
		r.Use(Timeout(router.cfg.RequestTimeout))
		r.Use(PrometheusMetrics())

		r.Get("/customer/{customerID}", router.handler.RecommendCustomer)
		r.Get("/similar/{productID}", router.handler.RecommendSimilar)
		r.Get("/status", router.handler.Status)
		r.Get("/config", router.handler.ConfigGet)
		r.Put("/config", router.handler.ConfigPut)
	})

	return r
}
