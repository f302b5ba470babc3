// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"shopgraph/internal/graph"
	"shopgraph/internal/recommend"
)

// Handler serves the recommendation endpoints.
type Handler struct {
	engine *recommend.Engine
	store  graph.Store
	start  time.Time
}

// NewHandler creates a handler backed by the given engine and store.
func NewHandler(engine *recommend.Engine, store graph.Store) *Handler {
	return &Handler{
		engine: engine,
		store:  store,
		start:  time.Now(),
	}
}

// Health reports liveness and the graph store's reachability.
//
// Method: GET
// Path: /health
//
// Returns 200 when the store responds to a ping, 503 otherwise. The body
// always describes both states so monitors can distinguish a dead process
// from a dead backend.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storeState := "up"
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		storeState = "down"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, &APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"ok":    status == http.StatusOK,
			"store": storeState,
		},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// RecommendCustomer handles GET /api/v1/recommendations/customer/{customerID}.
// Returns personalized recommendations built from the customer's order and
// interaction history.
func (h *Handler) RecommendCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	if customerID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing customer id", nil)
		return
	}

	limit, opts, apiErr := parseRecommendParams(r)
	if apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	resp, err := h.engine.RecommendForCustomer(r.Context(), customerID, limit, opts)
	if err != nil {
		respondRecommendError(w, "customer", err)
		return
	}
	respondRecommendation(w, resp)
}

// RecommendSimilar handles GET /api/v1/recommendations/similar/{productID}.
// Returns products related to the seed product; the seed itself is never
// included.
func (h *Handler) RecommendSimilar(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing product id", nil)
		return
	}

	limit, opts, apiErr := parseRecommendParams(r)
	if apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	resp, err := h.engine.RecommendSimilarProducts(r.Context(), productID, limit, opts)
	if err != nil {
		respondRecommendError(w, "product", err)
		return
	}
	respondRecommendation(w, resp)
}

// Status handles GET /api/v1/recommendations/status.
// Returns a snapshot of the engine's runtime state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.Config()

	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"uptime_seconds": int64(time.Since(h.start).Seconds()),
			"cache_entries":  h.engine.CacheLen(),
			"weights":        cfg.Weights.ToMap(),
			"default_limit":  cfg.Limits.DefaultLimit,
			"max_limit":      cfg.Limits.MaxLimit,
		},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// ConfigGet handles GET /api/v1/recommendations/config.
func (h *Handler) ConfigGet(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status:   "success",
		Data:     h.engine.Config(),
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// ConfigPut handles PUT /api/v1/recommendations/config.
// The body is merged over the current configuration, so callers may send
// only the sections they want to change. The merged configuration must
// validate or the update is rejected wholesale.
func (h *Handler) ConfigPut(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.Config()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed configuration body", err)
		return
	}

	if err := h.engine.UpdateConfig(cfg); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), err)
		return
	}

	respondJSON(w, http.StatusOK, &APIResponse{
		Status:   "success",
		Data:     h.engine.Config(),
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

func respondRecommendation(w http.ResponseWriter, resp *recommend.Response) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data:   resp,
		Metadata: Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: resp.Metadata.LatencyMS,
			Cached:      resp.Metadata.CacheHit,
		},
	})
}

// respondRecommendError maps engine failures to HTTP statuses. Unknown seeds
// are 404, a dead or tripped store is 503, an exhausted request deadline is
// 504 and anything else is a 500.
func respondRecommendError(w http.ResponseWriter, subject string, err error) {
	switch {
	case graph.IsNotFound(err):
		respondError(w, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("Unknown %s", subject), err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "TIMEOUT",
			"Request deadline exceeded", err)
	case graph.IsUnavailable(err):
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
			"Graph store unavailable", err)
	default:
		respondError(w, http.StatusInternalServerError, "RECOMMENDATION_ERROR",
			"Failed to generate recommendations", err)
	}
}

// parseRecommendParams extracts limit and per-request option overrides from
// the query string. Supported parameters:
//
//	limit=10                          result count, clamped by the engine
//	weights=cooccurrence:0.7,category:0.3
//	exclude_owned=false               evaluation only
//	timeout_ms=500                    per-source budget override
func parseRecommendParams(r *http.Request) (int, recommend.Options, *APIError) {
	var opts recommend.Options
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, opts, &APIError{
				Code:    "VALIDATION_ERROR",
				Message: "limit must be a positive integer",
			}
		}
		limit = parsed
	}

	if raw := q.Get("weights"); raw != "" {
		weights, err := parseWeights(raw)
		if err != nil {
			return 0, opts, &APIError{Code: "VALIDATION_ERROR", Message: err.Error()}
		}
		opts.SourceWeights = weights
	}

	if raw := q.Get("exclude_owned"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return 0, opts, &APIError{
				Code:    "VALIDATION_ERROR",
				Message: "exclude_owned must be a boolean",
			}
		}
		opts.ExcludeOwned = &parsed
	}

	if raw := q.Get("timeout_ms"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, opts, &APIError{
				Code:    "VALIDATION_ERROR",
				Message: "timeout_ms must be a positive integer",
			}
		}
		opts.Timeout = time.Duration(parsed) * time.Millisecond
	}

	return limit, opts, nil
}

// parseWeights parses "source:weight,source:weight" pairs.
func parseWeights(raw string) (map[string]float64, error) {
	weights := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("weights must be source:weight pairs, got %q", pair)
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("weight for %q must be a non-negative number", name)
		}
		weights[name] = parsed
	}
	return weights, nil
}
