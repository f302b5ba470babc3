// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shopgraph/internal/graph"
	"shopgraph/internal/metrics"
)

// Engine coordinates the recommendation sources and produces ranked
// responses. It is safe for concurrent use.
type Engine struct {
	store      graph.Store
	aggregator *Aggregator
	popularity *PopularitySource
	cache      *responseCache
	logger     zerolog.Logger

	cfgMu  sync.RWMutex
	config *Config
}

// NewEngine builds an engine over the graph store with the standard source
// ensemble: co-occurrence, collaborative filtering, category affinity and
// popularity.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(store graph.Store, cfg *Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logger.With().Str("component", "recommend").Logger()

	popularity := NewPopularitySource(store)
	sources := []Source{
		NewCoOccurrenceSource(store, cfg.CoOccurrence),
		NewCollaborativeSource(store, cfg.Interactions, cfg.Collaborative),
		NewCategorySource(store, cfg.Category),
		popularity,
	}

	var cache *responseCache
	if cfg.Cache.Enabled {
		cache = newResponseCache(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}

	return &Engine{
		store:      store,
		aggregator: NewAggregator(sources, cfg.Limits.SourceTimeout, log),
		popularity: popularity,
		cache:      cache,
		logger:     log,
		config:     cfg,
	}, nil
}

// RecommendForCustomer returns ranked product recommendations for a
// customer, merging co-purchase, collaborative and category signals.
// Products the customer already purchased are excluded unless the caller
// opts out. An unknown customer id returns ErrNotFound; a customer with no
// history returns an empty (or popularity-fallback) list.
func (e *Engine) RecommendForCustomer(ctx context.Context, customerID string, limit int, opts Options) (*Response, error) {
	return e.recommend(ctx, ModeCustomer, customerID, limit, opts)
}

// RecommendSimilarProducts returns products related to a seed product,
// ranked by co-purchase strength and category affinity. The seed itself is
// always excluded. An unknown product id returns ErrNotFound; a product
// with no orders returns an empty list.
func (e *Engine) RecommendSimilarProducts(ctx context.Context, productID string, limit int, opts Options) (*Response, error) {
	return e.recommend(ctx, ModeSimilar, productID, limit, opts)
}

func (e *Engine) recommend(ctx context.Context, mode Mode, seedID string, limit int, opts Options) (*Response, error) {
	start := time.Now()
	cfg := e.Config()
	limit = clampLimit(limit, cfg.Limits)

	requestID := uuid.NewString()
	logger := e.logger.With().
		Str("request_id", requestID).
		Str("mode", string(mode)).
		Str("seed_id", seedID).
		Logger()

	weights := resolveWeights(cfg.Weights, opts.SourceWeights)
	excludeOwned := true
	if opts.ExcludeOwned != nil {
		excludeOwned = *opts.ExcludeOwned
	}

	cacheKey := e.cacheKey(mode, seedID, limit, weights, excludeOwned)
	if resp := e.tryCache(cacheKey, start, logger); resp != nil {
		// The cached copy carries the id of the request that populated
		// it; every response gets its own id for tracing.
		resp.Metadata.RequestID = requestID
		metrics.RecommendRequestsTotal.WithLabelValues(string(mode), "ok").Inc()
		return resp, nil
	}

	exclude, err := e.buildExcludeSet(ctx, mode, seedID, excludeOwned, weights)
	if err != nil {
		if graph.IsNotFound(err) {
			metrics.RecommendRequestsTotal.WithLabelValues(string(mode), "error").Inc()
			return nil, err
		}
		// Without the owned-set the exclusion invariant cannot be honored,
		// so no items are served; the failure is reported as degradation
		// rather than a hard error.
		reason := degradeReason(err)
		metrics.SourceDegradedTotal.WithLabelValues("owned_products", reason).Inc()
		metrics.RecommendRequestsTotal.WithLabelValues(string(mode), "degraded").Inc()
		logger.Warn().Err(err).Msg("owned-set lookup failed, serving empty response")
		return &Response{
			Items:    []ScoredProduct{},
			Degraded: []DegradedSource{{Source: "owned_products", Reason: reason}},
			Metadata: ResponseMetadata{
				RequestID: requestID,
				Kind:      string(mode),
				SeedID:    seedID,
				LatencyMS: time.Since(start).Milliseconds(),
				Timestamp: time.Now(),
			},
		}, nil
	}

	candidateLimit := candidateBudget(limit, len(exclude))
	agg, err := e.aggregator.Run(ctx, mode, seedID, weights, candidateLimit, opts.Timeout)
	if err != nil {
		metrics.RecommendRequestsTotal.WithLabelValues(string(mode), "error").Inc()
		return nil, err
	}

	items := rank(agg, exclude, limit)

	if len(items) == 0 && cfg.Fallback.PopularityOnEmpty {
		items = e.popularityFallback(ctx, candidateLimit, exclude, limit, agg, logger)
	}

	resp := &Response{
		Items:    items,
		Degraded: agg.degraded,
		Metadata: ResponseMetadata{
			RequestID:   requestID,
			Kind:        string(mode),
			SeedID:      seedID,
			SourcesUsed: agg.used,
			LatencyMS:   time.Since(start).Milliseconds(),
			Timestamp:   time.Now(),
		},
	}

	if e.cache != nil {
		e.cache.Add(cacheKey, copyResponse(resp))
	}

	outcome := "ok"
	if len(agg.degraded) > 0 {
		outcome = "degraded"
	}
	metrics.RecommendRequestsTotal.WithLabelValues(string(mode), outcome).Inc()
	metrics.RecommendDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	logger.Debug().
		Int("returned", len(items)).
		Int("degraded_sources", len(agg.degraded)).
		Int64("latency_ms", resp.Metadata.LatencyMS).
		Msg("recommendation complete")

	return resp, nil
}

// popularityFallback serves globally popular products when every
// personalized source came up empty. Fallback failures degrade silently;
// the empty list is still a valid response.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) popularityFallback(ctx context.Context, candidateLimit int, exclude map[string]struct{}, limit int, agg *aggregation, logger zerolog.Logger) []ScoredProduct {
	scores, err := e.popularity.top(ctx, candidateLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("popularity fallback failed")
		agg.degraded = append(agg.degraded, DegradedSource{Source: SourcePopularity, Reason: degradeReason(err)})
		return []ScoredProduct{}
	}
	if len(scores) == 0 {
		return []ScoredProduct{}
	}

	agg.used = append(agg.used, SourcePopularity)
	normalized := normalizeScores(scores)

	items := make([]ScoredProduct, 0, len(normalized))
	for pid, score := range normalized {
		if _, skip := exclude[pid]; skip {
			continue
		}
		items = append(items, ScoredProduct{
			ProductID: pid,
			Score:     score,
			Sources:   map[string]float64{SourcePopularity: score},
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ProductID < items[j].ProductID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// buildExcludeSet assembles the product ids removed from the final ranking.
// Customer mode excludes purchases; similar mode always excludes the seed.
//
// The purchase lookup doubles as the seed existence check for customer
// mode: it runs even when exclusion is disabled, so an unknown customer is
// ErrNotFound regardless of which sources a weight override leaves active.
// Similar mode normally gets its seed check from the co-occurrence source;
// when a weight override disables that source, the seed is probed here.
func (e *Engine) buildExcludeSet(ctx context.Context, mode Mode, seedID string, excludeOwned bool, weights map[string]float64) (map[string]struct{}, error) {
	exclude := make(map[string]struct{})

	if mode == ModeSimilar {
		exclude[seedID] = struct{}{}
		if weights[SourceCoOccurrence] <= 0 {
			if _, err := e.store.CoOrderedProducts(ctx, seedID, 1); graph.IsNotFound(err) {
				return nil, err
			}
			// Other probe errors fall through; the active sources
			// will surface or degrade on them.
		}
		return exclude, nil
	}

	purchased, err := e.store.PurchasedProducts(ctx, seedID)
	if err != nil {
		return nil, fmt.Errorf("load purchase history: %w", err)
	}
	if excludeOwned {
		for _, pid := range purchased {
			exclude[pid] = struct{}{}
		}
	}
	return exclude, nil
}

func (e *Engine) tryCache(key string, start time.Time, logger zerolog.Logger) *Response {
	if e.cache == nil {
		return nil
	}
	resp := e.cache.Get(key)
	if resp == nil {
		return nil
	}

	resp.Metadata.CacheHit = true
	resp.Metadata.LatencyMS = time.Since(start).Milliseconds()
	logger.Debug().Msg("cache hit")
	return resp
}

func (e *Engine) cacheKey(mode Mode, seedID string, limit int, weights map[string]float64, excludeOwned bool) string {
	names := make([]string, 0, len(weights))
	for name, w := range weights {
		if w > 0 {
			names = append(names, fmt.Sprintf("%s=%.4f", name, w))
		}
	}
	sort.Strings(names)
	return fmt.Sprintf("%s:%s:%d:%t:%s", mode, seedID, limit, excludeOwned, strings.Join(names, ","))
}

// SweepCache drops expired cache entries. The janitor service calls this
// periodically.
func (e *Engine) SweepCache() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Sweep()
}

// PurgeCache drops every cached response. Config updates call this so stale
// weights never serve.
func (e *Engine) PurgeCache() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

// CacheLen returns the current cache entry count.
func (e *Engine) CacheLen() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() *Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.config.Clone()
}

// UpdateConfig replaces the engine configuration and purges the cache.
// Source-level parameters (candidate limits, similarity measure) are fixed
// at construction; weights, limits and fallback behavior take effect
// immediately.
func (e *Engine) UpdateConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	e.cfgMu.Lock()
	e.config = cfg.Clone()
	e.cfgMu.Unlock()

	e.PurgeCache()
	e.logger.Info().Msg("configuration updated")
	return nil
}

// resolveWeights normalizes configured weights and applies per-request
// overrides. An override map replaces the configured weights wholesale:
// sources absent from it get zero weight for the request.
func resolveWeights(configured SourceWeights, override map[string]float64) map[string]float64 {
	if len(override) == 0 {
		return configured.Normalize().ToMap()
	}

	var sum float64
	for _, w := range override {
		if w > 0 {
			sum += w
		}
	}
	if sum == 0 {
		return configured.Normalize().ToMap()
	}

	resolved := make(map[string]float64, len(override))
	for name, w := range override {
		if w > 0 {
			resolved[name] = w / sum
		}
	}
	return resolved
}

func clampLimit(limit int, limits LimitsConfig) int {
	if limit <= 0 {
		return limits.DefaultLimit
	}
	if limit > limits.MaxLimit {
		return limits.MaxLimit
	}
	return limit
}

// candidateBudget pads the fetch size so exclusions don't starve the final
// list.
func candidateBudget(limit, excluded int) int {
	budget := limit*3 + excluded
	if budget < 50 {
		budget = 50
	}
	return budget
}
