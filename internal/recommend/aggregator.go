// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shopgraph/internal/graph"
	"shopgraph/internal/metrics"
)

// Mode selects which scoring entry point a request uses.
type Mode string

const (
	// ModeCustomer scores products for a customer.
	ModeCustomer Mode = "customer"
	// ModeSimilar scores products relative to a seed product.
	ModeSimilar Mode = "similar"
)

// Aggregator fans a request out to every source, normalizes each source's
// scores to [0, 1], and merges them into a single weighted ranking.
//
// Source failures never abort the aggregation: a failed source is recorded
// as degraded and the merge proceeds with whatever succeeded. The one
// exception is an unknown seed id, which is a caller error and propagates.
type Aggregator struct {
	sources []Source
	timeout time.Duration
	logger  zerolog.Logger
}

// NewAggregator builds an aggregator over the given sources. timeout bounds
// each source query.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAggregator(sources []Source, timeout time.Duration, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		sources: sources,
		timeout: timeout,
		logger:  logger.With().Str("component", "aggregator").Logger(),
	}
}

// sourceResult holds the outcome of a single source query.
type sourceResult struct {
	name   string
	scores map[string]float64
	err    error
}

// aggregation is the merged outcome across all sources.
type aggregation struct {
	// combined maps product id to the weighted sum of normalized scores.
	combined map[string]float64
	// breakdown maps product id to per-source normalized scores.
	breakdown map[string]map[string]float64
	// used lists sources that contributed, in registration order.
	used []string
	// degraded lists sources that failed.
	degraded []DegradedSource
}

// Run executes all sources concurrently and merges their scores. weights is
// the resolved per-source weight map; zero-weight sources are not queried.
// candidateLimit is a hint for sources without their own candidate bounds.
func (a *Aggregator) Run(ctx context.Context, mode Mode, seedID string, weights map[string]float64, candidateLimit int, timeout time.Duration) (*aggregation, error) {
	if timeout <= 0 {
		timeout = a.timeout
	}

	active := make([]Source, 0, len(a.sources))
	for _, src := range a.sources {
		if weights[src.Name()] > 0 {
			active = append(active, src)
		}
	}

	results := a.runSources(ctx, active, mode, seedID, candidateLimit, timeout)
	return a.merge(results, weights)
}

// runSources fans out to all active sources with a per-source timeout.
func (a *Aggregator) runSources(ctx context.Context, sources []Source, mode Mode, seedID string, candidateLimit int, timeout time.Duration) []sourceResult {
	results := make([]sourceResult, len(sources))
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, s Source) {
			defer wg.Done()

			srcCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			scores, err := a.querySource(srcCtx, s, mode, seedID, candidateLimit)
			results[idx] = sourceResult{name: s.Name(), scores: scores, err: err}

			if err != nil {
				a.logger.Warn().
					Str("source", s.Name()).
					Str("mode", string(mode)).
					Dur("elapsed", time.Since(start)).
					Err(err).
					Msg("source query failed")
			}
		}(i, src)
	}

	wg.Wait()
	return results
}

func (a *Aggregator) querySource(ctx context.Context, src Source, mode Mode, seedID string, candidateLimit int) (map[string]float64, error) {
	if mode == ModeSimilar {
		return src.ScoreForProduct(ctx, seedID, candidateLimit)
	}
	return src.ScoreForCustomer(ctx, seedID, candidateLimit)
}

// merge combines per-source results into a weighted ranking. An unknown
// seed reported by any source fails the whole request; every other source
// error degrades it.
func (a *Aggregator) merge(results []sourceResult, weights map[string]float64) (*aggregation, error) {
	agg := &aggregation{
		combined:  make(map[string]float64),
		breakdown: make(map[string]map[string]float64),
	}

	for _, res := range results {
		if res.err != nil {
			if graph.IsNotFound(res.err) {
				return nil, res.err
			}
			reason := degradeReason(res.err)
			metrics.SourceDegradedTotal.WithLabelValues(res.name, reason).Inc()
			agg.degraded = append(agg.degraded, DegradedSource{Source: res.name, Reason: reason})
			continue
		}

		if len(res.scores) == 0 {
			continue
		}

		weight := weights[res.name]
		if weight <= 0 {
			continue
		}

		agg.used = append(agg.used, res.name)
		for pid, score := range normalizeScores(res.scores) {
			agg.combined[pid] += weight * score
			if agg.breakdown[pid] == nil {
				agg.breakdown[pid] = make(map[string]float64)
			}
			agg.breakdown[pid][res.name] = score
		}
	}

	return agg, nil
}

// degradeReason classifies a source failure for metadata and metrics.
func degradeReason(err error) string {
	switch {
	case graph.IsTimeout(err):
		return "timeout"
	case graph.IsUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}

// normalizeScores min-max normalizes raw scores into [0, 1] so sources with
// different scales merge fairly. A source where every candidate scores the
// same maps everything to 1.
func normalizeScores(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return scores
	}

	first := true
	var minScore, maxScore float64
	for _, s := range scores {
		if first {
			minScore, maxScore = s, s
			first = false
			continue
		}
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	out := make(map[string]float64, len(scores))
	spread := maxScore - minScore
	if spread == 0 {
		for pid := range scores {
			out[pid] = 1
		}
		return out
	}

	for pid, s := range scores {
		out[pid] = (s - minScore) / spread
	}
	return out
}

// rank converts a merged aggregation into a deterministic ranked list:
// score descending, product id ascending on ties.
func rank(agg *aggregation, exclude map[string]struct{}, limit int) []ScoredProduct {
	items := make([]ScoredProduct, 0, len(agg.combined))
	for pid, score := range agg.combined {
		if _, skip := exclude[pid]; skip {
			continue
		}
		items = append(items, ScoredProduct{
			ProductID: pid,
			Score:     score,
			Sources:   agg.breakdown[pid],
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ProductID < items[j].ProductID
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
