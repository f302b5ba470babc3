// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"time"
)

// ScoredProduct is a single ranked recommendation.
type ScoredProduct struct {
	// ProductID identifies the recommended product.
	ProductID string `json:"product_id"`

	// Score is the combined, weighted score across all sources.
	Score float64 `json:"score"`

	// Sources breaks the score down per contributing source, using
	// normalized per-source scores before weighting.
	Sources map[string]float64 `json:"sources,omitempty"`
}

// DegradedSource records a source that failed to contribute to a response.
type DegradedSource struct {
	// Source is the source name.
	Source string `json:"source"`

	// Reason classifies the failure: "timeout", "unavailable" or "error".
	Reason string `json:"reason"`
}

// ResponseMetadata carries request tracing and provenance information.
type ResponseMetadata struct {
	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id"`

	// Kind is "customer" or "similar".
	Kind string `json:"kind"`

	// SeedID is the customer or product id the request was keyed on.
	SeedID string `json:"seed_id"`

	// SourcesUsed lists the sources that contributed scores.
	SourcesUsed []string `json:"sources_used"`

	// LatencyMS is the end-to-end request latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// CacheHit indicates the response was served from cache.
	CacheHit bool `json:"cache_hit"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`
}

// Response is the result of a recommendation request.
//
// A response with no items is a valid outcome, never an error. Degraded
// lists sources that failed; callers decide whether a partial response is
// acceptable.
type Response struct {
	Items    []ScoredProduct  `json:"items"`
	Degraded []DegradedSource `json:"degraded,omitempty"`
	Metadata ResponseMetadata `json:"metadata"`
}

// Options are per-request overrides. Zero values fall back to the engine
// configuration.
type Options struct {
	// SourceWeights overrides the configured per-source weights. Sources
	// absent from the map keep weight zero for this request.
	SourceWeights map[string]float64

	// ExcludeOwned controls whether products the customer has already
	// purchased are removed. Nil means the configured default (true).
	// Excluding owned products is a correctness requirement for customer
	// recommendations; this knob exists for offline evaluation only.
	ExcludeOwned *bool

	// Timeout bounds each source query for this request. Zero means the
	// configured source timeout.
	Timeout time.Duration
}

// Source produces candidate scores from one recommendation signal.
//
// A source that does not support a mode returns (nil, nil) and is skipped.
// Returned scores are raw and source-specific; the aggregator normalizes
// them before weighting.
type Source interface {
	// Name identifies the source in weights, metadata and logs.
	Name() string

	// ScoreForCustomer scores candidate products for a customer.
	ScoreForCustomer(ctx context.Context, customerID string, limit int) (map[string]float64, error)

	// ScoreForProduct scores candidate products relative to a seed product.
	ScoreForProduct(ctx context.Context, productID string, limit int) (map[string]float64, error)
}
