// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"fmt"
	"time"

	"shopgraph/internal/graph"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Weights defines the relative contribution of each source.
	// Weights are normalized at runtime, so they don't need to sum to 1.0.
	Weights SourceWeights `json:"weights" koanf:"weights"`

	// Interactions defines per-interaction-type weights for the
	// collaborative filter.
	Interactions InteractionWeights `json:"interactions" koanf:"interactions"`

	// CoOccurrence contains parameters for the co-occurrence source.
	CoOccurrence CoOccurrenceConfig `json:"cooccurrence" koanf:"cooccurrence"`

	// Collaborative contains parameters for the collaborative filter.
	Collaborative CollaborativeConfig `json:"collaborative" koanf:"collaborative"`

	// Category contains parameters for the category affinity source.
	Category CategoryConfig `json:"category" koanf:"category"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits" koanf:"limits"`

	// Cache contains response caching parameters.
	Cache CacheConfig `json:"cache" koanf:"cache"`

	// Fallback controls behavior when no source produces candidates.
	Fallback FallbackConfig `json:"fallback" koanf:"fallback"`
}

// SourceWeights defines the relative contribution of each source.
type SourceWeights struct {
	// CoOccurrence is the weight for co-purchase scoring.
	CoOccurrence float64 `json:"cooccurrence" koanf:"cooccurrence"`

	// Collaborative is the weight for interaction-based collaborative
	// filtering.
	Collaborative float64 `json:"collaborative" koanf:"collaborative"`

	// Category is the weight for category affinity.
	Category float64 `json:"category" koanf:"category"`

	// Popularity is the weight for global popularity. Zero by default;
	// popularity still serves as the empty-result fallback.
	Popularity float64 `json:"popularity" koanf:"popularity"`
}

// Normalize returns a copy with weights normalized to sum to 1.0.
func (w SourceWeights) Normalize() SourceWeights {
	sum := w.CoOccurrence + w.Collaborative + w.Category + w.Popularity

	if sum == 0 {
		const equalWeight = 1.0 / 4.0
		return SourceWeights{
			CoOccurrence:  equalWeight,
			Collaborative: equalWeight,
			Category:      equalWeight,
			Popularity:    equalWeight,
		}
	}

	return SourceWeights{
		CoOccurrence:  w.CoOccurrence / sum,
		Collaborative: w.Collaborative / sum,
		Category:      w.Category / sum,
		Popularity:    w.Popularity / sum,
	}
}

// ToMap returns the weights as a string-keyed map.
func (w SourceWeights) ToMap() map[string]float64 {
	return map[string]float64{
		SourceCoOccurrence:  w.CoOccurrence,
		SourceCollaborative: w.Collaborative,
		SourceCategory:      w.Category,
		SourcePopularity:    w.Popularity,
	}
}

// Source names used in weights, metadata and logs.
const (
	SourceCoOccurrence  = "cooccurrence"
	SourceCollaborative = "collaborative"
	SourceCategory      = "category"
	SourcePopularity    = "popularity"
)

// InteractionWeights defines how strongly each interaction type signals
// purchase intent.
type InteractionWeights struct {
	// View is the weight of a product page view. Default: 1.
	View float64 `json:"view" koanf:"view"`

	// Click is the weight of a product click-through. Default: 2.
	Click float64 `json:"click" koanf:"click"`

	// AddToCart is the weight of an add-to-cart. Default: 3.
	AddToCart float64 `json:"add_to_cart" koanf:"add_to_cart"`
}

// Weight returns the weight for an interaction. Interactions with a zero
// timestamp get the minimum configured weight; unknown types score zero.
func (w InteractionWeights) Weight(in graph.Interaction) float64 {
	if in.Timestamp.IsZero() {
		return w.minimum()
	}
	switch in.Type {
	case graph.InteractionView:
		return w.View
	case graph.InteractionClick:
		return w.Click
	case graph.InteractionAddToCart:
		return w.AddToCart
	default:
		return 0
	}
}

func (w InteractionWeights) minimum() float64 {
	m := w.View
	if w.Click < m {
		m = w.Click
	}
	if w.AddToCart < m {
		m = w.AddToCart
	}
	return m
}

// CoOccurrenceConfig contains parameters for the co-occurrence source.
type CoOccurrenceConfig struct {
	// CandidateLimit bounds how many co-ordered products are fetched per
	// seed. Default: 200.
	CandidateLimit int `json:"candidate_limit" koanf:"candidate_limit"`

	// DampPopularity divides raw co-order counts by
	// log(1 + totalOrdersContaining(candidate)) so best-sellers do not
	// dominate every list. Default: true.
	DampPopularity bool `json:"damp_popularity" koanf:"damp_popularity"`
}

// CollaborativeConfig contains parameters for the collaborative filter.
type CollaborativeConfig struct {
	// NeighborLimit bounds the candidate pool of similar customers.
	// Default: 50.
	NeighborLimit int `json:"neighbor_limit" koanf:"neighbor_limit"`

	// Similarity selects the vector similarity measure: "cosine" or
	// "jaccard". Default: "cosine".
	Similarity string `json:"similarity" koanf:"similarity"`
}

// CategoryConfig contains parameters for the category affinity source.
type CategoryConfig struct {
	// CandidateLimit bounds how many same-category products are fetched.
	// Default: 100.
	CandidateLimit int `json:"candidate_limit" koanf:"candidate_limit"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultLimit is the number of recommendations returned when the
	// caller does not specify one. Default: 10.
	DefaultLimit int `json:"default_limit" koanf:"default_limit"`

	// MaxLimit caps the caller-requested size. Default: 100.
	MaxLimit int `json:"max_limit" koanf:"max_limit"`

	// SourceTimeout bounds each source query. A source exceeding it is
	// recorded as degraded, never fails the request. Default: 2s.
	SourceTimeout time.Duration `json:"source_timeout" koanf:"source_timeout"`
}

// CacheConfig contains response caching parameters.
type CacheConfig struct {
	// Enabled controls whether response caching is active. Default: true.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// TTL is the cache entry time-to-live. Default: 5m.
	TTL time.Duration `json:"ttl" koanf:"ttl"`

	// MaxEntries is the maximum number of cached responses. Default: 10000.
	MaxEntries int `json:"max_entries" koanf:"max_entries"`
}

// FallbackConfig controls behavior when no personalized source produces
// candidates.
type FallbackConfig struct {
	// PopularityOnEmpty serves globally popular products when the merged
	// result is empty, so cold-start customers still get a response.
	// Default: true.
	PopularityOnEmpty bool `json:"popularity_on_empty" koanf:"popularity_on_empty"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Weights: SourceWeights{
			CoOccurrence:  0.6,
			Collaborative: 0.4,
			Category:      0.0,
			Popularity:    0.0,
		},
		Interactions: InteractionWeights{
			View:      1,
			Click:     2,
			AddToCart: 3,
		},
		CoOccurrence: CoOccurrenceConfig{
			CandidateLimit: 200,
			DampPopularity: true,
		},
		Collaborative: CollaborativeConfig{
			NeighborLimit: 50,
			Similarity:    "cosine",
		},
		Category: CategoryConfig{
			CandidateLimit: 100,
		},
		Limits: LimitsConfig{
			DefaultLimit:  10,
			MaxLimit:      100,
			SourceTimeout: 2 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
		},
		Fallback: FallbackConfig{
			PopularityOnEmpty: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Weights.CoOccurrence < 0 || c.Weights.Collaborative < 0 ||
		c.Weights.Category < 0 || c.Weights.Popularity < 0 {
		return fmt.Errorf("weights must be non-negative")
	}

	if c.Interactions.View < 0 || c.Interactions.Click < 0 || c.Interactions.AddToCart < 0 {
		return fmt.Errorf("interaction weights must be non-negative")
	}

	if c.CoOccurrence.CandidateLimit < 1 {
		return fmt.Errorf("cooccurrence.candidate_limit must be positive, got %d", c.CoOccurrence.CandidateLimit)
	}

	if c.Collaborative.NeighborLimit < 1 {
		return fmt.Errorf("collaborative.neighbor_limit must be positive, got %d", c.Collaborative.NeighborLimit)
	}
	switch c.Collaborative.Similarity {
	case "cosine", "jaccard":
	default:
		return fmt.Errorf("collaborative.similarity must be cosine or jaccard, got %q", c.Collaborative.Similarity)
	}

	if c.Category.CandidateLimit < 1 {
		return fmt.Errorf("category.candidate_limit must be positive, got %d", c.Category.CandidateLimit)
	}

	if c.Limits.DefaultLimit < 1 {
		return fmt.Errorf("limits.default_limit must be positive, got %d", c.Limits.DefaultLimit)
	}
	if c.Limits.MaxLimit < c.Limits.DefaultLimit {
		return fmt.Errorf("limits.max_limit must be >= limits.default_limit, got %d < %d",
			c.Limits.MaxLimit, c.Limits.DefaultLimit)
	}
	if c.Limits.SourceTimeout <= 0 {
		return fmt.Errorf("limits.source_timeout must be positive, got %v", c.Limits.SourceTimeout)
	}

	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
		}
		if c.Cache.MaxEntries < 1 {
			return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
		}
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	// All nested structs contain only value types.
	cp := *c
	return &cp
}
