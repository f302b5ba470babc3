// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"math"

	"shopgraph/internal/graph"
)

// CollaborativeSource scores products liked by customers similar to the
// target. It builds weighted interaction vectors (add-to-cart > click >
// view), finds a bounded pool of neighbors with overlapping products, and
// accumulates neighbor product weights scaled by vector similarity.
//
// The candidate pool is bounded by NeighborLimit; this source never
// compares the full customer population.
type CollaborativeSource struct {
	store   graph.Store
	weights InteractionWeights
	cfg     CollaborativeConfig
}

// NewCollaborativeSource creates the interaction-based collaborative filter.
func NewCollaborativeSource(store graph.Store, weights InteractionWeights, cfg CollaborativeConfig) *CollaborativeSource {
	if cfg.NeighborLimit < 1 {
		cfg.NeighborLimit = 50
	}
	if cfg.Similarity == "" {
		cfg.Similarity = "cosine"
	}
	return &CollaborativeSource{store: store, weights: weights, cfg: cfg}
}

func (s *CollaborativeSource) Name() string { return SourceCollaborative }

// ScoreForCustomer scores products the customer's neighbors interacted with
// but the customer has not. A customer with no interactions yields an empty
// map; an unknown customer propagates ErrNotFound.
func (s *CollaborativeSource) ScoreForCustomer(ctx context.Context, customerID string, limit int) (map[string]float64, error) {
	interactions, err := s.store.CustomerInteractions(ctx, customerID)
	if err != nil {
		return nil, err
	}

	target := s.vector(interactions)
	if len(target) == 0 {
		return map[string]float64{}, nil
	}

	neighbors, err := s.store.SimilarCustomers(ctx, customerID, s.cfg.NeighborLimit)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return map[string]float64{}, nil
	}

	neighborInteractions, err := s.store.InteractionsForCustomers(ctx, neighbors)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	for _, nid := range neighbors {
		vec := s.vector(neighborInteractions[nid])
		if len(vec) == 0 {
			continue
		}

		sim := s.similarity(target, vec)
		if sim == 0 {
			continue
		}

		for pid, weight := range vec {
			if _, seen := target[pid]; seen {
				continue
			}
			scores[pid] += sim * weight
		}
	}
	return scores, nil
}

// ScoreForProduct is not supported; similar-product requests are served by
// the co-occurrence and category sources.
func (s *CollaborativeSource) ScoreForProduct(context.Context, string, int) (map[string]float64, error) {
	return nil, nil
}

// vector builds the weighted interaction vector: product id to accumulated
// interaction weight.
func (s *CollaborativeSource) vector(interactions []graph.Interaction) map[string]float64 {
	vec := make(map[string]float64, len(interactions))
	for _, in := range interactions {
		if w := s.weights.Weight(in); w > 0 {
			vec[in.ProductID] += w
		}
	}
	return vec
}

// similarity is symmetric, bounded in [0, 1] and zero when the vectors share
// no products.
func (s *CollaborativeSource) similarity(a, b map[string]float64) float64 {
	if s.cfg.Similarity == "jaccard" {
		return jaccard(a, b)
	}
	return cosine(a, b)
}

func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for _, w := range a {
		normA += w * w
	}
	for _, w := range b {
		normB += w * w
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	for pid, wa := range a {
		if wb, ok := b[pid]; ok {
			dot += wa * wb
		}
	}
	sim := dot / math.Sqrt(normA*normB)
	// Rounding can push identical vectors a ulp above 1.
	if sim > 1 {
		sim = 1
	}
	return sim
}

func jaccard(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var shared int
	for pid := range a {
		if _, ok := b[pid]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
