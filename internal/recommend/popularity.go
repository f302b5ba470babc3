// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"

	"shopgraph/internal/graph"
)

// PopularitySource scores products by total order count. It carries zero
// weight in the default ensemble and exists for the cold-start fallback:
// customers and products with no history still get a ranked response.
type PopularitySource struct {
	store graph.Store
}

// NewPopularitySource creates the global popularity source.
func NewPopularitySource(store graph.Store) *PopularitySource {
	return &PopularitySource{store: store}
}

func (s *PopularitySource) Name() string { return SourcePopularity }

func (s *PopularitySource) ScoreForCustomer(ctx context.Context, customerID string, limit int) (map[string]float64, error) {
	return s.top(ctx, limit)
}

func (s *PopularitySource) ScoreForProduct(ctx context.Context, productID string, limit int) (map[string]float64, error) {
	return s.top(ctx, limit)
}

func (s *PopularitySource) top(ctx context.Context, limit int) (map[string]float64, error) {
	top, err := s.store.TopProducts(ctx, limit)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(top))
	for _, co := range top {
		scores[co.ProductID] = float64(co.Count)
	}
	return scores, nil
}
