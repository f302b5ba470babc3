// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"

	"shopgraph/internal/graph"
)

// CategorySource scores products sharing a category with the seed. It is a
// weak, flat signal meant to pad sparse co-occurrence results, so every
// same-category candidate gets the same raw score.
type CategorySource struct {
	store graph.Store
	cfg   CategoryConfig
}

// NewCategorySource creates the category affinity source.
func NewCategorySource(store graph.Store, cfg CategoryConfig) *CategorySource {
	if cfg.CandidateLimit < 1 {
		cfg.CandidateLimit = 100
	}
	return &CategorySource{store: store, cfg: cfg}
}

func (s *CategorySource) Name() string { return SourceCategory }

// ScoreForProduct scores products in the seed's categories.
func (s *CategorySource) ScoreForProduct(ctx context.Context, productID string, limit int) (map[string]float64, error) {
	categories, err := s.store.CategoriesOf(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.score(ctx, categories, map[string]struct{}{productID: {}})
}

// ScoreForCustomer scores products in the categories of the customer's
// purchases.
func (s *CategorySource) ScoreForCustomer(ctx context.Context, customerID string, limit int) (map[string]float64, error) {
	purchased, err := s.store.PurchasedProducts(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(purchased) == 0 {
		return map[string]float64{}, nil
	}

	seen := make(map[string]struct{}, len(purchased))
	catSet := make(map[string]struct{})
	var categories []string
	for _, pid := range purchased {
		seen[pid] = struct{}{}
		cats, err := s.store.CategoriesOf(ctx, pid)
		if err != nil {
			if graph.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, c := range cats {
			if _, dup := catSet[c]; !dup {
				catSet[c] = struct{}{}
				categories = append(categories, c)
			}
		}
	}
	return s.score(ctx, categories, seen)
}

func (s *CategorySource) score(ctx context.Context, categories []string, exclude map[string]struct{}) (map[string]float64, error) {
	if len(categories) == 0 {
		return map[string]float64{}, nil
	}

	products, err := s.store.ProductsInCategories(ctx, categories, s.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(products))
	for _, pid := range products {
		if _, skip := exclude[pid]; skip {
			continue
		}
		scores[pid] = 1
	}
	return scores, nil
}
