// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"math"

	"shopgraph/internal/graph"
)

// CoOccurrenceSource scores products by how often they are ordered together
// with the seed. This is the "frequently bought together" signal.
//
// Raw score is the co-order count, optionally damped by
// log(1 + totalOrdersContaining(candidate)) so globally popular products do
// not dominate every list.
type CoOccurrenceSource struct {
	store graph.Store
	cfg   CoOccurrenceConfig
}

// NewCoOccurrenceSource creates the co-purchase source.
func NewCoOccurrenceSource(store graph.Store, cfg CoOccurrenceConfig) *CoOccurrenceSource {
	if cfg.CandidateLimit < 1 {
		cfg.CandidateLimit = 200
	}
	return &CoOccurrenceSource{store: store, cfg: cfg}
}

func (s *CoOccurrenceSource) Name() string { return SourceCoOccurrence }

// ScoreForProduct scores products co-ordered with the seed. A seed with no
// orders yields an empty map, not an error; an unknown seed propagates
// ErrNotFound.
func (s *CoOccurrenceSource) ScoreForProduct(ctx context.Context, productID string, limit int) (map[string]float64, error) {
	coOrders, err := s.store.CoOrderedProducts(ctx, productID, s.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}
	return s.score(ctx, coOrders)
}

// ScoreForCustomer seeds co-occurrence from the customer's purchase history:
// every purchased product contributes its co-ordered products.
func (s *CoOccurrenceSource) ScoreForCustomer(ctx context.Context, customerID string, limit int) (map[string]float64, error) {
	purchased, err := s.store.PurchasedProducts(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(purchased) == 0 {
		return map[string]float64{}, nil
	}

	merged := make(map[string]int)
	for _, pid := range purchased {
		coOrders, err := s.store.CoOrderedProducts(ctx, pid, s.cfg.CandidateLimit)
		if err != nil {
			// A purchased product is known to exist; not-found here means
			// the graph changed under us, so skip rather than fail.
			if graph.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, co := range coOrders {
			merged[co.ProductID] += co.Count
		}
	}

	coOrders := make([]graph.CoOrder, 0, len(merged))
	for pid, n := range merged {
		coOrders = append(coOrders, graph.CoOrder{ProductID: pid, Count: n})
	}
	return s.score(ctx, coOrders)
}

func (s *CoOccurrenceSource) score(ctx context.Context, coOrders []graph.CoOrder) (map[string]float64, error) {
	if len(coOrders) == 0 {
		return map[string]float64{}, nil
	}

	scores := make(map[string]float64, len(coOrders))

	if !s.cfg.DampPopularity {
		for _, co := range coOrders {
			scores[co.ProductID] = float64(co.Count)
		}
		return scores, nil
	}

	ids := make([]string, 0, len(coOrders))
	for _, co := range coOrders {
		ids = append(ids, co.ProductID)
	}

	totals, err := s.store.OrderCountsByProduct(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, co := range coOrders {
		// A co-ordered candidate appears in at least one order, so the
		// divisor is at least log(2).
		damp := math.Log1p(float64(totals[co.ProductID]))
		if damp <= 0 {
			damp = math.Ln2
		}
		scores[co.ProductID] = float64(co.Count) / damp
	}
	return scores, nil
}
