// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package recommend implements the product recommendation engine over a
// property graph of customers, orders, products and categories.
//
// # Architecture
//
// The engine fans each request out to independent scoring sources and
// merges their results into a single weighted ranking:
//
//   - Co-occurrence: products frequently ordered together, damped by
//     log-popularity so best-sellers don't dominate every list
//   - Collaborative: products interacted with by similar customers,
//     weighted by interaction intent (add-to-cart > click > view)
//   - Category: flat affinity for products sharing a category
//   - Popularity: global order counts, used as the cold-start fallback
//
// # Degradation
//
// A failing source never fails a request. Each source runs under its own
// timeout; failures are recorded in Response.Degraded and the merge
// proceeds with whatever succeeded. The only hard failure is an unknown
// seed id, which returns graph.ErrNotFound.
//
// # Determinism
//
// Rankings are fully deterministic: per-source scores are min-max
// normalized, merged by configured weights, and ties break by product id
// ascending.
//
// # Usage
//
//	cfg := recommend.DefaultConfig()
//	engine, err := recommend.NewEngine(store, cfg, logger)
//
//	resp, err := engine.RecommendForCustomer(ctx, customerID, 10, recommend.Options{})
//	resp, err := engine.RecommendSimilarProducts(ctx, productID, 10, recommend.Options{})
//
// # Thread Safety
//
// The engine is safe for concurrent use. Configuration updates take effect
// atomically and purge the response cache.
package recommend
