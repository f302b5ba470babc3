// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graph provides read-only query access to the shop property graph.
//
// The graph holds Customer, Product, Category, and Order nodes connected by
// PLACED, CONTAINS, IN_CATEGORY, and the interaction relationships VIEW,
// CLICK, and ADD_TO_CART. The recommendation core never writes to the graph;
// ingestion is owned by the ETL pipeline. The only schema guarantee the core
// relies on is per-label id uniqueness, enforced by the store's constraints.
//
// Two implementations are provided: Neo4jStore for the production Bolt
// backend and MemStore, an in-memory snapshot used by tests and local
// development. BreakerStore wraps either with a circuit breaker so that a
// struggling backend fails fast instead of stalling every request.
package graph

import (
	"context"
	"time"
)

// InteractionType classifies customer-product interaction edges by
// purchase intent.
type InteractionType string

const (
	// InteractionView records a product page view.
	InteractionView InteractionType = "view"
	// InteractionClick records a product click-through.
	InteractionClick InteractionType = "click"
	// InteractionAddToCart records an add-to-cart, the strongest
	// pre-purchase signal.
	InteractionAddToCart InteractionType = "add_to_cart"
)

// Interaction is a typed, timestamped customer-product engagement edge.
// A zero Timestamp is valid: edges with missing timestamps are kept and
// weighted minimally rather than rejected.
type Interaction struct {
	ProductID string
	Type      InteractionType
	Timestamp time.Time
}

// CoOrder pairs a product with the number of orders it shares with a seed
// product (or, for TopProducts, its total order count).
type CoOrder struct {
	ProductID string
	Count     int
}

// Store is the read-only query contract the recommendation core needs from
// the property graph. Implementations must be safe for concurrent use.
//
// All methods honor ctx cancellation and deadlines; deadline errors pass
// through unclassified so callers can treat them as degradation rather than
// failure. Orders without products contribute nothing to any result (they
// are malformed input, skipped, never fatal).
type Store interface {
	// CoOrderedProducts returns products appearing in at least one order
	// together with productID, with raw co-order counts, ordered by count
	// descending then product id ascending, capped at limit. The seed
	// itself is never included. Returns ErrNotFound if the product does
	// not exist and an empty slice if it has no orders.
	CoOrderedProducts(ctx context.Context, productID string, limit int) ([]CoOrder, error)

	// OrderCountsByProduct returns the total number of orders containing
	// each of the given products. Products with no orders are absent from
	// the result.
	OrderCountsByProduct(ctx context.Context, productIDs []string) (map[string]int, error)

	// CustomerInteractions returns all interaction edges for a customer.
	// Returns ErrNotFound if the customer does not exist and an empty
	// slice if it has no interactions.
	CustomerInteractions(ctx context.Context, customerID string) ([]Interaction, error)

	// SimilarCustomers returns up to k customers sharing at least one
	// interacted product with customerID, ordered by overlap descending
	// then id ascending. This is candidate generation only: actual
	// similarity is computed by the collaborative filter.
	SimilarCustomers(ctx context.Context, customerID string, k int) ([]string, error)

	// InteractionsForCustomers batch-fetches interaction edges for the
	// neighbor candidate pool.
	InteractionsForCustomers(ctx context.Context, customerIDs []string) (map[string][]Interaction, error)

	// PurchasedProducts returns the distinct products a customer has
	// ordered, sorted by id. Used for the mandatory owned-product
	// exclusion.
	PurchasedProducts(ctx context.Context, customerID string) ([]string, error)

	// CategoriesOf returns the category ids a product belongs to.
	CategoriesOf(ctx context.Context, productID string) ([]string, error)

	// ProductsInCategories returns up to limit distinct products belonging
	// to any of the given categories, sorted by id.
	ProductsInCategories(ctx context.Context, categoryIDs []string, limit int) ([]string, error)

	// TopProducts returns the limit most-ordered products with their order
	// counts, ordered by count descending then id ascending.
	TopProducts(ctx context.Context, limit int) ([]CoOrder, error)

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}
