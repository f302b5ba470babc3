// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"

	"shopgraph/internal/metrics"
)

// Neo4jConfig holds connection settings for the Bolt backend.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jStore implements Store against a Neo4j property graph populated by
// the shop ETL (Customer/Product/Category/Order nodes; PLACED, CONTAINS,
// IN_CATEGORY, VIEW, CLICK, ADD_TO_CART relationships).
//
// All sessions are opened read-only. Driver failures are classified as
// ErrUnavailable; context deadline errors pass through so callers can
// degrade to partial results.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   zerolog.Logger
}

// NewNeo4jStore connects to the graph and verifies connectivity.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig, logger zerolog.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, UnavailableError("verify connectivity", err)
	}

	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		logger:   logger.With().Str("component", "graph").Logger(),
	}, nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Ping verifies connectivity to the backend.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return UnavailableError("ping", err)
	}
	return nil
}

// CoOrderedProducts returns products sharing at least one order with the
// seed. Orders without a second product drop out of the MATCH naturally, so
// malformed zero-product orders never surface here.
func (s *Neo4jStore) CoOrderedProducts(ctx context.Context, productID string, limit int) ([]CoOrder, error) {
	if err := s.requireNode(ctx, "Product", productID); err != nil {
		return nil, err
	}

	const query = `
		MATCH (seed:Product {id: $id})<-[:CONTAINS]-(o:Order)-[:CONTAINS]->(other:Product)
		WHERE other.id <> $id
		RETURN other.id AS product_id, count(DISTINCT o) AS co_orders
		ORDER BY co_orders DESC, product_id ASC
		LIMIT $limit`

	records, err := s.read(ctx, "co_ordered_products", query, map[string]any{
		"id":    productID,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]CoOrder, 0, len(records))
	for _, rec := range records {
		out = append(out, CoOrder{
			ProductID: recordString(rec, "product_id"),
			Count:     recordInt(rec, "co_orders"),
		})
	}
	return out, nil
}

// OrderCountsByProduct returns total order counts for the given products.
func (s *Neo4jStore) OrderCountsByProduct(ctx context.Context, productIDs []string) (map[string]int, error) {
	if len(productIDs) == 0 {
		return map[string]int{}, nil
	}

	const query = `
		MATCH (p:Product)<-[:CONTAINS]-(o:Order)
		WHERE p.id IN $ids
		RETURN p.id AS product_id, count(DISTINCT o) AS orders`

	records, err := s.read(ctx, "order_counts_by_product", query, map[string]any{"ids": productIDs})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(records))
	for _, rec := range records {
		counts[recordString(rec, "product_id")] = recordInt(rec, "orders")
	}
	return counts, nil
}

// CustomerInteractions returns all interaction edges for a customer.
func (s *Neo4jStore) CustomerInteractions(ctx context.Context, customerID string) ([]Interaction, error) {
	if err := s.requireNode(ctx, "Customer", customerID); err != nil {
		return nil, err
	}

	const query = `
		MATCH (c:Customer {id: $id})-[r:VIEW|CLICK|ADD_TO_CART]->(p:Product)
		RETURN p.id AS product_id, type(r) AS kind, r.ts AS ts
		ORDER BY product_id ASC`

	records, err := s.read(ctx, "customer_interactions", query, map[string]any{"id": customerID})
	if err != nil {
		return nil, err
	}
	return recordsToInteractions(records), nil
}

// SimilarCustomers returns up to k customers with overlapping interacted
// products, most overlap first.
func (s *Neo4jStore) SimilarCustomers(ctx context.Context, customerID string, k int) ([]string, error) {
	const query = `
		MATCH (c:Customer {id: $id})-[:VIEW|CLICK|ADD_TO_CART]->(p:Product)
		      <-[:VIEW|CLICK|ADD_TO_CART]-(other:Customer)
		WHERE other.id <> $id
		RETURN other.id AS customer_id, count(DISTINCT p) AS overlap
		ORDER BY overlap DESC, customer_id ASC
		LIMIT $k`

	records, err := s.read(ctx, "similar_customers", query, map[string]any{"id": customerID, "k": k})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, recordString(rec, "customer_id"))
	}
	return out, nil
}

// InteractionsForCustomers batch-fetches interaction edges for the neighbor
// candidate pool.
func (s *Neo4jStore) InteractionsForCustomers(ctx context.Context, customerIDs []string) (map[string][]Interaction, error) {
	if len(customerIDs) == 0 {
		return map[string][]Interaction{}, nil
	}

	const query = `
		MATCH (c:Customer)-[r:VIEW|CLICK|ADD_TO_CART]->(p:Product)
		WHERE c.id IN $ids
		RETURN c.id AS customer_id, p.id AS product_id, type(r) AS kind, r.ts AS ts`

	records, err := s.read(ctx, "interactions_for_customers", query, map[string]any{"ids": customerIDs})
	if err != nil {
		return nil, err
	}

	out := make(map[string][]Interaction, len(customerIDs))
	for _, rec := range records {
		cid := recordString(rec, "customer_id")
		out[cid] = append(out[cid], recordToInteraction(rec))
	}
	return out, nil
}

// PurchasedProducts returns the distinct products a customer has ordered.
// An unknown customer is ErrNotFound, distinguishing it from a known
// customer with no orders.
func (s *Neo4jStore) PurchasedProducts(ctx context.Context, customerID string) ([]string, error) {
	if err := s.requireNode(ctx, "Customer", customerID); err != nil {
		return nil, err
	}

	const query = `
		MATCH (c:Customer {id: $id})-[:PLACED]->(:Order)-[:CONTAINS]->(p:Product)
		RETURN DISTINCT p.id AS product_id
		ORDER BY product_id ASC`

	records, err := s.read(ctx, "purchased_products", query, map[string]any{"id": customerID})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, recordString(rec, "product_id"))
	}
	return out, nil
}

// CategoriesOf returns the category ids a product belongs to.
func (s *Neo4jStore) CategoriesOf(ctx context.Context, productID string) ([]string, error) {
	const query = `
		MATCH (p:Product {id: $id})-[:IN_CATEGORY]->(cat:Category)
		RETURN cat.id AS category_id
		ORDER BY category_id ASC`

	records, err := s.read(ctx, "categories_of", query, map[string]any{"id": productID})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, recordString(rec, "category_id"))
	}
	return out, nil
}

// ProductsInCategories returns distinct products in any of the given
// categories.
func (s *Neo4jStore) ProductsInCategories(ctx context.Context, categoryIDs []string, limit int) ([]string, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	const query = `
		MATCH (p:Product)-[:IN_CATEGORY]->(cat:Category)
		WHERE cat.id IN $ids
		RETURN DISTINCT p.id AS product_id
		ORDER BY product_id ASC
		LIMIT $limit`

	records, err := s.read(ctx, "products_in_categories", query, map[string]any{
		"ids":   categoryIDs,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, recordString(rec, "product_id"))
	}
	return out, nil
}

// TopProducts returns the most-ordered products overall.
func (s *Neo4jStore) TopProducts(ctx context.Context, limit int) ([]CoOrder, error) {
	const query = `
		MATCH (p:Product)<-[:CONTAINS]-(o:Order)
		RETURN p.id AS product_id, count(DISTINCT o) AS orders
		ORDER BY orders DESC, product_id ASC
		LIMIT $limit`

	records, err := s.read(ctx, "top_products", query, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}

	out := make([]CoOrder, 0, len(records))
	for _, rec := range records {
		out = append(out, CoOrder{
			ProductID: recordString(rec, "product_id"),
			Count:     recordInt(rec, "orders"),
		})
	}
	return out, nil
}

// requireNode returns ErrNotFound when no node with the given label and id
// exists. Seed lookups distinguish "unknown id" (a caller error) from "no
// data" (an empty result).
func (s *Neo4jStore) requireNode(ctx context.Context, label, id string) error {
	query := fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN n.id LIMIT 1", label)

	records, err := s.read(ctx, "require_node", query, map[string]any{"id": id})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return NotFoundError(label, id)
	}
	return nil
}

// read runs a parameterized Cypher query in a read session and collects all
// records, recording query metrics.
func (s *Neo4jStore) read(ctx context.Context, name, query string, params map[string]any) ([]*neo4j.Record, error) {
	start := time.Now()

	records, err := s.runRead(ctx, query, params)
	metrics.ObserveStoreQuery(name, start, classifyError(err))

	if err != nil {
		s.logger.Warn().Str("query", name).Err(err).Msg("graph query failed")
	}
	return records, err
}

func (s *Neo4jStore) runRead(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer func() { _ = session.Close(ctx) }()

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, s.classify(ctx, err)
	}

	var records []*neo4j.Record
	for result.Next(ctx) {
		records = append(records, result.Record())
	}
	if err := result.Err(); err != nil {
		return nil, s.classify(ctx, err)
	}
	return records, nil
}

// classify maps driver errors onto the store taxonomy. Context errors pass
// through so the caller can treat them as degradation.
func (s *Neo4jStore) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return UnavailableError("query", err)
}

func classifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNotFound(err):
		return "not_found"
	case IsTimeout(err):
		return "timeout"
	case IsUnavailable(err):
		return "unavailable"
	default:
		return "other"
	}
}

// recordString reads a field as a string, tolerating integer ids produced
// by the relational ETL.
func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

func recordInt(rec *neo4j.Record, key string) int {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

// recordTime reads a timestamp field. Missing or unparseable timestamps
// yield the zero time, which downstream scoring treats as minimal weight.
func recordTime(rec *neo4j.Record, key string) time.Time {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}

func recordToInteraction(rec *neo4j.Record) Interaction {
	return Interaction{
		ProductID: recordString(rec, "product_id"),
		Type:      relationshipType(recordString(rec, "kind")),
		Timestamp: recordTime(rec, "ts"),
	}
}

func recordsToInteractions(records []*neo4j.Record) []Interaction {
	out := make([]Interaction, 0, len(records))
	for _, rec := range records {
		out = append(out, recordToInteraction(rec))
	}
	return out
}

// relationshipType maps graph relationship names to interaction types.
func relationshipType(rel string) InteractionType {
	switch rel {
	case "VIEW":
		return InteractionView
	case "CLICK":
		return InteractionClick
	case "ADD_TO_CART":
		return InteractionAddToCart
	default:
		return InteractionType(rel)
	}
}
