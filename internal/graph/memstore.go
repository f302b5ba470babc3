// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"context"
	"sort"
	"sync"
)

// Order is a seed order for the in-memory store.
type Order struct {
	ID         string
	CustomerID string
	ProductIDs []string
}

// Snapshot seeds a MemStore with a complete graph.
type Snapshot struct {
	Orders []Order
	// Interactions maps customer id to interaction edges.
	Interactions map[string][]Interaction
	// Categories maps product id to category ids.
	Categories map[string][]string
	// Customers lists customer ids with no orders or interactions yet.
	// Customers appearing in Orders or Interactions need not be listed.
	Customers []string
	// Products lists product ids not reachable from any order, interaction
	// or category.
	Products []string
}

// MemStore is an in-memory Store over a seeded snapshot. It backs the
// "memory" driver for local development and the package tests. All methods
// honor context cancellation, so tests can exercise timeout paths.
type MemStore struct {
	mu sync.RWMutex

	// productOrders maps product id to the set of order ids containing it.
	productOrders map[string]map[string]struct{}
	// customerOrders maps customer id to ordered product ids.
	customerOrders map[string]map[string]struct{}
	interactions   map[string][]Interaction
	categories     map[string][]string
	products       map[string]struct{}
	customers      map[string]struct{}

	// err, when set, is returned by every query. Tests use it to simulate
	// an unavailable backend.
	err error
}

// NewMemStore builds a store from the snapshot. Orders with no products
// contribute nothing, matching the malformed-order policy of the Cypher
// queries.
func NewMemStore(snap Snapshot) *MemStore {
	s := &MemStore{
		productOrders:  make(map[string]map[string]struct{}),
		customerOrders: make(map[string]map[string]struct{}),
		interactions:   make(map[string][]Interaction),
		categories:     make(map[string][]string),
		products:       make(map[string]struct{}),
		customers:      make(map[string]struct{}),
	}

	for _, o := range snap.Orders {
		if len(o.ProductIDs) == 0 {
			continue
		}
		if o.CustomerID != "" {
			s.customers[o.CustomerID] = struct{}{}
			if s.customerOrders[o.CustomerID] == nil {
				s.customerOrders[o.CustomerID] = make(map[string]struct{})
			}
		}
		for _, pid := range o.ProductIDs {
			s.products[pid] = struct{}{}
			if s.productOrders[pid] == nil {
				s.productOrders[pid] = make(map[string]struct{})
			}
			s.productOrders[pid][o.ID] = struct{}{}
			if o.CustomerID != "" {
				s.customerOrders[o.CustomerID][pid] = struct{}{}
			}
		}
	}

	for cid, edges := range snap.Interactions {
		s.customers[cid] = struct{}{}
		s.interactions[cid] = append(s.interactions[cid], edges...)
		for _, e := range edges {
			s.products[e.ProductID] = struct{}{}
		}
	}

	for pid, cats := range snap.Categories {
		s.products[pid] = struct{}{}
		s.categories[pid] = append(s.categories[pid], cats...)
	}

	for _, cid := range snap.Customers {
		s.customers[cid] = struct{}{}
	}
	for _, pid := range snap.Products {
		s.products[pid] = struct{}{}
	}

	return s
}

// Fail makes every subsequent query return err. Pass nil to recover.
func (s *MemStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *MemStore) CoOrderedProducts(ctx context.Context, productID string, limit int) ([]CoOrder, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[productID]; !ok {
		return nil, NotFoundError("Product", productID)
	}

	counts := make(map[string]int)
	for orderID := range s.productOrders[productID] {
		for other, orders := range s.productOrders {
			if other == productID {
				continue
			}
			if _, shared := orders[orderID]; shared {
				counts[other]++
			}
		}
	}

	return sortCoOrders(counts, limit), nil
}

func (s *MemStore) OrderCountsByProduct(ctx context.Context, productIDs []string) (map[string]int, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(productIDs))
	for _, pid := range productIDs {
		if orders, ok := s.productOrders[pid]; ok {
			counts[pid] = len(orders)
		}
	}
	return counts, nil
}

func (s *MemStore) CustomerInteractions(ctx context.Context, customerID string) ([]Interaction, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, NotFoundError("Customer", customerID)
	}

	edges := s.interactions[customerID]
	out := make([]Interaction, len(edges))
	copy(out, edges)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *MemStore) SimilarCustomers(ctx context.Context, customerID string, k int) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	mine := make(map[string]struct{})
	for _, e := range s.interactions[customerID] {
		mine[e.ProductID] = struct{}{}
	}

	overlap := make(map[string]int)
	for cid, edges := range s.interactions {
		if cid == customerID {
			continue
		}
		seen := make(map[string]struct{})
		for _, e := range edges {
			if _, shared := mine[e.ProductID]; !shared {
				continue
			}
			if _, dup := seen[e.ProductID]; dup {
				continue
			}
			seen[e.ProductID] = struct{}{}
			overlap[cid]++
		}
	}

	ids := make([]string, 0, len(overlap))
	for cid := range overlap {
		ids = append(ids, cid)
	}
	sort.Slice(ids, func(i, j int) bool {
		if overlap[ids[i]] != overlap[ids[j]] {
			return overlap[ids[i]] > overlap[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if k < len(ids) {
		ids = ids[:k]
	}
	return ids, nil
}

func (s *MemStore) InteractionsForCustomers(ctx context.Context, customerIDs []string) (map[string][]Interaction, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]Interaction, len(customerIDs))
	for _, cid := range customerIDs {
		edges, ok := s.interactions[cid]
		if !ok {
			continue
		}
		cp := make([]Interaction, len(edges))
		copy(cp, edges)
		out[cid] = cp
	}
	return out, nil
}

func (s *MemStore) PurchasedProducts(ctx context.Context, customerID string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, NotFoundError("Customer", customerID)
	}

	pids := make([]string, 0, len(s.customerOrders[customerID]))
	for pid := range s.customerOrders[customerID] {
		pids = append(pids, pid)
	}
	sort.Strings(pids)
	return pids, nil
}

func (s *MemStore) CategoriesOf(ctx context.Context, productID string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	cats := make([]string, len(s.categories[productID]))
	copy(cats, s.categories[productID])
	sort.Strings(cats)
	return cats, nil
}

func (s *MemStore) ProductsInCategories(ctx context.Context, categoryIDs []string, limit int) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]struct{}, len(categoryIDs))
	for _, cid := range categoryIDs {
		want[cid] = struct{}{}
	}

	var pids []string
	for pid, cats := range s.categories {
		for _, c := range cats {
			if _, ok := want[c]; ok {
				pids = append(pids, pid)
				break
			}
		}
	}
	sort.Strings(pids)
	if limit > 0 && limit < len(pids) {
		pids = pids[:limit]
	}
	return pids, nil
}

func (s *MemStore) TopProducts(ctx context.Context, limit int) ([]CoOrder, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.productOrders))
	for pid, orders := range s.productOrders {
		counts[pid] = len(orders)
	}
	return sortCoOrders(counts, limit), nil
}

func (s *MemStore) Ping(ctx context.Context) error {
	return s.check(ctx)
}

func (s *MemStore) Close(context.Context) error {
	return nil
}

// sortCoOrders orders by count descending, id ascending, truncating to limit.
func sortCoOrders(counts map[string]int, limit int) []CoOrder {
	out := make([]CoOrder, 0, len(counts))
	for pid, n := range counts {
		out = append(out, CoOrder{ProductID: pid, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ProductID < out[j].ProductID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
