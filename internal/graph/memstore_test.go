// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Orders: []Order{
			{ID: "O1", CustomerID: "C1", ProductIDs: []string{"A", "B"}},
			{ID: "O2", CustomerID: "C2", ProductIDs: []string{"A", "C"}},
			{ID: "O3", CustomerID: "C1", ProductIDs: []string{"A", "B"}},
			{ID: "O4", CustomerID: "C3", ProductIDs: nil}, // malformed, dropped
		},
		Interactions: map[string][]Interaction{
			"C1": {
				{ProductID: "A", Type: InteractionView},
				{ProductID: "B", Type: InteractionAddToCart},
			},
			"C2": {
				{ProductID: "A", Type: InteractionClick},
			},
		},
		Categories: map[string][]string{
			"A": {"electronics"},
			"B": {"electronics"},
			"C": {"books"},
		},
		Customers: []string{"C4"},
	}
}

func TestMemStoreCoOrderedProducts(t *testing.T) {
	store := NewMemStore(testSnapshot())
	ctx := context.Background()

	tests := []struct {
		name      string
		productID string
		limit     int
		want      []CoOrder
		wantErr   error
	}{
		{
			name:      "seed with co-orders",
			productID: "A",
			limit:     10,
			want:      []CoOrder{{ProductID: "B", Count: 2}, {ProductID: "C", Count: 1}},
		},
		{
			name:      "limit truncates",
			productID: "A",
			limit:     1,
			want:      []CoOrder{{ProductID: "B", Count: 2}},
		},
		{
			name:      "unknown seed",
			productID: "nope",
			limit:     10,
			wantErr:   ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.CoOrderedProducts(ctx, tt.productID, tt.limit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CoOrderedProducts() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CoOrderedProducts() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CoOrderedProducts() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemStoreCustomerInteractions(t *testing.T) {
	store := NewMemStore(testSnapshot())
	ctx := context.Background()

	t.Run("known customer", func(t *testing.T) {
		got, err := store.CustomerInteractions(ctx, "C1")
		if err != nil {
			t.Fatalf("CustomerInteractions() unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("CustomerInteractions() returned %d edges, want 2", len(got))
		}
		if got[0].ProductID != "A" || got[1].ProductID != "B" {
			t.Errorf("CustomerInteractions() order = %v, want sorted by product id", got)
		}
	})

	t.Run("customer with no interactions", func(t *testing.T) {
		got, err := store.CustomerInteractions(ctx, "C4")
		if err != nil {
			t.Fatalf("CustomerInteractions() unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("CustomerInteractions() = %v, want empty", got)
		}
	})

	t.Run("unknown customer", func(t *testing.T) {
		_, err := store.CustomerInteractions(ctx, "ghost")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("CustomerInteractions() error = %v, want ErrNotFound", err)
		}
	})
}

func TestMemStoreSimilarCustomers(t *testing.T) {
	store := NewMemStore(testSnapshot())

	got, err := store.SimilarCustomers(context.Background(), "C1", 5)
	if err != nil {
		t.Fatalf("SimilarCustomers() unexpected error: %v", err)
	}
	want := []string{"C2"} // shares product A
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SimilarCustomers() = %v, want %v", got, want)
	}
}

func TestMemStorePurchasedProducts(t *testing.T) {
	store := NewMemStore(testSnapshot())

	got, err := store.PurchasedProducts(context.Background(), "C1")
	if err != nil {
		t.Fatalf("PurchasedProducts() unexpected error: %v", err)
	}
	want := []string{"A", "B"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PurchasedProducts() = %v, want %v", got, want)
	}

	// A known customer with no orders is an empty list, not an error.
	got, err = store.PurchasedProducts(context.Background(), "C4")
	if err != nil {
		t.Fatalf("PurchasedProducts(C4) unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("PurchasedProducts(C4) = %v, want empty", got)
	}

	// An unknown customer is ErrNotFound.
	if _, err := store.PurchasedProducts(context.Background(), "ghost"); !IsNotFound(err) {
		t.Errorf("PurchasedProducts(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestMemStoreCategories(t *testing.T) {
	store := NewMemStore(testSnapshot())
	ctx := context.Background()

	cats, err := store.CategoriesOf(ctx, "A")
	if err != nil {
		t.Fatalf("CategoriesOf() unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cats, []string{"electronics"}) {
		t.Errorf("CategoriesOf() = %v", cats)
	}

	pids, err := store.ProductsInCategories(ctx, []string{"electronics"}, 10)
	if err != nil {
		t.Fatalf("ProductsInCategories() unexpected error: %v", err)
	}
	if !reflect.DeepEqual(pids, []string{"A", "B"}) {
		t.Errorf("ProductsInCategories() = %v, want [A B]", pids)
	}
}

func TestMemStoreTopProducts(t *testing.T) {
	store := NewMemStore(testSnapshot())

	got, err := store.TopProducts(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopProducts() unexpected error: %v", err)
	}
	want := []CoOrder{{ProductID: "A", Count: 3}, {ProductID: "B", Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopProducts() = %v, want %v", got, want)
	}
}

func TestMemStoreContextCancellation(t *testing.T) {
	store := NewMemStore(testSnapshot())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := store.CoOrderedProducts(ctx, "A", 10)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CoOrderedProducts() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestMemStoreFail(t *testing.T) {
	store := NewMemStore(testSnapshot())
	store.Fail(UnavailableError("test", errors.New("down")))

	_, err := store.TopProducts(context.Background(), 5)
	if !IsUnavailable(err) {
		t.Errorf("TopProducts() error = %v, want ErrUnavailable", err)
	}

	store.Fail(nil)
	if _, err := store.TopProducts(context.Background(), 5); err != nil {
		t.Errorf("TopProducts() after recovery: %v", err)
	}
}
