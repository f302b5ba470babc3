// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"errors"
	"math"
	"testing"

	"shopgraph/internal/graph"
)

func TestCoOccurrenceScoresWithDamping(t *testing.T) {
	store := graph.NewMemStore(shopSnapshot())
	src := NewCoOccurrenceSource(store, CoOccurrenceConfig{CandidateLimit: 100, DampPopularity: true})

	scores, err := src.ScoreForProduct(context.Background(), "A", 10)
	if err != nil {
		t.Fatalf("ScoreForProduct() failed: %v", err)
	}

	// B co-ordered twice and appears in 2 orders total; C once, 1 order.
	wantB := 2 / math.Log1p(2)
	wantC := 1 / math.Log1p(1)
	if math.Abs(scores["B"]-wantB) > 1e-9 {
		t.Errorf("scores[B] = %f, want %f", scores["B"], wantB)
	}
	if math.Abs(scores["C"]-wantC) > 1e-9 {
		t.Errorf("scores[C] = %f, want %f", scores["C"], wantC)
	}
	if scores["B"] <= scores["C"] {
		t.Errorf("damped scores should still rank B above C: %v", scores)
	}
}

func TestCoOccurrenceRawCounts(t *testing.T) {
	store := graph.NewMemStore(shopSnapshot())
	src := NewCoOccurrenceSource(store, CoOccurrenceConfig{CandidateLimit: 100, DampPopularity: false})

	scores, err := src.ScoreForProduct(context.Background(), "A", 10)
	if err != nil {
		t.Fatalf("ScoreForProduct() failed: %v", err)
	}
	if scores["B"] != 2 || scores["C"] != 1 {
		t.Errorf("scores = %v, want B=2 C=1", scores)
	}
}

func TestCoOccurrenceSymmetricRawCounts(t *testing.T) {
	store := graph.NewMemStore(shopSnapshot())
	src := NewCoOccurrenceSource(store, CoOccurrenceConfig{CandidateLimit: 100, DampPopularity: false})
	ctx := context.Background()

	fromA, err := src.ScoreForProduct(ctx, "A", 10)
	if err != nil {
		t.Fatalf("ScoreForProduct(A) failed: %v", err)
	}
	fromB, err := src.ScoreForProduct(ctx, "B", 10)
	if err != nil {
		t.Fatalf("ScoreForProduct(B) failed: %v", err)
	}

	if fromA["B"] != fromB["A"] {
		t.Errorf("raw co-order counts not symmetric: A->B=%f, B->A=%f", fromA["B"], fromB["A"])
	}
}

func TestCoOccurrenceProductWithNoOrders(t *testing.T) {
	snap := shopSnapshot()
	snap.Products = append(snap.Products, "lonely")
	store := graph.NewMemStore(snap)
	src := NewCoOccurrenceSource(store, DefaultConfig().CoOccurrence)

	scores, err := src.ScoreForProduct(context.Background(), "lonely", 10)
	if err != nil {
		t.Fatalf("ScoreForProduct() failed: %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("scores = %v, want empty for product with no orders", scores)
	}
}

func TestCoOccurrenceUnknownSeed(t *testing.T) {
	store := graph.NewMemStore(shopSnapshot())
	src := NewCoOccurrenceSource(store, DefaultConfig().CoOccurrence)

	_, err := src.ScoreForProduct(context.Background(), "ghost", 10)
	if !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCoOccurrenceForCustomerMergesPurchases(t *testing.T) {
	store := graph.NewMemStore(shopSnapshot())
	src := NewCoOccurrenceSource(store, CoOccurrenceConfig{CandidateLimit: 100, DampPopularity: false})

	// C2 purchased A and C; co-orders of A include B, co-orders of C
	// include A.
	scores, err := src.ScoreForCustomer(context.Background(), "C2", 10)
	if err != nil {
		t.Fatalf("ScoreForCustomer() failed: %v", err)
	}
	if _, ok := scores["B"]; !ok {
		t.Errorf("scores = %v, want B from A's co-orders", scores)
	}
}
