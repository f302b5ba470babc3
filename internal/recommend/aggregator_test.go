// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"shopgraph/internal/graph"
)

// stubSource is a controllable Source for aggregator tests.
type stubSource struct {
	name   string
	scores map[string]float64
	err    error
	delay  time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) ScoreForCustomer(ctx context.Context, _ string, _ int) (map[string]float64, error) {
	return s.respond(ctx)
}

func (s *stubSource) ScoreForProduct(ctx context.Context, _ string, _ int) (map[string]float64, error) {
	return s.respond(ctx)
}

func (s *stubSource) respond(ctx context.Context) (map[string]float64, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

func TestAggregatorMergesWeightedScores(t *testing.T) {
	agg := NewAggregator([]Source{
		&stubSource{name: "alpha", scores: map[string]float64{"A": 10, "B": 5}},
		&stubSource{name: "beta", scores: map[string]float64{"B": 2, "C": 1}},
	}, time.Second, zerolog.Nop())

	weights := map[string]float64{"alpha": 0.6, "beta": 0.4}
	result, err := agg.Run(context.Background(), ModeCustomer, "C1", weights, 50, 0)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	// Per-source min-max: alpha A=1 B=0, beta B=1 C=0.
	want := map[string]float64{"A": 0.6, "B": 0.4, "C": 0}
	for pid, score := range want {
		if got := result.combined[pid]; math.Abs(got-score) > 1e-9 {
			t.Errorf("combined[%s] = %f, want %f", pid, got, score)
		}
	}

	if !reflect.DeepEqual(result.used, []string{"alpha", "beta"}) {
		t.Errorf("used = %v, want [alpha beta]", result.used)
	}
	if len(result.degraded) != 0 {
		t.Errorf("degraded = %v, want empty", result.degraded)
	}
}

func TestAggregatorDegradesFailedSources(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		delay      time.Duration
		wantReason string
	}{
		{
			name:       "unavailable store",
			err:        graph.UnavailableError("query", errors.New("conn refused")),
			wantReason: "unavailable",
		},
		{
			name:       "slow source times out",
			delay:      200 * time.Millisecond,
			wantReason: "timeout",
		},
		{
			name:       "generic failure",
			err:        errors.New("boom"),
			wantReason: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator([]Source{
				&stubSource{name: "good", scores: map[string]float64{"A": 1}},
				&stubSource{name: "bad", err: tt.err, delay: tt.delay},
			}, 20*time.Millisecond, zerolog.Nop())

			weights := map[string]float64{"good": 0.5, "bad": 0.5}
			result, err := agg.Run(context.Background(), ModeCustomer, "C1", weights, 50, 0)
			if err != nil {
				t.Fatalf("Run() unexpected error: %v", err)
			}

			if len(result.degraded) != 1 {
				t.Fatalf("degraded = %v, want one entry", result.degraded)
			}
			if result.degraded[0].Source != "bad" || result.degraded[0].Reason != tt.wantReason {
				t.Errorf("degraded[0] = %+v, want {bad %s}", result.degraded[0], tt.wantReason)
			}

			// The healthy source still contributes.
			if result.combined["A"] == 0 {
				t.Error("healthy source score missing from merge")
			}
		})
	}
}

func TestAggregatorPropagatesNotFound(t *testing.T) {
	agg := NewAggregator([]Source{
		&stubSource{name: "alpha", err: graph.NotFoundError("Product", "nope")},
	}, time.Second, zerolog.Nop())

	_, err := agg.Run(context.Background(), ModeSimilar, "nope", map[string]float64{"alpha": 1}, 50, 0)
	if !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("Run() error = %v, want ErrNotFound", err)
	}
}

func TestAggregatorSkipsZeroWeightSources(t *testing.T) {
	called := &stubSource{name: "unwanted", err: errors.New("should not run")}
	agg := NewAggregator([]Source{
		&stubSource{name: "alpha", scores: map[string]float64{"A": 1}},
		called,
	}, time.Second, zerolog.Nop())

	result, err := agg.Run(context.Background(), ModeCustomer, "C1", map[string]float64{"alpha": 1}, 50, 0)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if len(result.degraded) != 0 {
		t.Errorf("zero-weight source ran and degraded: %v", result.degraded)
	}
}

func TestNormalizeScores(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   map[string]float64
	}{
		{
			name:   "spread maps to unit interval",
			scores: map[string]float64{"A": 10, "B": 5, "C": 0},
			want:   map[string]float64{"A": 1, "B": 0.5, "C": 0},
		},
		{
			name:   "uniform scores map to one",
			scores: map[string]float64{"A": 3, "B": 3},
			want:   map[string]float64{"A": 1, "B": 1},
		},
		{
			name:   "single candidate maps to one",
			scores: map[string]float64{"A": 42},
			want:   map[string]float64{"A": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeScores(tt.scores)
			for pid, want := range tt.want {
				if math.Abs(got[pid]-want) > 1e-9 {
					t.Errorf("normalizeScores()[%s] = %f, want %f", pid, got[pid], want)
				}
			}
		})
	}
}

func TestRankDeterministicTieBreak(t *testing.T) {
	agg := &aggregation{
		combined: map[string]float64{"Z": 0.5, "A": 0.5, "M": 0.9},
	}

	items := rank(agg, nil, 10)
	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.ProductID
	}

	want := []string{"M", "A", "Z"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rank() order = %v, want %v", got, want)
	}
}

func TestRankExcludesAndCaps(t *testing.T) {
	agg := &aggregation{
		combined: map[string]float64{"A": 0.9, "B": 0.8, "C": 0.7, "D": 0.6},
	}

	items := rank(agg, map[string]struct{}{"A": {}}, 2)
	if len(items) != 2 {
		t.Fatalf("rank() returned %d items, want 2", len(items))
	}
	if items[0].ProductID != "B" || items[1].ProductID != "C" {
		t.Errorf("rank() = %v, want [B C]", items)
	}
}
