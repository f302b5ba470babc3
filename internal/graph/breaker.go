// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"shopgraph/internal/metrics"
)

// BreakerStore wraps a Store with a circuit breaker so a failing graph
// backend does not tie up every recommendation request in slow timeouts.
//
// The breaker uses real time for its interval and timeout calculations.
// Tests exercise the wrapped store directly; the breaker is validated
// through its own unit tests.
type BreakerStore struct {
	store  Store
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger zerolog.Logger
}

// NewBreakerStore wraps store with circuit breaker protection.
// Configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
//
// Not-found results and caller-initiated context cancellation do not count
// as failures; they say nothing about backend health.
func NewBreakerStore(store Store, logger zerolog.Logger) *BreakerStore {
	const cbName = "graph-store"

	log := logger.With().Str("component", "breaker").Logger()

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				log.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening circuit")
			}

			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return IsNotFound(err) || errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			log.Info().Str("from", fromStr).Str("to", toStr).Msg("circuit state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerStore{
		store:  store,
		cb:     cb,
		name:   cbName,
		logger: log,
	}
}

// execute runs a store call through the breaker. An open circuit is reported
// as ErrUnavailable so callers degrade the same way as for a down backend.
func (b *BreakerStore) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return nil, UnavailableError("circuit open", err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, nil
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func (b *BreakerStore) CoOrderedProducts(ctx context.Context, productID string, limit int) ([]CoOrder, error) {
	return castResult[[]CoOrder](b.execute(func() (any, error) {
		return b.store.CoOrderedProducts(ctx, productID, limit)
	}))
}

func (b *BreakerStore) OrderCountsByProduct(ctx context.Context, productIDs []string) (map[string]int, error) {
	return castResult[map[string]int](b.execute(func() (any, error) {
		return b.store.OrderCountsByProduct(ctx, productIDs)
	}))
}

func (b *BreakerStore) CustomerInteractions(ctx context.Context, customerID string) ([]Interaction, error) {
	return castResult[[]Interaction](b.execute(func() (any, error) {
		return b.store.CustomerInteractions(ctx, customerID)
	}))
}

func (b *BreakerStore) SimilarCustomers(ctx context.Context, customerID string, k int) ([]string, error) {
	return castResult[[]string](b.execute(func() (any, error) {
		return b.store.SimilarCustomers(ctx, customerID, k)
	}))
}

func (b *BreakerStore) InteractionsForCustomers(ctx context.Context, customerIDs []string) (map[string][]Interaction, error) {
	return castResult[map[string][]Interaction](b.execute(func() (any, error) {
		return b.store.InteractionsForCustomers(ctx, customerIDs)
	}))
}

func (b *BreakerStore) PurchasedProducts(ctx context.Context, customerID string) ([]string, error) {
	return castResult[[]string](b.execute(func() (any, error) {
		return b.store.PurchasedProducts(ctx, customerID)
	}))
}

func (b *BreakerStore) CategoriesOf(ctx context.Context, productID string) ([]string, error) {
	return castResult[[]string](b.execute(func() (any, error) {
		return b.store.CategoriesOf(ctx, productID)
	}))
}

func (b *BreakerStore) ProductsInCategories(ctx context.Context, categoryIDs []string, limit int) ([]string, error) {
	return castResult[[]string](b.execute(func() (any, error) {
		return b.store.ProductsInCategories(ctx, categoryIDs, limit)
	}))
}

func (b *BreakerStore) TopProducts(ctx context.Context, limit int) ([]CoOrder, error) {
	return castResult[[]CoOrder](b.execute(func() (any, error) {
		return b.store.TopProducts(ctx, limit)
	}))
}

// Ping bypasses the breaker; the prober needs to see the real backend
// state to detect recovery.
func (b *BreakerStore) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}

func (b *BreakerStore) Close(ctx context.Context) error {
	return b.store.Close(ctx)
}
