// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSweeper struct {
	sweeps atomic.Int64
}

func (c *countingSweeper) SweepCache() int {
	c.sweeps.Add(1)
	return 0
}

func TestJanitorSweepsOnInterval(t *testing.T) {
	sweeper := &countingSweeper{}
	svc := NewJanitorService(sweeper, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if sweeper.sweeps.Load() == 0 {
		t.Error("janitor never swept the cache")
	}
}

func TestJanitorDefaultInterval(t *testing.T) {
	svc := NewJanitorService(&countingSweeper{}, 0, zerolog.Nop())
	if svc.interval != time.Minute {
		t.Errorf("interval = %v, want 1m default", svc.interval)
	}
}
