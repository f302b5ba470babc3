// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"shopgraph/internal/config"
	"shopgraph/internal/graph"
	"shopgraph/internal/recommend"
)

// testSnapshot models a small shop: product A is ordered with B twice and
// with C once.
func testSnapshot() graph.Snapshot {
	return graph.Snapshot{
		Orders: []graph.Order{
			{ID: "O1", CustomerID: "C1", ProductIDs: []string{"A", "B"}},
			{ID: "O2", CustomerID: "C2", ProductIDs: []string{"A", "C"}},
			{ID: "O3", CustomerID: "C3", ProductIDs: []string{"A", "B"}},
		},
		Interactions: map[string][]graph.Interaction{
			"C1": {
				{ProductID: "A", Type: graph.InteractionAddToCart, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			},
		},
		Categories: map[string][]string{
			"A": {"gear"},
			"B": {"gear"},
			"C": {"books"},
		},
		Customers: []string{"fresh"},
	}
}

func newTestServer(t *testing.T, store graph.Store) *httptest.Server {
	t.Helper()

	cfg := recommend.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Fallback.PopularityOnEmpty = false

	engine, err := recommend.NewEngine(store, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	router := NewRouter(engine, store, config.APIConfig{
		RateLimitRPS:   0,
		RequestTimeout: 5 * time.Second,
	})
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string) (int, *APIResponse) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, &body
}

func decodeRecommendation(t *testing.T, body *APIResponse) *recommend.Response {
	t.Helper()

	raw, err := json.Marshal(body.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var rec recommend.Response
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode recommendation: %v", err)
	}
	return &rec
}

func TestRecommendSimilarEndpoint(t *testing.T) {
	srv := newTestServer(t, graph.NewMemStore(testSnapshot()))

	status, body := getJSON(t, srv.URL+"/api/v1/recommendations/similar/A?limit=2")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body.Status != "success" {
		t.Fatalf("body.Status = %q, want success", body.Status)
	}

	rec := decodeRecommendation(t, body)
	if len(rec.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(rec.Items))
	}
	if rec.Items[0].ProductID != "B" || rec.Items[1].ProductID != "C" {
		t.Errorf("items = [%s %s], want [B C]",
			rec.Items[0].ProductID, rec.Items[1].ProductID)
	}
	if rec.Metadata.RequestID == "" {
		t.Error("metadata.request_id is empty")
	}
}

func TestRecommendCustomerEndpoint(t *testing.T) {
	srv := newTestServer(t, graph.NewMemStore(testSnapshot()))

	status, body := getJSON(t, srv.URL+"/api/v1/recommendations/customer/C1")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	rec := decodeRecommendation(t, body)
	for _, item := range rec.Items {
		if item.ProductID == "A" || item.ProductID == "B" {
			t.Errorf("owned product %s appears in recommendations", item.ProductID)
		}
	}
}

func TestRecommendUnknownSeed(t *testing.T) {
	srv := newTestServer(t, graph.NewMemStore(testSnapshot()))

	for _, path := range []string{
		"/api/v1/recommendations/similar/nope",
		"/api/v1/recommendations/customer/nope",
		// Weight overrides must not bypass the seed existence check.
		"/api/v1/recommendations/customer/nope?weights=cooccurrence:1",
		"/api/v1/recommendations/similar/nope?weights=category:1",
	} {
		status, body := getJSON(t, srv.URL+path)
		if status != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, status)
		}
		if body.Error == nil || body.Error.Code != "NOT_FOUND" {
			t.Errorf("%s: error = %+v, want NOT_FOUND", path, body.Error)
		}
	}
}

func TestRecommendInvalidParams(t *testing.T) {
	srv := newTestServer(t, graph.NewMemStore(testSnapshot()))

	tests := []struct {
		name  string
		query string
	}{
		{"non-numeric limit", "limit=abc"},
		{"negative limit", "limit=-1"},
		{"malformed weights", "weights=cooccurrence"},
		{"negative weight", "weights=cooccurrence:-1"},
		{"bad exclude_owned", "exclude_owned=maybe"},
		{"bad timeout", "timeout_ms=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := getJSON(t,
				srv.URL+"/api/v1/recommendations/similar/A?"+tt.query)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", status)
			}
			if body.Error == nil || body.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error = %+v, want VALIDATION_ERROR", body.Error)
			}
		})
	}
}

func TestRecommendStoreDown(t *testing.T) {
	store := graph.NewMemStore(testSnapshot())
	store.Fail(graph.UnavailableError("query", errors.New("connection refused")))
	srv := newTestServer(t, store)

	// Similar mode degrades: every source fails but the merge still
	// completes, so the response is a 200 with the failures listed.
	status, body := getJSON(t, srv.URL+"/api/v1/recommendations/similar/A")
	if status != http.StatusOK {
		t.Fatalf("similar: status = %d, want 200", status)
	}
	rec := decodeRecommendation(t, body)
	if len(rec.Items) != 0 {
		t.Errorf("similar: len(items) = %d, want 0", len(rec.Items))
	}
	if len(rec.Degraded) == 0 {
		t.Error("similar: no degraded sources reported")
	}

	// Customer mode needs the store up front to exclude owned products.
	// When that lookup fails no items can be served safely, but the
	// response is still a 200 with the failure reported as degradation.
	status, body = getJSON(t, srv.URL+"/api/v1/recommendations/customer/C1")
	if status != http.StatusOK {
		t.Fatalf("customer: status = %d, want 200", status)
	}
	rec = decodeRecommendation(t, body)
	if len(rec.Items) != 0 {
		t.Errorf("customer: len(items) = %d, want 0", len(rec.Items))
	}
	found := false
	for _, d := range rec.Degraded {
		if d.Source == "owned_products" && d.Reason == "unavailable" {
			found = true
		}
	}
	if !found {
		t.Errorf("customer: degraded = %+v, want owned_products/unavailable", rec.Degraded)
	}
}

func TestHealthEndpoint(t *testing.T) {
	store := graph.NewMemStore(testSnapshot())
	srv := newTestServer(t, store)

	status, _ := getJSON(t, srv.URL+"/health")
	if status != http.StatusOK {
		t.Fatalf("healthy store: status = %d, want 200", status)
	}

	store.Fail(graph.UnavailableError("ping", errors.New("connection refused")))
	status, _ = getJSON(t, srv.URL+"/health")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("dead store: status = %d, want 503", status)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, graph.NewMemStore(testSnapshot()))

	status, body := getJSON(t, srv.URL+"/api/v1/recommendations/status")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	data, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want object", body.Data)
	}
	for _, key := range []string{"uptime_seconds", "cache_entries", "weights", "default_limit"} {
		if _, present := data[key]; !present {
			t.Errorf("status data missing %q", key)
		}
	}
}

func TestConfigGetAndPut(t *testing.T) {
	srv := newTestServer(t, graph.NewMemStore(testSnapshot()))

	status, body := getJSON(t, srv.URL+"/api/v1/recommendations/config")
	if status != http.StatusOK {
		t.Fatalf("GET config: status = %d, want 200", status)
	}
	if body.Status != "success" {
		t.Fatalf("GET config: body.Status = %q", body.Status)
	}

	update := `{"limits": {"default_limit": 25, "max_limit": 100, "source_timeout": 2000000000}}`
	req, err := http.NewRequest(http.MethodPut,
		srv.URL+"/api/v1/recommendations/config", strings.NewReader(update))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT config: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT config: status = %d, want 200", resp.StatusCode)
	}

	var updated APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode PUT response: %v", err)
	}
	raw, _ := json.Marshal(updated.Data)
	var cfg recommend.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Limits.DefaultLimit != 25 {
		t.Errorf("default_limit = %d, want 25", cfg.Limits.DefaultLimit)
	}
}

func TestConfigPutRejectsInvalid(t *testing.T) {
	srv := newTestServer(t, graph.NewMemStore(testSnapshot()))

	update := `{"limits": {"default_limit": -5}}`
	req, err := http.NewRequest(http.MethodPut,
		srv.URL+"/api/v1/recommendations/config", strings.NewReader(update))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT config: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRequestIDHeaderEchoed(t *testing.T) {
	srv := newTestServer(t, graph.NewMemStore(testSnapshot()))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Request-ID", "trace-me")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "trace-me" {
		t.Errorf("X-Request-ID = %q, want trace-me", got)
	}
}

func TestRateLimitRejectsBurst(t *testing.T) {
	store := graph.NewMemStore(testSnapshot())
	cfg := recommend.DefaultConfig()
	cfg.Cache.Enabled = false

	engine, err := recommend.NewEngine(store, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	router := NewRouter(engine, store, config.APIConfig{
		RateLimitRPS:   1,
		RateLimitBurst: 1,
		RequestTimeout: 5 * time.Second,
	})
	srv := httptest.NewServer(router.Setup())
	defer srv.Close()

	limited := false
	for i := 0; i < 5; i++ {
		status, body := getJSON(t, srv.URL+"/api/v1/recommendations/status")
		if status == http.StatusTooManyRequests {
			if body.Error == nil || body.Error.Code != "RATE_LIMIT_EXCEEDED" {
				t.Fatalf("error = %+v, want RATE_LIMIT_EXCEEDED", body.Error)
			}
			limited = true
			break
		}
	}
	if !limited {
		t.Error("burst of 5 requests against a 1 rps bucket was never limited")
	}
}

func TestParseWeights(t *testing.T) {
	weights, err := parseWeights("cooccurrence:0.7, category:0.3")
	if err != nil {
		t.Fatalf("parseWeights: %v", err)
	}
	if weights["cooccurrence"] != 0.7 || weights["category"] != 0.3 {
		t.Errorf("weights = %v", weights)
	}

	if _, err := parseWeights("cooccurrence=0.7"); err == nil {
		t.Error("expected error for missing colon")
	}
}
