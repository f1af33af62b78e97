package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/reverse" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("format") != "jsonv2" {
			http.Error(w, "bad format", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"display_name": "Shibuya, Tokyo, Japan",
			"address": map[string]string{
				"city":    "Shibuya",
				"country": "Japan",
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReverseResolvesPlace(t *testing.T) {
	var hits atomic.Int64
	srv := newTestServer(t, &hits)

	g := New(t.TempDir(), srv.URL)
	place, err := g.Reverse(context.Background(), 35.6595, 139.7005)
	if err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}
	if place.City != "Shibuya" {
		t.Errorf("Expected city Shibuya, got %q", place.City)
	}
	if place.Country != "Japan" {
		t.Errorf("Expected country Japan, got %q", place.Country)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", hits.Load())
	}
}

func TestReverseUsesCache(t *testing.T) {
	var hits atomic.Int64
	srv := newTestServer(t, &hits)

	g := New(t.TempDir(), srv.URL)
	ctx := context.Background()

	if _, err := g.Reverse(ctx, 35.6595, 139.7005); err != nil {
		t.Fatalf("First Reverse failed: %v", err)
	}
	// Same rounded key: identical and nearby coordinates.
	if _, err := g.Reverse(ctx, 35.6595, 139.7005); err != nil {
		t.Fatalf("Second Reverse failed: %v", err)
	}
	if _, err := g.Reverse(ctx, 35.6601, 139.7008); err != nil {
		t.Fatalf("Nearby Reverse failed: %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("Expected 1 upstream request, got %d", hits.Load())
	}
}

func TestCacheSurvivesRestart(t *testing.T) {
	var hits atomic.Int64
	srv := newTestServer(t, &hits)
	dataDir := t.TempDir()

	g := New(dataDir, srv.URL)
	if _, err := g.Reverse(context.Background(), 35.6595, 139.7005); err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dataDir, "geocoding_cache.json")); err != nil {
		t.Fatalf("Expected cache file on disk: %v", err)
	}

	g2 := New(dataDir, srv.URL)
	place, err := g2.Reverse(context.Background(), 35.6595, 139.7005)
	if err != nil {
		t.Fatalf("Reverse after restart failed: %v", err)
	}
	if place.City != "Shibuya" {
		t.Errorf("Expected cached city Shibuya, got %q", place.City)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected no new upstream requests, got %d total", hits.Load())
	}
}

func TestConcurrentReverseSharesOneFetch(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"display_name": "Shibuya, Tokyo, Japan",
			"address":      map[string]string{"city": "Shibuya", "country": "Japan"},
		})
	}))
	t.Cleanup(srv.Close)

	g := New(t.TempDir(), srv.URL)
	start := time.Now()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Reverse(context.Background(), 35.6595, 139.7005)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Reverse failed: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("Expected concurrent callers to share 1 request, got %d", hits.Load())
	}
	// The second caller must piggyback on the in-flight request, not sit
	// out a full rate-limit interval.
	if elapsed := time.Since(start); elapsed >= requestInterval {
		t.Errorf("Expected shared fetch to finish quickly, took %v", elapsed)
	}
}

func TestReverseUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over capacity", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	g := New(t.TempDir(), srv.URL)
	if _, err := g.Reverse(context.Background(), 35.0, 139.0); err == nil {
		t.Error("Expected error from failing upstream")
	}
}

func TestCorruptCacheStartsFresh(t *testing.T) {
	var hits atomic.Int64
	srv := newTestServer(t, &hits)
	dataDir := t.TempDir()

	cachePath := filepath.Join(dataDir, "geocoding_cache.json")
	if err := os.WriteFile(cachePath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	g := New(dataDir, srv.URL)
	place, err := g.Reverse(context.Background(), 35.6595, 139.7005)
	if err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}
	if place.City != "Shibuya" {
		t.Errorf("Expected Shibuya, got %q", place.City)
	}
}

func TestCacheKeyRounding(t *testing.T) {
	if cacheKey(35.6595, 139.7005) != "35.66,139.70" {
		t.Errorf("Unexpected cache key: %s", cacheKey(35.6595, 139.7005))
	}
	if cacheKey(35.6595, 139.7005) != cacheKey(35.6610, 139.7040) {
		t.Error("Expected nearby coordinates to share a cache key")
	}
	if cacheKey(35.66, 139.70) == cacheKey(-35.66, 139.70) {
		t.Error("Expected hemispheres to produce distinct keys")
	}
}
