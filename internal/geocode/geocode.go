package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"journeymap/internal/logging"
	"journeymap/internal/metrics"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	userAgent      = "journeymap/1.0"

	// Nominatim's usage policy allows at most one request per second.
	requestInterval = time.Second

	requestTimeout = 5 * time.Second
)

// Place is a resolved location.
type Place struct {
	DisplayName string `json:"display_name"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

// nominatimResponse is the subset of the jsonv2 reverse response we read.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Country string `json:"country"`
	} `json:"address"`
}

// Geocoder resolves coordinates to place names with disk caching and rate
// limiting. Safe for concurrent use.
type Geocoder struct {
	baseURL   string
	client    *http.Client
	cachePath string

	mu          sync.Mutex
	cache       map[string]Place
	pending     map[string]chan struct{}
	lastRequest time.Time
}

// New creates a Geocoder caching results under dataDir. An empty baseURL
// uses the public Nominatim instance.
func New(dataDir, baseURL string) *Geocoder {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	g := &Geocoder{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: requestTimeout},
		cachePath: filepath.Join(dataDir, "geocoding_cache.json"),
		cache:     make(map[string]Place),
		pending:   make(map[string]chan struct{}),
	}
	g.loadCache()
	return g
}

// cacheKey rounds to two decimal places so nearby points share one lookup.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

func (g *Geocoder) loadCache() {
	data, err := os.ReadFile(g.cachePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Failed to read geocoding cache: %v", err)
		}
		return
	}
	if err := json.Unmarshal(data, &g.cache); err != nil {
		logging.Warn("Corrupt geocoding cache, starting fresh: %v", err)
		g.cache = make(map[string]Place)
		return
	}
	logging.Debug("Loaded %d cached geocoding results", len(g.cache))
}

// saveCache must be called with g.mu held.
func (g *Geocoder) saveCache() {
	data, err := json.MarshalIndent(g.cache, "", "  ")
	if err != nil {
		logging.Warn("Failed to encode geocoding cache: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(g.cachePath), 0755); err != nil {
		logging.Warn("Failed to create cache directory: %v", err)
		return
	}
	if err := os.WriteFile(g.cachePath, data, 0644); err != nil {
		logging.Warn("Failed to write geocoding cache: %v", err)
	}
}

// Reverse resolves coordinates to a place. Cached results return
// immediately; uncached lookups wait out the rate limit first. Concurrent
// callers for the same key share one upstream request.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	key := cacheKey(lat, lon)

	g.mu.Lock()
	for {
		if place, ok := g.cache[key]; ok {
			g.mu.Unlock()
			metrics.GeocodeRequestsTotal.WithLabelValues("cached").Inc()
			return &place, nil
		}
		done, inFlight := g.pending[key]
		if !inFlight {
			break
		}
		// Another caller is already fetching this key. Wait for it and
		// re-check the cache; a failed fetch falls through to a retry.
		g.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		g.mu.Lock()
	}

	done := make(chan struct{})
	g.pending[key] = done
	settle := func() {
		delete(g.pending, key)
		close(done)
	}

	for {
		wait := requestInterval - time.Since(g.lastRequest)
		if wait <= 0 {
			break
		}
		g.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			g.mu.Lock()
			settle()
			g.mu.Unlock()
			return nil, ctx.Err()
		}
		g.mu.Lock()
	}
	g.lastRequest = time.Now()
	g.mu.Unlock()

	place, err := g.fetch(ctx, lat, lon)

	g.mu.Lock()
	settle()
	if err != nil {
		g.mu.Unlock()
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	g.cache[key] = *place
	g.saveCache()
	g.mu.Unlock()

	metrics.GeocodeRequestsTotal.WithLabelValues("success").Inc()
	return place, nil
}

func (g *Geocoder) fetch(ctx context.Context, lat, lon float64) (*Place, error) {
	endpoint := fmt.Sprintf("%s/reverse?%s", g.baseURL, url.Values{
		"lat":    {fmt.Sprintf("%f", lat)},
		"lon":    {fmt.Sprintf("%f", lon)},
		"format": {"jsonv2"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var nr nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return nil, fmt.Errorf("reverse geocode response: %w", err)
	}

	city := nr.Address.City
	if city == "" {
		city = nr.Address.Town
	}
	if city == "" {
		city = nr.Address.Village
	}

	return &Place{
		DisplayName: nr.DisplayName,
		City:        city,
		Country:     nr.Address.Country,
	}, nil
}
