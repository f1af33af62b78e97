package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"journeymap/internal/mapbuilder"
	"journeymap/internal/mediatypes"
	"journeymap/internal/scanner"
	"journeymap/internal/store"
)

type stubScanner struct {
	scanning bool
	last     *scanner.Summary
	scans    int
}

func (s *stubScanner) Scan(ctx context.Context) (*scanner.Summary, error) {
	s.scans++
	return &scanner.Summary{ScanID: "stub"}, nil
}

func (s *stubScanner) IsScanning() bool              { return s.scanning }
func (s *stubScanner) LastSummary() *scanner.Summary { return s.last }

type stubThumbnailer struct {
	enabled bool
	data    []byte
	err     error
}

func (t *stubThumbnailer) Get(filePath, fingerprint string) ([]byte, error) {
	return t.data, t.err
}

func (t *stubThumbnailer) IsEnabled() bool { return t.enabled }

func newTestServer(t *testing.T) (*Server, *store.Store, *stubScanner) {
	t.Helper()
	s, err := store.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	sc := &stubScanner{}
	thumbs := &stubThumbnailer{enabled: true, data: []byte("jpeg-bytes")}
	srv := New(s, sc, mapbuilder.New(s), thumbs, Config{MetricsEnabled: false})
	return srv, s, sc
}

func seedRecord(t *testing.T, s *store.Store, path, fp string, lat, lon float64, captured time.Time) {
	t.Helper()
	rec := &store.MediaRecord{
		Path:        path,
		Fingerprint: fp,
		Kind:        mediatypes.KindPhoto,
		CapturedAt:  &captured,
		Latitude:    &lat,
		Longitude:   &lon,
	}
	if _, err := s.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func doRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, s, _ := newTestServer(t)
	seedRecord(t, s, "/m/a.jpg", "fp1", 35.0, 139.0, time.Now())

	rec := doRequest(t, srv, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected healthy, got %s", health.Status)
	}
	if health.TotalRecords != 1 {
		t.Errorf("Expected 1 record, got %d", health.TotalRecords)
	}
}

func TestMapEndpoint(t *testing.T) {
	srv, s, _ := newTestServer(t)
	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	seedRecord(t, s, "/m/a.jpg", "fp1", 35.0, 139.0, base)
	seedRecord(t, s, "/m/b.jpg", "fp2", 35.1, 139.1, base.Add(time.Hour))

	rec := doRequest(t, srv, http.MethodGet, "/api/map")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload mapbuilder.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(payload.Markers) != 2 || len(payload.Route) != 2 {
		t.Errorf("Expected 2 markers and 2 route points, got %d/%d",
			len(payload.Markers), len(payload.Route))
	}
	if payload.Markers[0].Path != "/m/a.jpg" {
		t.Errorf("Expected chronological first marker, got %s", payload.Markers[0].Path)
	}
}

func TestMapEndpointTimeFilter(t *testing.T) {
	srv, s, _ := newTestServer(t)
	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	seedRecord(t, s, "/m/a.jpg", "fp1", 35.0, 139.0, base)
	seedRecord(t, s, "/m/b.jpg", "fp2", 35.1, 139.1, base.Add(48*time.Hour))

	target := fmt.Sprintf("/api/map?from=%s&to=%s",
		base.Add(-time.Hour).Format(time.RFC3339),
		base.Add(time.Hour).Format(time.RFC3339))
	rec := doRequest(t, srv, http.MethodGet, target)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var payload mapbuilder.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(payload.Markers) != 1 {
		t.Errorf("Expected 1 marker in window, got %d", len(payload.Markers))
	}
}

func TestMapEndpointRejectsBadTime(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/map?from=yesterday")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestRecordsEndpoint(t *testing.T) {
	srv, s, _ := newTestServer(t)
	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	seedRecord(t, s, "/m/a.jpg", "fp1", 35.0, 139.0, base)

	rec := doRequest(t, srv, http.MethodGet, "/api/records")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Records []store.MediaRecord `json:"records"`
		Count   int                 `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Count != 1 || len(body.Records) != 1 {
		t.Errorf("Expected 1 record, got count=%d len=%d", body.Count, len(body.Records))
	}
}

func TestRecordsEndpointOpenEndedRange(t *testing.T) {
	srv, s, _ := newTestServer(t)
	seedRecord(t, s, "/m/old.jpg", "fp1", 35.0, 139.0,
		time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	seedRecord(t, s, "/m/future.jpg", "fp2", 35.1, 139.1,
		time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC))

	rec := doRequest(t, srv, http.MethodGet, "/api/records?from=2030-01-01T00:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Records []store.MediaRecord `json:"records"`
		Count   int                 `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Count != 1 || body.Records[0].Path != "/m/future.jpg" {
		t.Errorf("Expected only the post-cutoff record, got %+v", body.Records)
	}
}

func TestScanEndpoints(t *testing.T) {
	srv, _, sc := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/scan")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}

	sc.scanning = true
	rec = doRequest(t, srv, http.MethodPost, "/api/scan")
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 while scanning, got %d", rec.Code)
	}

	sc.last = &scanner.Summary{ScanID: "abc", Processed: 5}
	rec = doRequest(t, srv, http.MethodGet, "/api/scan")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status struct {
		Scanning bool             `json:"scanning"`
		Last     *scanner.Summary `json:"last"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if !status.Scanning || status.Last == nil || status.Last.Processed != 5 {
		t.Errorf("Unexpected scan status: %+v", status)
	}
}

func TestThumbnailEndpoint(t *testing.T) {
	srv, s, _ := newTestServer(t)
	seedRecord(t, s, "/m/a.jpg", "fp1", 35.0, 139.0, time.Now())

	rec := doRequest(t, srv, http.MethodGet, "/api/thumbnail/fp1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", ct)
	}
	if rec.Body.String() != "jpeg-bytes" {
		t.Errorf("Unexpected body: %q", rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/thumbnail/unknown")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown fingerprint, got %d", rec.Code)
	}
}

func TestAttractionsEndpoints(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()

	id, err := s.InsertAttraction(ctx, &store.Attraction{
		Name: "Kinkakuji", Category: "temple", Latitude: 35.0394, Longitude: 135.7292,
	})
	if err != nil {
		t.Fatalf("InsertAttraction failed: %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/attractions")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body struct {
		Attractions []store.Attraction `json:"attractions"`
		Count       int                `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("Expected 1 attraction, got %d", body.Count)
	}

	rec = doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/attractions/%d/visit?date=2024-03-15", id))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/attractions?visited=true")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Count != 1 || !body.Attractions[0].Visited {
		t.Errorf("Expected visited attraction, got %+v", body.Attractions)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/attractions/not-a-number/visit")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad id, got %d", rec.Code)
	}
}

func TestRouteOptimizedEndpoint(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()

	spots := []store.Attraction{
		{Name: "a", Latitude: 35.0, Longitude: 135.0},
		{Name: "b", Latitude: 35.1, Longitude: 135.1},
		{Name: "c", Latitude: 35.2, Longitude: 135.2},
	}
	for i := range spots {
		if _, err := s.InsertAttraction(ctx, &spots[i]); err != nil {
			t.Fatalf("InsertAttraction failed: %v", err)
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/route/optimized")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Locations  []map[string]any `json:"locations"`
		DistanceKm float64          `json:"distanceKm"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(body.Locations) != 3 {
		t.Errorf("Expected 3 locations, got %d", len(body.Locations))
	}
	if body.DistanceKm <= 0 {
		t.Errorf("Expected positive distance, got %f", body.DistanceKm)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/route/optimized?days=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var daily struct {
		Days []map[string]any `json:"days"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &daily); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(daily.Days) != 2 {
		t.Errorf("Expected 2 day plans, got %d", len(daily.Days))
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/route/optimized?days=zero")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad days, got %d", rec.Code)
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/version")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var info map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if info["version"] == "" {
		t.Error("Expected a version field")
	}
}
