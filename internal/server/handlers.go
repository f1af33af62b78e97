package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"journeymap/internal/attractions"
	"journeymap/internal/logging"
	"journeymap/internal/route"
	"journeymap/internal/scanner"
	"journeymap/internal/startup"
	"journeymap/internal/store"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	Scanning     bool   `json:"scanning"`
	TotalRecords int64  `json:"totalRecords"`
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	status := "healthy"
	if err != nil {
		status = "degraded"
		logging.Warn("Health check: store count failed: %v", err)
	}

	writeJSON(w, HealthResponse{
		Status:       status,
		Version:      startup.Version,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Scanning:     s.scanner.IsScanning(),
		TotalRecords: count,
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, startup.GetBuildInfo())
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeJSONError(w, "invalid from parameter, expected RFC 3339", http.StatusBadRequest)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeJSONError(w, "invalid to parameter, expected RFC 3339", http.StatusBadRequest)
		return
	}

	payload, err := s.builder.Build(r.Context(), from, to)
	if err != nil {
		logging.Error("Map build failed: %v", err)
		writeJSONError(w, "failed to build map", http.StatusInternalServerError)
		return
	}
	writeJSON(w, payload)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeJSONError(w, "invalid from parameter, expected RFC 3339", http.StatusBadRequest)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeJSONError(w, "invalid to parameter, expected RFC 3339", http.StatusBadRequest)
		return
	}

	var records []store.MediaRecord
	if from == nil && to == nil {
		records, err = s.store.ListByCapture(r.Context())
	} else {
		records, err = s.store.RangeByCapture(r.Context(), from, to)
	}
	if err != nil {
		logging.Error("Record listing failed: %v", err)
		writeJSONError(w, "failed to list records", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	if s.scanner.IsScanning() {
		writeJSONError(w, "scan already running", http.StatusConflict)
		return
	}

	// Scans outlive the request; run detached and report acceptance.
	go func() {
		if _, err := s.scanner.Scan(context.Background()); err != nil && !errors.Is(err, scanner.ErrScanInProgress) {
			logging.Error("Background scan failed: %v", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "scan started"})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]interface{}{
		"scanning": s.scanner.IsScanning(),
		"last":     s.scanner.LastSummary(),
	})
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	if s.thumbs == nil || !s.thumbs.IsEnabled() {
		writeJSONError(w, "thumbnails disabled", http.StatusNotFound)
		return
	}

	fingerprint := mux.Vars(r)["fingerprint"]
	rec, err := s.store.GetByFingerprint(r.Context(), fingerprint)
	if err != nil {
		logging.Error("Thumbnail lookup failed: %v", err)
		writeJSONError(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		writeJSONError(w, "unknown fingerprint", http.StatusNotFound)
		return
	}

	data, err := s.thumbs.Get(rec.Path, rec.Fingerprint)
	if err != nil {
		logging.Warn("Thumbnail generation failed for %s: %v", rec.Path, err)
		writeJSONError(w, "thumbnail unavailable", http.StatusNotFound)
		return
	}

	// Record the cache key so map payloads can advertise the thumbnail.
	if rec.ThumbnailRef == "" {
		if err := s.store.SetThumbnailRef(r.Context(), rec.Path, rec.Fingerprint); err != nil {
			logging.Debug("Failed to record thumbnail ref for %s: %v", rec.Path, err)
		}
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Thumbnail write failed: %v", err)
	}
}

func (s *Server) handleAttractionsList(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	var visited *bool
	if raw := r.URL.Query().Get("visited"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSONError(w, "invalid visited parameter", http.StatusBadRequest)
			return
		}
		visited = &v
	}

	list, err := s.store.ListAttractions(r.Context(), category, visited)
	if err != nil {
		logging.Error("Attraction listing failed: %v", err)
		writeJSONError(w, "failed to list attractions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"attractions": list,
		"count":       len(list),
	})
}

func (s *Server) handleAttractionsImport(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSONError(w, "missing path parameter", http.StatusBadRequest)
		return
	}

	imported, err := attractions.ImportCSV(r.Context(), s.store, path)
	if err != nil {
		logging.Error("Attraction import failed: %v", err)
		writeJSONError(w, fmt.Sprintf("import failed: %v", err), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]int{"imported": imported})
}

func (s *Server) handleAttractionsAutoVisit(w http.ResponseWriter, r *http.Request) {
	updated, err := attractions.AutoMarkVisited(r.Context(), s.store)
	if err != nil {
		logging.Error("Auto-visit detection failed: %v", err)
		writeJSONError(w, "auto-visit failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"updated": updated})
}

func (s *Server) handleAttractionVisit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid attraction id", http.StatusBadRequest)
		return
	}

	visitDate := r.URL.Query().Get("date")
	if visitDate == "" {
		visitDate = time.Now().UTC().Format(time.RFC3339)
	}

	if err := s.store.MarkAttractionVisited(r.Context(), id, visitDate); err != nil {
		logging.Error("Mark visited failed: %v", err)
		writeJSONError(w, "failed to mark visited", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "visited"})
}

func (s *Server) handleRouteOptimized(w http.ResponseWriter, r *http.Request) {
	var visited *bool
	if raw := r.URL.Query().Get("visited"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSONError(w, "invalid visited parameter", http.StatusBadRequest)
			return
		}
		visited = &v
	}

	list, err := s.store.ListAttractions(r.Context(), r.URL.Query().Get("category"), visited)
	if err != nil {
		logging.Error("Attraction listing failed: %v", err)
		writeJSONError(w, "failed to list attractions", http.StatusInternalServerError)
		return
	}

	locations := make([]route.Location, len(list))
	for i, a := range list {
		locations[i] = route.Location{
			ID:        a.ID,
			Name:      a.Name,
			Latitude:  a.Latitude,
			Longitude: a.Longitude,
		}
	}

	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			writeJSONError(w, "invalid days parameter", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]interface{}{"days": route.SplitByDays(locations, days)})
		return
	}

	ordered, distance := route.Optimize(locations, 0, route.MethodAuto)
	writeJSON(w, map[string]interface{}{
		"locations":       ordered,
		"distanceKm":      distance,
		"travelTimeHours": route.EstimateTravelTime(distance, 0),
	})
}
