package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"journeymap/internal/mapbuilder"
	"journeymap/internal/middleware"
	"journeymap/internal/scanner"
	"journeymap/internal/store"
)

// Scanner is the scan control surface the API needs.
type Scanner interface {
	Scan(ctx context.Context) (*scanner.Summary, error)
	IsScanning() bool
	LastSummary() *scanner.Summary
}

// Thumbnailer serves cached thumbnails.
type Thumbnailer interface {
	Get(filePath, fingerprint string) ([]byte, error)
	IsEnabled() bool
}

// Config controls optional API surfaces.
type Config struct {
	MetricsEnabled  bool
	LogHealthChecks bool
}

// Server wires the pipeline components behind the HTTP API.
type Server struct {
	store   *store.Store
	scanner Scanner
	builder *mapbuilder.Builder
	thumbs  Thumbnailer
	config  Config
	started time.Time
}

func New(s *store.Store, sc Scanner, builder *mapbuilder.Builder, thumbs Thumbnailer, config Config) *Server {
	return &Server{
		store:   s,
		scanner: sc,
		builder: builder,
		thumbs:  thumbs,
		config:  config,
		started: time.Now(),
	}
}

// Router builds the full route table with logging and metrics middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logger(middleware.LoggingConfig{
		LogHealthChecks: s.config.LogHealthChecks,
	}))
	if s.config.MetricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/map", s.handleMap).Methods(http.MethodGet)
	api.HandleFunc("/records", s.handleRecords).Methods(http.MethodGet)
	api.HandleFunc("/scan", s.handleScanStart).Methods(http.MethodPost)
	api.HandleFunc("/scan", s.handleScanStatus).Methods(http.MethodGet)
	api.HandleFunc("/thumbnail/{fingerprint}", s.handleThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/attractions", s.handleAttractionsList).Methods(http.MethodGet)
	api.HandleFunc("/attractions/import", s.handleAttractionsImport).Methods(http.MethodPost)
	api.HandleFunc("/attractions/auto-visit", s.handleAttractionsAutoVisit).Methods(http.MethodPost)
	api.HandleFunc("/attractions/{id}/visit", s.handleAttractionVisit).Methods(http.MethodPost)
	api.HandleFunc("/route/optimized", s.handleRouteOptimized).Methods(http.MethodGet)

	return r
}
