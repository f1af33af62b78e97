package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"journeymap/internal/attractions"
	"journeymap/internal/extract"
	"journeymap/internal/geocode"
	"journeymap/internal/logging"
	"journeymap/internal/mapbuilder"
	"journeymap/internal/scanner"
	"journeymap/internal/server"
	"journeymap/internal/startup"
	"journeymap/internal/store"
	"journeymap/internal/thumbs"
)

const (
	geocodeBackfillInterval = 10 * time.Minute
	geocodeBackfillBatch    = 50
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	if config.LogToFile {
		if err := logging.EnableFileOutput(config.LogDir); err != nil {
			logging.Warn("File logging disabled: %v", err)
		}
	}

	// Initialize store
	storeStart := time.Now()
	db, err := store.New(context.Background(), config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize store: %v", err)
	}
	defer db.Close()
	startup.LogStoreInit(time.Since(storeStart))

	// Initialize extraction pipeline
	ext := extract.New()
	gen := thumbs.NewGenerator(config.ThumbnailDir, config.ThumbnailsEnabled)

	scanConfig := scanner.DefaultConfig(config.MediaDir)
	sc := scanner.New(db, ext, scanConfig)
	startup.LogScannerInit(scanConfig.NumWorkers, config.ScanOnStart, config.Watch)

	// Seed attractions before the first scan so auto-visit detection has
	// something to match against.
	if config.AttractionsCSV != "" {
		imported, err := attractions.ImportCSV(context.Background(), db, config.AttractionsCSV)
		if err != nil {
			logging.Warn("Attraction import failed: %v", err)
		} else {
			logging.Info("Imported %d attractions from %s", imported, config.AttractionsCSV)
		}
	}

	// Background workers share a context cancelled on shutdown.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Refresh connection-pool metrics periodically
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-bgCtx.Done():
				return
			case <-ticker.C:
				db.UpdateConnMetrics()
			}
		}
	}()

	if config.ScanOnStart {
		go func() {
			summary, err := sc.Scan(bgCtx)
			if err != nil {
				logging.Error("Initial scan failed: %v", err)
				return
			}
			logging.Info("Initial scan complete: %d processed, %d unchanged, %d failed, %d pruned",
				summary.Processed, summary.Unchanged, summary.Failed, summary.Pruned)

			updated, err := attractions.AutoMarkVisited(bgCtx, db)
			if err != nil {
				logging.Warn("Auto-visit detection failed: %v", err)
			} else if updated > 0 {
				logging.Info("Marked %d attractions visited from photo locations", updated)
			}
		}()
	}

	if config.Watch {
		go func() {
			if err := sc.Watch(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("Directory watcher stopped: %v", err)
			}
		}()
	}

	if config.GeocodeEnabled {
		geocoder := geocode.New(config.DataDir, config.GeocodeURL)
		go runGeocodeBackfill(bgCtx, geocoder, db)
	}

	// Assemble HTTP layer
	srv := server.New(db, sc, mapbuilder.New(db), gen, server.Config{
		MetricsEnabled: config.MetricsEnabled,
	})

	httpServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(httpServer, bgCancel)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

// runGeocodeBackfill periodically resolves location names for records that
// have coordinates but no name yet. One pass runs immediately on startup.
func runGeocodeBackfill(ctx context.Context, g *geocode.Geocoder, db *store.Store) {
	ticker := time.NewTicker(geocodeBackfillInterval)
	defer ticker.Stop()

	for {
		resolved, err := g.Backfill(ctx, db, geocodeBackfillBatch)
		if err != nil {
			logging.Warn("Geocode backfill failed: %v", err)
		} else if resolved > 0 {
			logging.Info("Geocode backfill resolved %d location names", resolved)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func handleShutdown(srv *http.Server, cancelBackground context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	cancelBackground()
	startup.LogShutdownStepComplete("Background workers stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
