package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"journeymap/internal/logging"
	"journeymap/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrWriteConflict is returned when a write still fails after the single
// retry on a busy/locked database. The caller logs and skips the record.
var ErrWriteConflict = errors.New("store: write conflict")

// Store manages all database operations for the album pipeline.
type Store struct {
	db      *sql.DB
	dbPath  string
	writeMu sync.Mutex
}

// New opens (creating if necessary) the SQLite database at dbPath and
// initializes the schema. The parent directory must already exist.
func New(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode keeps readers unblocked while a scan writes;
	// busy_timeout helps prevent "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Multiple readers, single writer
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	-- Media records, one per scanned file
	CREATE TABLE IF NOT EXISTS media (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		fingerprint TEXT NOT NULL,
		kind TEXT NOT NULL,
		captured_at INTEGER,
		latitude REAL,
		longitude REAL,
		thumbnail_ref TEXT,
		location_name TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		last_seen INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		CHECK ((latitude IS NULL) = (longitude IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_media_captured_at ON media(captured_at);
	CREATE INDEX IF NOT EXISTS idx_media_kind ON media(kind);
	CREATE INDEX IF NOT EXISTS idx_media_location ON media(latitude, longitude);
	CREATE INDEX IF NOT EXISTS idx_media_last_seen ON media(last_seen);

	-- Attractions imported from CSV
	CREATE TABLE IF NOT EXISTS attractions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		name_en TEXT,
		category TEXT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		description TEXT,
		rating REAL,
		visited INTEGER NOT NULL DEFAULT 0,
		visit_date TEXT,
		source TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_attractions_location ON attractions(latitude, longitude);
	CREATE INDEX IF NOT EXISTS idx_attractions_category ON attractions(category);
	CREATE INDEX IF NOT EXISTS idx_attractions_visited ON attractions(visited);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return s.runMigrations(ctx)
}

// runMigrations applies database schema migrations
func (s *Store) runMigrations(ctx context.Context) error {
	// Migration 1: add location_name to media tables created before
	// reverse geocoding existed
	var columnExists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('media')
		WHERE name='location_name'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for location_name column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding location_name column to media table")
		_, err = s.db.ExecContext(ctx, `
			ALTER TABLE media ADD COLUMN location_name TEXT
		`)
		if err != nil {
			return fmt.Errorf("failed to add location_name column: %w", err)
		}
		logging.Info("Migration complete: location_name column added")
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpdateConnMetrics updates database connection metrics.
func (s *Store) UpdateConnMetrics() {
	stats := s.db.Stats()
	metrics.StoreConnectionsOpen.Set(float64(stats.OpenConnections))
}

// Vacuum optimizes the database.
func (s *Store) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records store query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(duration)
}

// isBusy reports whether err is a transient SQLite busy/locked error.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// execWrite runs fn, retrying exactly once on a busy/locked error. A second
// failure is wrapped in ErrWriteConflict so callers can log and skip.
func (s *Store) execWrite(operation string, fn func() error) error {
	err := fn()
	if err == nil || !isBusy(err) {
		return err
	}

	metrics.StoreWriteConflicts.Inc()
	logging.Warn("Write conflict on %s, retrying once: %v", operation, err)
	time.Sleep(50 * time.Millisecond)

	if err = fn(); err != nil {
		if isBusy(err) {
			return fmt.Errorf("%w: %s: %v", ErrWriteConflict, operation, err)
		}
		return err
	}
	return nil
}
