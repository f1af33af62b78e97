package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"journeymap/internal/logging"
	"journeymap/internal/mediatypes"
)

// ErrInvalidRecord is returned for records that violate the coordinate
// invariants: a lone latitude/longitude or values outside valid ranges.
var ErrInvalidRecord = errors.New("store: invalid record")

// validateRecord enforces the coordinate invariants before anything touches
// the database. Partial or out-of-range pairs are rejected outright; the
// extractor should have nulled them.
func validateRecord(rec *MediaRecord) error {
	if rec.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRecord)
	}
	if rec.Fingerprint == "" {
		return fmt.Errorf("%w: empty fingerprint", ErrInvalidRecord)
	}
	if (rec.Latitude == nil) != (rec.Longitude == nil) {
		return fmt.Errorf("%w: partial coordinate pair for %s", ErrInvalidRecord, rec.Path)
	}
	if rec.Latitude != nil {
		if *rec.Latitude < -90 || *rec.Latitude > 90 {
			return fmt.Errorf("%w: latitude %f out of range for %s", ErrInvalidRecord, *rec.Latitude, rec.Path)
		}
		if *rec.Longitude < -180 || *rec.Longitude > 180 {
			return fmt.Errorf("%w: longitude %f out of range for %s", ErrInvalidRecord, *rec.Longitude, rec.Path)
		}
	}
	return nil
}

// Upsert inserts or refreshes the record for rec.Path.
//
// Semantics: a path that does not exist is inserted; an existing path is
// replaced only when the fingerprint differs. A matching fingerprint only
// touches the last-seen marker (so a later prune keeps the row), leaving
// record content untouched. Re-scanning an unchanged tree is a no-op.
func (s *Store) Upsert(ctx context.Context, rec *MediaRecord) (UpsertOutcome, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert", start, err) }()

	if err = validateRecord(rec); err != nil {
		return UpsertUnchanged, err
	}

	// Single-writer discipline keeps the check-then-act below atomic.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var id int64
	var existing string
	err = s.db.QueryRowContext(ctx,
		"SELECT id, fingerprint FROM media WHERE path = ?", rec.Path,
	).Scan(&id, &existing)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = s.execWrite("insert", func() error {
			res, execErr := s.db.ExecContext(ctx, `
				INSERT INTO media (path, fingerprint, kind, captured_at, latitude, longitude, thumbnail_ref, location_name)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.Path, rec.Fingerprint, string(rec.Kind),
				nullTime(rec.CapturedAt), rec.Latitude, rec.Longitude,
				nullString(rec.ThumbnailRef), nullString(rec.LocationName),
			)
			if execErr != nil {
				return execErr
			}
			rec.ID, _ = res.LastInsertId()
			return nil
		})
		if err != nil {
			return UpsertUnchanged, err
		}
		return UpsertInserted, nil

	case err != nil:
		return UpsertUnchanged, err
	}

	rec.ID = id

	if existing == rec.Fingerprint {
		err = s.execWrite("touch", func() error {
			_, execErr := s.db.ExecContext(ctx,
				"UPDATE media SET last_seen = strftime('%s', 'now') WHERE id = ?", id)
			return execErr
		})
		if err != nil {
			return UpsertUnchanged, err
		}
		return UpsertUnchanged, nil
	}

	logging.Debug("Fingerprint changed for %s, replacing record", rec.Path)
	err = s.execWrite("update", func() error {
		_, execErr := s.db.ExecContext(ctx, `
			UPDATE media SET
				fingerprint = ?,
				kind = ?,
				captured_at = ?,
				latitude = ?,
				longitude = ?,
				thumbnail_ref = ?,
				location_name = ?,
				updated_at = strftime('%s', 'now'),
				last_seen = strftime('%s', 'now')
			WHERE id = ?`,
			rec.Fingerprint, string(rec.Kind),
			nullTime(rec.CapturedAt), rec.Latitude, rec.Longitude,
			nullString(rec.ThumbnailRef), nullString(rec.LocationName), id,
		)
		return execErr
	})
	if err != nil {
		return UpsertUnchanged, err
	}
	return UpsertUpdated, nil
}

// GetByPath retrieves a single record by path. Returns nil without error
// when no record exists.
func (s *Store) GetByPath(ctx context.Context, path string) (*MediaRecord, error) {
	return s.getOne(ctx, "get_by_path", "path", path)
}

// GetByFingerprint retrieves a single record by content fingerprint.
// Returns nil without error when no record exists.
func (s *Store) GetByFingerprint(ctx context.Context, fingerprint string) (*MediaRecord, error) {
	return s.getOne(ctx, "get_by_fingerprint", "fingerprint", fingerprint)
}

func (s *Store) getOne(ctx context.Context, operation, column, value string) (*MediaRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(operation, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, selectColumns+" FROM media WHERE "+column+" = ?", value)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByCapture returns all records ordered by capture time ascending with
// null timestamps last; insertion order breaks ties.
func (s *Store) ListByCapture(ctx context.Context) ([]MediaRecord, error) {
	return s.queryRecords(ctx, "list_by_capture",
		selectColumns+` FROM media
		ORDER BY captured_at IS NULL, captured_at ASC, id ASC`)
}

// RangeByCapture returns records captured within [from, to] inclusive. A nil
// bound leaves that side open. Records without a capture timestamp are
// excluded from range queries.
func (s *Store) RangeByCapture(ctx context.Context, from, to *time.Time) ([]MediaRecord, error) {
	query := selectColumns + " FROM media WHERE captured_at IS NOT NULL"
	args := []interface{}{}

	if from != nil {
		query += " AND captured_at >= ?"
		args = append(args, from.Unix())
	}
	if to != nil {
		query += " AND captured_at <= ?"
		args = append(args, to.Unix())
	}
	query += " ORDER BY captured_at ASC, id ASC"

	return s.queryRecords(ctx, "range_by_capture", query, args...)
}

// ListWithCoordinates returns records carrying GPS coordinates, time-ordered
// the same way as ListByCapture. A non-nil from/to additionally restricts the
// capture time (records without a timestamp are then excluded).
func (s *Store) ListWithCoordinates(ctx context.Context, from, to *time.Time) ([]MediaRecord, error) {
	query := selectColumns + " FROM media WHERE latitude IS NOT NULL"
	args := []interface{}{}

	if from != nil {
		query += " AND captured_at IS NOT NULL AND captured_at >= ?"
		args = append(args, from.Unix())
	}
	if to != nil {
		query += " AND captured_at IS NOT NULL AND captured_at <= ?"
		args = append(args, to.Unix())
	}
	query += " ORDER BY captured_at IS NULL, captured_at ASC, id ASC"

	return s.queryRecords(ctx, "list_with_coordinates", query, args...)
}

// ListMissingLocationNames returns up to limit records that have coordinates
// but no reverse-geocoded location name yet.
func (s *Store) ListMissingLocationNames(ctx context.Context, limit int) ([]MediaRecord, error) {
	return s.queryRecords(ctx, "list_missing_location_names",
		selectColumns+` FROM media
		WHERE latitude IS NOT NULL AND (location_name IS NULL OR location_name = '')
		ORDER BY id ASC LIMIT ?`, limit)
}

// SetThumbnailRef records the thumbnail cache key for a path.
func (s *Store) SetThumbnailRef(ctx context.Context, path, ref string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_thumbnail_ref", start, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = s.execWrite("set_thumbnail_ref", func() error {
		_, execErr := s.db.ExecContext(ctx,
			"UPDATE media SET thumbnail_ref = ? WHERE path = ?", ref, path)
		return execErr
	})
	return err
}

// SetLocationName records the reverse-geocoded name for a record.
func (s *Store) SetLocationName(ctx context.Context, id int64, name string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_location_name", start, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = s.execWrite("set_location_name", func() error {
		_, execErr := s.db.ExecContext(ctx,
			"UPDATE media SET location_name = ? WHERE id = ?", name, id)
		return execErr
	})
	return err
}

// PruneNotSeenSince removes records whose files were not seen by the scan
// that started at cutoff. Only a completed re-scan should call this.
func (s *Store) PruneNotSeenSince(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("prune", start, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var deleted int64
	err = s.execWrite("prune", func() error {
		res, execErr := s.db.ExecContext(ctx,
			"DELETE FROM media WHERE last_seen < ?", cutoff.Unix())
		if execErr != nil {
			return execErr
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logging.Info("Pruned %d records for files no longer present", deleted)
	}
	return deleted, nil
}

// Count returns the number of media records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media").Scan(&n)
	return n, err
}

const selectColumns = `SELECT id, path, fingerprint, kind, captured_at, latitude, longitude, thumbnail_ref, location_name`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*MediaRecord, error) {
	var rec MediaRecord
	var kind string
	var capturedAt sql.NullInt64
	var lat, lon sql.NullFloat64
	var thumbRef, locName sql.NullString

	if err := row.Scan(&rec.ID, &rec.Path, &rec.Fingerprint, &kind,
		&capturedAt, &lat, &lon, &thumbRef, &locName); err != nil {
		return nil, err
	}

	rec.Kind = mediatypes.Kind(kind)
	if capturedAt.Valid {
		t := time.Unix(capturedAt.Int64, 0).UTC()
		rec.CapturedAt = &t
	}
	if lat.Valid && lon.Valid {
		rec.Latitude = &lat.Float64
		rec.Longitude = &lon.Float64
	}
	rec.ThumbnailRef = thumbRef.String
	rec.LocationName = locName.String

	return &rec, nil
}

func (s *Store) queryRecords(ctx context.Context, operation, query string, args ...interface{}) ([]MediaRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(operation, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MediaRecord
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		records = append(records, *rec)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return records, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
