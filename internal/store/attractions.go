package store

import (
	"context"
	"database/sql"
	"time"
)

// InsertAttraction adds an attraction point, returning its id.
func (s *Store) InsertAttraction(ctx context.Context, a *Attraction) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_attraction", start, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var id int64
	err = s.execWrite("insert_attraction", func() error {
		res, execErr := s.db.ExecContext(ctx, `
			INSERT INTO attractions (name, name_en, category, latitude, longitude, description, rating, visited, visit_date, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.Name, nullString(a.NameEn), nullString(a.Category),
			a.Latitude, a.Longitude, nullString(a.Description),
			a.Rating, boolToInt(a.Visited), nullString(a.VisitDate), nullString(a.Source),
		)
		if execErr != nil {
			return execErr
		}
		id, _ = res.LastInsertId()
		return nil
	})
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

// ListAttractions returns attractions, optionally filtered by category
// and/or visited state (nil means no filter).
func (s *Store) ListAttractions(ctx context.Context, category string, visited *bool) ([]Attraction, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_attractions", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT id, name, name_en, category, latitude, longitude, description, rating, visited, visit_date, source
		FROM attractions WHERE 1=1`
	args := []interface{}{}

	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	if visited != nil {
		query += " AND visited = ?"
		args = append(args, boolToInt(*visited))
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attractions []Attraction
	for rows.Next() {
		var a Attraction
		var nameEn, category, description, visitDate, source sql.NullString
		var rating sql.NullFloat64
		var visitedInt int

		if scanErr := rows.Scan(&a.ID, &a.Name, &nameEn, &category,
			&a.Latitude, &a.Longitude, &description, &rating,
			&visitedInt, &visitDate, &source); scanErr != nil {
			err = scanErr
			return nil, err
		}

		a.NameEn = nameEn.String
		a.Category = category.String
		a.Description = description.String
		if rating.Valid {
			a.Rating = &rating.Float64
		}
		a.Visited = visitedInt != 0
		a.VisitDate = visitDate.String
		a.Source = source.String

		attractions = append(attractions, a)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return attractions, nil
}

// MarkAttractionVisited flags an attraction as visited on the given date.
func (s *Store) MarkAttractionVisited(ctx context.Context, id int64, visitDate string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_attraction_visited", start, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = s.execWrite("mark_attraction_visited", func() error {
		_, execErr := s.db.ExecContext(ctx,
			"UPDATE attractions SET visited = 1, visit_date = ? WHERE id = ?",
			nullString(visitDate), id)
		return execErr
	})
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
