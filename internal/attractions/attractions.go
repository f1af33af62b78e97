package attractions

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"journeymap/internal/logging"
	"journeymap/internal/route"
	"journeymap/internal/store"
)

// visitThresholdKm is how close a photo must be to an attraction to count
// as a visit.
const visitThresholdKm = 0.5

// ImportCSV loads attractions from a CSV file with a header row. Required
// columns: name, latitude, longitude. Optional: name_en, category,
// description, rating, prefecture, city. Rows with missing or malformed
// required fields are skipped with a warning. Returns the imported count.
func ImportCSV(ctx context.Context, s *store.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open attractions csv: %w", err)
	}
	defer f.Close()

	return importCSV(ctx, s, f)
}

func importCSV(ctx context.Context, s *store.Store, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"name", "latitude", "longitude"} {
		if _, ok := col[required]; !ok {
			return 0, fmt.Errorf("csv missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	imported := 0
	skipped := 0

	for {
		if ctx.Err() != nil {
			return imported, ctx.Err()
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logging.Warn("Skipping malformed csv row: %v", err)
			skipped++
			continue
		}

		name := field(row, "name")
		lat, latErr := strconv.ParseFloat(field(row, "latitude"), 64)
		lon, lonErr := strconv.ParseFloat(field(row, "longitude"), 64)
		if name == "" || latErr != nil || lonErr != nil {
			logging.Warn("Skipping attraction row %q: bad name or coordinates", name)
			skipped++
			continue
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			logging.Warn("Skipping attraction %q: coordinates out of range", name)
			skipped++
			continue
		}

		a := &store.Attraction{
			Name:        name,
			NameEn:      field(row, "name_en"),
			Category:    field(row, "category"),
			Latitude:    lat,
			Longitude:   lon,
			Description: field(row, "description"),
			Source:      "csv_import",
		}
		if raw := field(row, "rating"); raw != "" {
			if rating, err := strconv.ParseFloat(raw, 64); err == nil {
				a.Rating = &rating
			}
		}

		if _, err := s.InsertAttraction(ctx, a); err != nil {
			logging.Warn("Failed to insert attraction %q: %v", name, err)
			skipped++
			continue
		}
		imported++
	}

	logging.Info("Attraction import complete: %d imported, %d skipped", imported, skipped)
	return imported, nil
}

// AutoMarkVisited marks unvisited attractions as visited when any geotagged
// photo lies within the distance threshold. The visit date comes from the
// photo's capture time. Returns the number of attractions updated.
func AutoMarkVisited(ctx context.Context, s *store.Store) (int, error) {
	photos, err := s.ListWithCoordinates(ctx, nil, nil)
	if err != nil {
		return 0, err
	}
	if len(photos) == 0 {
		logging.Info("No geotagged media, skipping visit detection")
		return 0, nil
	}

	unvisited := false
	candidates, err := s.ListAttractions(ctx, "", &unvisited)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, a := range candidates {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}

		for _, photo := range photos {
			d := route.Haversine(a.Latitude, a.Longitude, *photo.Latitude, *photo.Longitude)
			if d > visitThresholdKm {
				continue
			}

			visitDate := ""
			if photo.CapturedAt != nil {
				visitDate = photo.CapturedAt.Format(time.RFC3339)
			}
			if err := s.MarkAttractionVisited(ctx, a.ID, visitDate); err != nil {
				logging.Warn("Failed to mark %q visited: %v", a.Name, err)
				break
			}
			logging.Info("Marked %q visited (%.2f km from photo)", a.Name, d)
			updated++
			break
		}
	}

	logging.Info("Visit detection complete: %d attractions updated", updated)
	return updated, nil
}
