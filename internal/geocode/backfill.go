package geocode

import (
	"context"
	"fmt"

	"journeymap/internal/logging"
	"journeymap/internal/store"
)

// Backfill resolves place names for geotagged records that have none yet,
// up to limit records. Returns the number updated. Individual lookup
// failures are logged and skipped.
func (g *Geocoder) Backfill(ctx context.Context, s *store.Store, limit int) (int, error) {
	records, err := s.ListMissingLocationNames(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	logging.Info("Backfilling location names for %d records", len(records))

	updated := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}

		place, err := g.Reverse(ctx, *rec.Latitude, *rec.Longitude)
		if err != nil {
			logging.Warn("Geocode failed for record %d: %v", rec.ID, err)
			continue
		}

		name := place.City
		if name == "" {
			name = place.DisplayName
		}
		if name == "" {
			// Nothing useful came back (open ocean, bare coordinates).
			// Label with the coordinates so the record is settled and
			// not re-queried on every pass.
			name = fmt.Sprintf("%.2f, %.2f", *rec.Latitude, *rec.Longitude)
		}

		if err := s.SetLocationName(ctx, rec.ID, name); err != nil {
			logging.Warn("Failed to store location name for record %d: %v", rec.ID, err)
			continue
		}
		updated++
	}

	logging.Info("Location name backfill complete: %d updated", updated)
	return updated, nil
}
