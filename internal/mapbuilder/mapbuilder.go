package mapbuilder

import (
	"context"
	"sort"
	"time"

	"journeymap/internal/logging"
	"journeymap/internal/store"
)

// Fallback map view when no geotagged records exist. Tokyo.
const (
	defaultCenterLat = 35.6762
	defaultCenterLon = 139.6503
	defaultZoom      = 10
)

// Marker is one geotagged record on the map.
type Marker struct {
	RecordID     int64      `json:"recordId"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	CapturedAt   *time.Time `json:"capturedAt,omitempty"`
	Kind         string     `json:"kind"`
	Path         string     `json:"path"`
	ThumbnailRef string     `json:"thumbnailRef,omitempty"`
	LocationName string     `json:"locationName,omitempty"`
}

// Point is a single route coordinate.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Payload is the complete map description handed to a rendering client.
type Payload struct {
	Markers   []Marker `json:"markers"`
	Route     []Point  `json:"route"`
	CenterLat float64  `json:"centerLat"`
	CenterLon float64  `json:"centerLon"`
	Zoom      int      `json:"zoom"`
}

// Builder reads records from the store and assembles map payloads.
type Builder struct {
	store *store.Store
}

func New(s *store.Store) *Builder {
	return &Builder{store: s}
}

// Build assembles the payload for records captured in [from, to]. Nil
// bounds mean unbounded. Records without coordinates are excluded.
func (b *Builder) Build(ctx context.Context, from, to *time.Time) (*Payload, error) {
	records, err := b.store.ListWithCoordinates(ctx, from, to)
	if err != nil {
		return nil, err
	}
	payload := BuildFromRecords(records)
	logging.Debug("Map payload: %d markers, zoom %d", len(payload.Markers), payload.Zoom)
	return payload, nil
}

// BuildFromRecords assembles the payload from an already-loaded record set.
// Input order is preserved for records sharing a capture time; records with
// no capture time sort last.
func BuildFromRecords(records []store.MediaRecord) *Payload {
	coords := make([]store.MediaRecord, 0, len(records))
	for _, rec := range records {
		if rec.HasCoordinates() {
			coords = append(coords, rec)
		}
	}

	sort.SliceStable(coords, func(i, j int) bool {
		a, b := coords[i].CapturedAt, coords[j].CapturedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	payload := &Payload{
		Markers: make([]Marker, 0, len(coords)),
		Route:   make([]Point, 0, len(coords)),
	}

	for _, rec := range coords {
		payload.Markers = append(payload.Markers, Marker{
			RecordID:     rec.ID,
			Latitude:     *rec.Latitude,
			Longitude:    *rec.Longitude,
			CapturedAt:   rec.CapturedAt,
			Kind:         string(rec.Kind),
			Path:         rec.Path,
			ThumbnailRef: rec.ThumbnailRef,
			LocationName: rec.LocationName,
		})
		payload.Route = append(payload.Route, Point{
			Latitude:  *rec.Latitude,
			Longitude: *rec.Longitude,
		})
	}

	payload.CenterLat, payload.CenterLon = center(coords)
	payload.Zoom = zoomLevel(coords)
	return payload
}

// center is the mean of all marker coordinates, falling back to the
// default view when there are none.
func center(records []store.MediaRecord) (float64, float64) {
	if len(records) == 0 {
		return defaultCenterLat, defaultCenterLon
	}
	var latSum, lonSum float64
	for _, rec := range records {
		latSum += *rec.Latitude
		lonSum += *rec.Longitude
	}
	n := float64(len(records))
	return latSum / n, lonSum / n
}

// zoomLevel picks an initial zoom from the coordinate spread in degrees.
func zoomLevel(records []store.MediaRecord) int {
	if len(records) < 2 {
		return defaultZoom
	}

	minLat, maxLat := *records[0].Latitude, *records[0].Latitude
	minLon, maxLon := *records[0].Longitude, *records[0].Longitude
	for _, rec := range records[1:] {
		if *rec.Latitude < minLat {
			minLat = *rec.Latitude
		}
		if *rec.Latitude > maxLat {
			maxLat = *rec.Latitude
		}
		if *rec.Longitude < minLon {
			minLon = *rec.Longitude
		}
		if *rec.Longitude > maxLon {
			maxLon = *rec.Longitude
		}
	}

	maxRange := maxLat - minLat
	if lonRange := maxLon - minLon; lonRange > maxRange {
		maxRange = lonRange
	}

	switch {
	case maxRange > 10:
		return 5
	case maxRange > 5:
		return 6
	case maxRange > 2:
		return 7
	case maxRange > 1:
		return 8
	case maxRange > 0.5:
		return 9
	case maxRange > 0.2:
		return 10
	case maxRange > 0.1:
		return 11
	case maxRange > 0.05:
		return 12
	default:
		return 13
	}
}
