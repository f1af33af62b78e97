package store

import (
	"time"

	"journeymap/internal/mediatypes"
)

// MediaRecord is the normalized shape every scanned file is reduced to.
// Coordinates are either both present or both nil; the extractor nulls
// malformed GPS data before it gets here and the schema enforces the pairing.
type MediaRecord struct {
	ID           int64           `json:"id"`
	Path         string          `json:"path"`
	Fingerprint  string          `json:"-"`
	Kind         mediatypes.Kind `json:"kind"`
	CapturedAt   *time.Time      `json:"capturedAt,omitempty"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	ThumbnailRef string          `json:"thumbnailRef,omitempty"`
	LocationName string          `json:"locationName,omitempty"`
}

// HasCoordinates reports whether the record carries a usable GPS pair.
func (r *MediaRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// UpsertOutcome describes what an Upsert call did.
type UpsertOutcome int

const (
	// UpsertInserted means a new record was created.
	UpsertInserted UpsertOutcome = iota
	// UpsertUpdated means an existing record was replaced (fingerprint changed).
	UpsertUpdated
	// UpsertUnchanged means the fingerprint matched and only the last-seen
	// marker was touched.
	UpsertUnchanged
)

// String returns the outcome name for logging.
func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	case UpsertUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Attraction is a point of interest imported from CSV, optionally marked
// visited when a photo was taken nearby.
type Attraction struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	NameEn      string   `json:"nameEn,omitempty"`
	Category    string   `json:"category,omitempty"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Description string   `json:"description,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Visited     bool     `json:"visited"`
	VisitDate   string   `json:"visitDate,omitempty"`
	Source      string   `json:"source,omitempty"`
}
