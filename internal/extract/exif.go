package extract

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"journeymap/internal/logging"
	"journeymap/internal/metrics"
	"journeymap/internal/store"
)

// exifTimeLayout is the timestamp format embedded in EXIF tags.
const exifTimeLayout = "2006:01:02 15:04:05"

// extractPhoto fills rec from embedded EXIF tags. A photo without EXIF data
// is not an error; it produces a record with null coordinates and timestamp.
// A file that is not a decodable image at all is ErrUnreadableMedia.
func (e *Extractor) extractPhoto(path string, rec *store.MediaRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreadableMedia, path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// No EXIF block. Decide between "photo without metadata" and
		// "not actually a photo" by sniffing the header.
		format, sniffErr := sniffImageFormat(path)
		if sniffErr != nil || format == "" {
			return fmt.Errorf("%w: %s: %v", ErrUnreadableMedia, path, err)
		}
		logging.Debug("No EXIF data in %s (%s), storing null metadata", path, format)
		return nil
	}

	if t, ok := exifCaptureTime(x); ok {
		rec.CapturedAt = &t
	}

	lat, lon, err := exifCoordinates(x)
	if err != nil {
		// Malformed GPS tags are treated as absent, never stored partially.
		metrics.ExtractInvalidCoordinates.Inc()
		logging.Warn("Invalid GPS tags in %s: %v", path, err)
		return nil
	}
	if lat != nil && lon != nil {
		rec.Latitude = lat
		rec.Longitude = lon
	}
	return nil
}

// exifCaptureTime reads DateTimeOriginal, falling back to DateTime.
func exifCaptureTime(x *exif.Exif) (time.Time, bool) {
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := time.Parse(exifTimeLayout, strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

// exifCoordinates converts the GPS tag set to signed decimal degrees.
// Returns (nil, nil, nil) when no GPS tags are present, and
// ErrInvalidCoordinates when tags exist but are malformed.
func exifCoordinates(x *exif.Exif) (*float64, *float64, error) {
	latTag, latErr := x.Get(exif.GPSLatitude)
	lonTag, lonErr := x.Get(exif.GPSLongitude)
	if latErr != nil && lonErr != nil {
		return nil, nil, nil
	}
	if latErr != nil || lonErr != nil {
		return nil, nil, fmt.Errorf("%w: lone coordinate tag", ErrInvalidCoordinates)
	}

	latRef, err := refString(x, exif.GPSLatitudeRef)
	if err != nil {
		return nil, nil, err
	}
	lonRef, err := refString(x, exif.GPSLongitudeRef)
	if err != nil {
		return nil, nil, err
	}

	lat, err := dmsTagToDecimal(latTag, latRef, "N", "S", 90)
	if err != nil {
		return nil, nil, err
	}
	lon, err := dmsTagToDecimal(lonTag, lonRef, "E", "W", 180)
	if err != nil {
		return nil, nil, err
	}
	return &lat, &lon, nil
}

func refString(x *exif.Exif, field exif.FieldName) (string, error) {
	tag, err := x.Get(field)
	if err != nil {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidCoordinates, field)
	}
	raw, err := tag.StringVal()
	if err != nil {
		return "", fmt.Errorf("%w: unreadable %s", ErrInvalidCoordinates, field)
	}
	return raw, nil
}

// dmsTagToDecimal converts a degree/minute/second rational triple plus its
// hemisphere reference into signed decimal degrees.
func dmsTagToDecimal(tag *tiff.Tag, ref, positive, negative string, limit float64) (float64, error) {
	if tag.Count < 3 {
		return 0, fmt.Errorf("%w: expected 3 rationals, got %d", ErrInvalidCoordinates, tag.Count)
	}

	parts := make([]float64, 3)
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return 0, fmt.Errorf("%w: bad rational: %v", ErrInvalidCoordinates, err)
		}
		if den == 0 {
			return 0, fmt.Errorf("%w: zero denominator", ErrInvalidCoordinates)
		}
		parts[i] = float64(num) / float64(den)
	}

	return dmsToDecimal(parts[0], parts[1], parts[2], ref, positive, negative, limit)
}

// dmsToDecimal is the pure conversion: deg + min/60 + sec/3600, signed by
// the hemisphere reference. A negative component combined with a hemisphere
// reference is a conflicting sign and is rejected rather than resolved.
func dmsToDecimal(deg, min, sec float64, ref, positive, negative string, limit float64) (float64, error) {
	if deg < 0 || min < 0 || sec < 0 {
		return 0, fmt.Errorf("%w: negative DMS component with hemisphere reference", ErrInvalidCoordinates)
	}

	value := deg + min/60.0 + sec/3600.0

	switch normalizeRef(ref) {
	case positive:
		// keep sign
	case negative:
		value = -value
	default:
		return 0, fmt.Errorf("%w: unknown hemisphere reference %q", ErrInvalidCoordinates, ref)
	}

	if value < -limit || value > limit {
		return 0, fmt.Errorf("%w: %f exceeds limit %f", ErrInvalidCoordinates, value, limit)
	}
	return value, nil
}

// normalizeRef reduces a hemisphere reference tag to its first letter,
// uppercased. Some writers pad the value or use lowercase.
func normalizeRef(ref string) string {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return ""
	}
	return ref[:1]
}

// sniffImageFormat identifies a photo container from its magic bytes.
// Returns "" for unrecognized content.
func sniffImageFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, 32)
	n, err := f.Read(header)
	if err != nil {
		return "", err
	}
	header = header[:n]

	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return "jpeg", nil

	case len(header) >= 8 && header[0] == 0x89 && header[1] == 0x50 && header[2] == 0x4E && header[3] == 0x47:
		return "png", nil

	case len(header) >= 12 && header[4] == 0x66 && header[5] == 0x74 && header[6] == 0x79 && header[7] == 0x70:
		brand := string(header[8:12])
		if brand == "heic" || brand == "heix" || brand == "hevc" || brand == "hevx" || brand == "mif1" || brand == "msf1" {
			return "heif", nil
		}
		return "", nil
	}

	return "", nil
}
