package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"journeymap/internal/logging"
	"journeymap/internal/metrics"
	"journeymap/internal/store"
)

// iso6709Pattern matches the leading latitude/longitude pair of an ISO 6709
// location string, e.g. "+35.6580+139.7016+040.000/".
var iso6709Pattern = regexp.MustCompile(`^([+-]\d+(?:\.\d+)?)([+-]\d+(?:\.\d+)?)`)

// creationTimeLayouts covers the timestamp formats containers commonly emit.
var creationTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02 15:04:05",
}

// ffprobeOutput is the subset of ffprobe's -print_format json output we read.
type ffprobeOutput struct {
	Format struct {
		Tags map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		Tags map[string]string `json:"tags"`
	} `json:"streams"`
}

// extractVideo probes the container with ffprobe for a creation timestamp
// and an ISO 6709 location tag. Without ffprobe, or when the container has
// no creation_time, the file modification time stands in for the timestamp.
func (e *Extractor) extractVideo(ctx context.Context, path string, info os.FileInfo, rec *store.MediaRecord) error {
	mtime := info.ModTime().UTC()
	rec.CapturedAt = &mtime

	if e.ffprobePath == "" {
		return nil
	}

	out, err := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path).Output()
	if err != nil {
		return fmt.Errorf("%w: %s: ffprobe: %v", ErrUnreadableMedia, path, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return fmt.Errorf("%w: %s: ffprobe output: %v", ErrUnreadableMedia, path, err)
	}

	tags := mergedTags(&probe)

	if raw, ok := tags["creation_time"]; ok {
		if t, ok := parseCreationTime(raw); ok {
			rec.CapturedAt = &t
		} else {
			logging.Warn("Unparseable creation_time %q in %s, using mtime", raw, path)
		}
	}

	if raw, ok := locationTag(tags); ok {
		lat, lon, err := parseISO6709(raw)
		if err != nil {
			metrics.ExtractInvalidCoordinates.Inc()
			logging.Warn("Invalid location tag %q in %s: %v", raw, path, err)
			return nil
		}
		rec.Latitude = &lat
		rec.Longitude = &lon
	}
	return nil
}

// mergedTags flattens format tags and stream tags into one lowercase-keyed
// map. Format tags win over stream tags.
func mergedTags(probe *ffprobeOutput) map[string]string {
	tags := make(map[string]string)
	for _, s := range probe.Streams {
		for k, v := range s.Tags {
			tags[strings.ToLower(k)] = v
		}
	}
	for k, v := range probe.Format.Tags {
		tags[strings.ToLower(k)] = v
	}
	return tags
}

// locationTag finds the container's GPS tag under its common names.
func locationTag(tags map[string]string) (string, bool) {
	for _, key := range []string{
		"location",
		"location-eng",
		"com.apple.quicktime.location.iso6709",
	} {
		if v, ok := tags[key]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func parseCreationTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range creationTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseISO6709 extracts signed decimal latitude and longitude from an
// ISO 6709 annex H string. Altitude and the trailing solidus are ignored.
func parseISO6709(raw string) (lat, lon float64, err error) {
	m := iso6709Pattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: not ISO 6709: %q", ErrInvalidCoordinates, raw)
	}

	lat, err = strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: latitude %q: %v", ErrInvalidCoordinates, m[1], err)
	}
	lon, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: longitude %q: %v", ErrInvalidCoordinates, m[2], err)
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("%w: %f,%f out of range", ErrInvalidCoordinates, lat, lon)
	}
	return lat, lon, nil
}
