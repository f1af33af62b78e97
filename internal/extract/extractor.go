package extract

import (
	"context"
	"crypto/md5" //nolint:gosec // MD5 used for change detection, not security
	"fmt"
	"os"
	"os/exec"
	"time"

	"journeymap/internal/logging"
	"journeymap/internal/mediatypes"
	"journeymap/internal/metrics"
	"journeymap/internal/store"
)

// Extractor produces normalized MediaRecords from files on disk.
type Extractor struct {
	ffprobePath string
}

// New creates an Extractor. ffprobe is optional: without it video records
// still get a modification-time timestamp, just no container metadata.
func New() *Extractor {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		logging.Warn("ffprobe not found, video container metadata disabled: %v", err)
		path = ""
	} else {
		logging.Debug("Using ffprobe: %s", path)
	}
	return &Extractor{ffprobePath: path}
}

// Fingerprint derives a file identity from path, size and modification time.
// It changes whenever the file changes, without reading file content.
func Fingerprint(path string, info os.FileInfo) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("%s%d%d", path, info.Size(), info.ModTime().Unix())))) //nolint:gosec // MD5 used for change detection, not security
}

// Extract reads one file and returns its normalized record, or
// ErrUnreadableMedia if the file is corrupt or unsupported. Re-extracting
// an unmodified file yields an identical record.
func (e *Extractor) Extract(ctx context.Context, path string) (*store.MediaRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableMedia, path, err)
	}

	kind := mediatypes.KindForPath(path)
	if kind == mediatypes.KindOther {
		return nil, fmt.Errorf("%w: unsupported extension: %s", ErrUnreadableMedia, path)
	}

	start := time.Now()
	defer func() {
		metrics.ExtractDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	rec := &store.MediaRecord{
		Path:        path,
		Fingerprint: Fingerprint(path, info),
		Kind:        kind,
	}

	switch kind {
	case mediatypes.KindPhoto:
		err = e.extractPhoto(path, rec)
	case mediatypes.KindVideo:
		err = e.extractVideo(ctx, path, info, rec)
	}
	if err != nil {
		return nil, err
	}

	if rec.HasCoordinates() {
		metrics.ExtractGPSFound.WithLabelValues(string(kind)).Inc()
	}
	return rec, nil
}
