package thumbs

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"journeymap/internal/logging"
	"journeymap/internal/mediatypes"
	"journeymap/internal/metrics"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	maxWidth    = 200
	maxHeight   = 200
	jpegQuality = 80
)

// Generator produces and caches thumbnails under cacheDir. Safe for
// concurrent use; generation itself is serialized to keep ffmpeg and
// decode memory bounded.
type Generator struct {
	cacheDir string
	enabled  bool
	mu       sync.Mutex
}

func NewGenerator(cacheDir string, enabled bool) *Generator {
	if enabled {
		logging.Debug("Thumbnail generator enabled, cache dir: %s", cacheDir)
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			logging.Warn("Failed to create thumbnail cache dir: %v", err)
		}
	} else {
		logging.Debug("Thumbnail generator disabled")
	}
	return &Generator{
		cacheDir: cacheDir,
		enabled:  enabled,
	}
}

func (g *Generator) IsEnabled() bool {
	return g.enabled
}

// CachePath returns the on-disk cache location for a fingerprint. The file
// may not exist yet.
func (g *Generator) CachePath(fingerprint string) string {
	return filepath.Join(g.cacheDir, fingerprint+".jpg")
}

// Get returns the cached thumbnail for the fingerprint, generating it from
// the source file on a cache miss. A changed file carries a new fingerprint,
// so stale cache entries are simply never requested again.
func (g *Generator) Get(filePath, fingerprint string) ([]byte, error) {
	if !g.enabled {
		return nil, fmt.Errorf("thumbnails disabled")
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}

	cachePath := g.CachePath(fingerprint)
	if data, err := os.ReadFile(cachePath); err == nil {
		metrics.ThumbnailCacheHits.Inc()
		logging.Debug("Thumbnail cache hit: %s", filePath)
		return data, nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Another request may have generated it while we waited on the lock.
	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	start := time.Now()
	defer func() {
		metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())
	}()

	kind := mediatypes.KindForPath(filePath)
	logging.Debug("Thumbnail generating: %s (kind: %s)", filePath, kind)

	var img image.Image
	var err error

	switch kind {
	case mediatypes.KindPhoto:
		img, err = g.decodePhoto(filePath)
	case mediatypes.KindVideo:
		img, err = g.extractVideoFrame(filePath)
	default:
		return nil, fmt.Errorf("unsupported media kind: %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("thumbnail generation failed: %w", err)
	}
	if img == nil {
		return nil, fmt.Errorf("thumbnail generation returned nil image")
	}

	thumb := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	if err := os.WriteFile(cachePath, buf.Bytes(), 0644); err != nil {
		logging.Warn("Failed to cache thumbnail %s: %v", cachePath, err)
	} else {
		logging.Debug("Thumbnail cached: %s", cachePath)
	}

	return buf.Bytes(), nil
}

func (g *Generator) decodePhoto(filePath string) (image.Image, error) {
	img, err := imaging.Open(filePath, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	logging.Debug("imaging.Open failed for %s: %v, trying standard decode", filePath, err)

	img, err = decodeImageFile(filePath)
	if err == nil {
		return img, nil
	}

	logging.Debug("Standard decode failed for %s: %v, trying ffmpeg", filePath, err)

	img, err = decodeWithFFmpeg(filePath)
	if err != nil {
		return nil, fmt.Errorf("all image decode methods failed for %s: %w", filePath, err)
	}
	return img, nil
}

func decodeImageFile(filePath string) (image.Image, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, err
	}

	logging.Debug("Decoded image format: %s for %s", format, filePath)
	return img, nil
}

// decodeWithFFmpeg handles formats the Go decoders cannot, HEIC mainly.
func decodeWithFFmpeg(filePath string) (image.Image, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.Command(ffmpegPath,
		"-i", filePath,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-pix_fmt", "rgb24",
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", filePath)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

// frameGrabArgs builds the ffmpeg arguments for a single-frame grab,
// optionally seeking one second in.
func frameGrabArgs(filePath string, seek bool) []string {
	args := []string{"-i", filePath}
	if seek {
		args = append(args, "-ss", "00:00:01")
	}
	return append(args,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
}

func runFrameGrab(ffmpegPath, filePath string, seek bool) (*bytes.Buffer, *bytes.Buffer, error) {
	cmd := exec.Command(ffmpegPath, frameGrabArgs(filePath, seek)...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return &stdout, &stderr, err
}

// extractVideoFrame grabs a frame one second in, retrying from the start for
// clips shorter than a second. Some ffmpeg builds exit zero with empty output
// when seeking past the end, so an empty grab retries too.
func (g *Generator) extractVideoFrame(filePath string) (image.Image, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	stdout, _, err := runFrameGrab(ffmpegPath, filePath, true)
	if err != nil || stdout.Len() == 0 {
		logging.Debug("FFmpeg seek attempt failed for %s (%v, %d bytes), retrying from start",
			filePath, err, stdout.Len())

		var stderr *bytes.Buffer
		stdout, stderr, err = runFrameGrab(ffmpegPath, filePath, false)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
		}
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", filePath)
	}

	img, _, err := image.Decode(stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}
