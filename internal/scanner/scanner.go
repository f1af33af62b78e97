package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/karrick/godirwalk"

	"journeymap/internal/extract"
	"journeymap/internal/logging"
	"journeymap/internal/mediatypes"
	"journeymap/internal/metrics"
	"journeymap/internal/store"
	"journeymap/internal/workers"
)

// ErrScanInProgress is returned when a scan is requested while another
// scan is still running.
var ErrScanInProgress = errors.New("scanner: scan already in progress")

// vacuumThreshold is the pruned-record count above which a scan compacts
// the database afterwards.
const vacuumThreshold = 500

// Extractor produces a normalized record for a media file.
type Extractor interface {
	Extract(ctx context.Context, path string) (*store.MediaRecord, error)
}

// Config configures the scanner.
type Config struct {
	// MediaDir is the root directory to walk.
	MediaDir string
	// NumWorkers is the number of parallel extraction workers (0 = auto).
	NumWorkers int
	// ChannelBuffer is the size of the job and result channel buffers.
	ChannelBuffer int
	// SkipHidden skips files and directories starting with ".".
	SkipHidden bool
}

// DefaultConfig returns a configuration sized for extraction, which mixes
// file reads with tag parsing.
func DefaultConfig(mediaDir string) Config {
	return Config{
		MediaDir:      mediaDir,
		NumWorkers:    workers.ForMixed(16),
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

// Summary reports the outcome of one scan run.
type Summary struct {
	ScanID    string    `json:"scanId"`
	StartedAt time.Time `json:"startedAt"`
	Duration  float64   `json:"durationSeconds"`
	Processed int64     `json:"processed"`
	Unchanged int64     `json:"unchanged"`
	Failed    int64     `json:"failed"`
	Skipped   int64     `json:"skipped"`
	Pruned    int64     `json:"pruned"`
}

// Scanner coordinates directory walking, extraction workers, and store
// writes. Safe for concurrent use.
type Scanner struct {
	store  *store.Store
	ext    Extractor
	config Config

	mu          sync.Mutex
	scanning    bool
	lastSummary *Summary
}

type fileJob struct {
	path string
	info os.FileInfo
}

type fileResult struct {
	rec       *store.MediaRecord
	unchanged bool
	err       error
}

// New creates a Scanner over the given store and extractor.
func New(s *store.Store, ext Extractor, config Config) *Scanner {
	if config.NumWorkers <= 0 {
		config.NumWorkers = workers.ForMixed(16)
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = 1000
	}
	return &Scanner{store: s, ext: ext, config: config}
}

// IsScanning reports whether a scan is currently running.
func (sc *Scanner) IsScanning() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.scanning
}

// LastSummary returns the most recent completed scan summary, or nil if no
// scan has completed yet.
func (sc *Scanner) LastSummary() *Summary {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lastSummary
}

func (sc *Scanner) tryStart() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.scanning {
		return false
	}
	sc.scanning = true
	return true
}

func (sc *Scanner) finish(summary *Summary) {
	sc.mu.Lock()
	sc.scanning = false
	sc.lastSummary = summary
	sc.mu.Unlock()
}

// Scan walks the media directory once and reconciles the store against it.
// Returns ErrScanInProgress if another scan is running.
func (sc *Scanner) Scan(ctx context.Context) (*Summary, error) {
	if !sc.tryStart() {
		return nil, ErrScanInProgress
	}

	scanID := uuid.New().String()
	start := time.Now()
	logging.Info("Scan %s starting: %s (%d workers)", scanID, sc.config.MediaDir, sc.config.NumWorkers)

	metrics.ScanRunsTotal.Inc()
	metrics.ScanIsRunning.Set(1)
	defer metrics.ScanIsRunning.Set(0)

	summary := &Summary{ScanID: scanID, StartedAt: start.UTC()}
	defer func() {
		summary.Duration = time.Since(start).Seconds()
		metrics.ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
		metrics.ScanLastRunDuration.Set(summary.Duration)
		sc.finish(summary)
		logging.Info("Scan %s complete: %d processed, %d unchanged, %d failed, %d skipped, %d pruned in %.2fs",
			scanID, summary.Processed, summary.Unchanged, summary.Failed, summary.Skipped, summary.Pruned, summary.Duration)
	}()

	jobs := make(chan fileJob, sc.config.ChannelBuffer)
	results := make(chan fileResult, sc.config.ChannelBuffer)

	var workerWg sync.WaitGroup
	for i := 0; i < sc.config.NumWorkers; i++ {
		workerWg.Add(1)
		go func(id int) {
			defer workerWg.Done()
			sc.worker(ctx, id, jobs, results)
		}(i)
	}

	// Store writes are serialized through the collector so extraction
	// parallelism never contends on the writer.
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for result := range results {
			sc.collect(ctx, result, summary)
		}
	}()

	var skipped atomic.Int64
	walkErr := sc.walk(ctx, jobs, &skipped)

	close(jobs)
	workerWg.Wait()
	close(results)
	collectorWg.Wait()

	summary.Skipped = skipped.Load()

	if walkErr != nil {
		return summary, fmt.Errorf("walk failed: %w", walkErr)
	}
	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	// Everything still on disk was just touched; anything older is gone.
	pruned, err := sc.store.PruneNotSeenSince(ctx, start)
	if err != nil {
		logging.Warn("Scan %s: prune failed: %v", scanID, err)
	} else {
		summary.Pruned = pruned
	}

	// Reclaim space after a large prune (bulk deletions, moved libraries).
	if pruned >= vacuumThreshold {
		if err := sc.store.Vacuum(); err != nil {
			logging.Warn("Scan %s: vacuum failed: %v", scanID, err)
		}
	}

	return summary, nil
}

func (sc *Scanner) walk(ctx context.Context, jobs chan<- fileJob, skipped *atomic.Int64) error {
	return godirwalk.Walk(sc.config.MediaDir, &godirwalk.Options{
		Unsorted:            true,
		FollowSymbolicLinks: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			name := de.Name()
			if sc.config.SkipHidden && strings.HasPrefix(name, ".") && path != sc.config.MediaDir {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}

			if de.IsDir() || de.IsSymlink() {
				return nil
			}

			if !mediatypes.IsMediaPath(path) {
				return nil
			}

			info, err := os.Stat(path)
			if err != nil {
				logging.Warn("Cannot stat %s: %v", path, err)
				skipped.Add(1)
				return nil
			}

			select {
			case jobs <- fileJob{path: path, info: info}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			logging.Warn("Error accessing %s: %v", path, err)
			skipped.Add(1)
			return godirwalk.SkipNode
		},
	})
}

func (sc *Scanner) worker(ctx context.Context, id int, jobs <-chan fileJob, results chan<- fileResult) {
	logging.Debug("Scan worker %d started", id)

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}

		result := sc.processFile(ctx, job)

		select {
		case results <- result:
		case <-ctx.Done():
			return
		}
	}

	logging.Debug("Scan worker %d finished", id)
}

// processFile decides between touching an unchanged record and running a
// full extraction.
func (sc *Scanner) processFile(ctx context.Context, job fileJob) fileResult {
	fingerprint := extract.Fingerprint(job.path, job.info)

	existing, err := sc.store.GetByPath(ctx, job.path)
	if err != nil {
		return fileResult{err: fmt.Errorf("lookup %s: %w", job.path, err)}
	}
	if existing != nil && existing.Fingerprint == fingerprint {
		return fileResult{rec: existing, unchanged: true}
	}

	rec, err := sc.ext.Extract(ctx, job.path)
	if err != nil {
		return fileResult{err: fmt.Errorf("extract %s: %w", job.path, err)}
	}
	return fileResult{rec: rec}
}

func (sc *Scanner) collect(ctx context.Context, result fileResult, summary *Summary) {
	if result.err != nil {
		summary.Failed++
		reason := "store"
		if errors.Is(result.err, extract.ErrUnreadableMedia) {
			reason = "unreadable"
		}
		metrics.ScanFailuresTotal.WithLabelValues(reason).Inc()
		logging.Warn("Scan: %v", result.err)
		return
	}

	outcome, err := sc.store.Upsert(ctx, result.rec)
	if err != nil {
		summary.Failed++
		metrics.ScanFailuresTotal.WithLabelValues("store").Inc()
		logging.Warn("Scan: upsert %s: %v", result.rec.Path, err)
		return
	}

	metrics.ScanFilesProcessed.Inc()
	if result.unchanged || outcome == store.UpsertUnchanged {
		summary.Unchanged++
	} else {
		summary.Processed++
	}
}
