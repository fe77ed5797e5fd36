package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tagify/internal/database"
	"tagify/internal/filesystem"
	"tagify/internal/logging"
	"tagify/internal/metrics"
	"tagify/internal/store"
	"tagify/internal/thumbs"
	"tagify/internal/workers"
)

// ObjectStore is the slice of the object store the scanner writes
// through. *store.Store satisfies it; tests substitute an in-memory
// implementation.
type ObjectStore interface {
	Put(ctx context.Context, c store.Class, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, c store.Class, key string) error
}

// Options configures a Scanner.
type Options struct {
	// Workers is the pool size per scan; 0 means auto-detect.
	Workers int
	// Takeover makes a new scan request cancel a running scan of the
	// same library instead of being rejected.
	Takeover bool
	// Retry governs filesystem reads on flaky mounts.
	Retry filesystem.RetryConfig
}

// Scanner runs library scans, at most one per library at a time.
type Scanner struct {
	db       *database.Database
	store    ObjectStore
	thumbs   *thumbs.Generator
	workers  int
	takeover bool
	retry    filesystem.RetryConfig

	mu     sync.Mutex
	active map[string]*scanRun
}

// scanRun is the mutable state of one in-flight scan.
type scanRun struct {
	cancel   context.CancelFunc
	finished chan struct{}

	total   atomic.Int64
	done    atomic.Int64
	indexed atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// Progress is a live snapshot of a running scan.
type Progress struct {
	Total   int64
	Done    int64
	Indexed int64
	Skipped int64
	Failed  int64
}

// New creates a Scanner.
func New(db *database.Database, st ObjectStore, gen *thumbs.Generator, opts Options) *Scanner {
	w := opts.Workers
	if w < 1 {
		w = workers.ScanCount()
	}
	return &Scanner{
		db:       db,
		store:    st,
		thumbs:   gen,
		workers:  w,
		takeover: opts.Takeover,
		retry:    opts.Retry,
		active:   make(map[string]*scanRun),
	}
}

// Start reserves the library's scan slot and launches the scan in the
// background. Returns database.ErrScanInProgress when the library is
// already scanning and takeover is disabled, database.ErrNotFound for
// unknown libraries.
func (s *Scanner) Start(ctx context.Context, libraryID string) error {
	lib, err := s.db.GetLibrary(ctx, libraryID)
	if err != nil {
		return err
	}

	if err := s.db.TryStartScan(ctx, libraryID); err != nil {
		if !errors.Is(err, database.ErrScanInProgress) || !s.takeover {
			return err
		}
		logging.Info("Taking over running scan of library %s", libraryID)
		s.Cancel(libraryID)
		if err := s.db.TryStartScan(ctx, libraryID); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &scanRun{cancel: cancel, finished: make(chan struct{})}

	s.mu.Lock()
	s.active[libraryID] = run
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			if s.active[libraryID] == run {
				delete(s.active, libraryID)
			}
			s.mu.Unlock()
			close(run.finished)
		}()
		s.run(runCtx, lib, run)
	}()

	return nil
}

// Progress returns the live counters of an active scan, or false if
// the library is not scanning in this process.
func (s *Scanner) Progress(libraryID string) (Progress, bool) {
	s.mu.Lock()
	run := s.active[libraryID]
	s.mu.Unlock()

	if run == nil {
		return Progress{}, false
	}
	return Progress{
		Total:   run.total.Load(),
		Done:    run.done.Load(),
		Indexed: run.indexed.Load(),
		Skipped: run.skipped.Load(),
		Failed:  run.failed.Load(),
	}, true
}

// Cancel stops the library's active scan, if any, and waits for it to
// wind down. The interrupted scan is recorded as failed; already
// indexed images are kept.
func (s *Scanner) Cancel(libraryID string) {
	s.mu.Lock()
	run := s.active[libraryID]
	s.mu.Unlock()

	if run != nil {
		run.cancel()
		<-run.finished
	}
}

// Wait blocks until the library's active scan finishes, if one is
// running in this process.
func (s *Scanner) Wait(libraryID string) {
	s.mu.Lock()
	run := s.active[libraryID]
	s.mu.Unlock()

	if run != nil {
		<-run.finished
	}
}

// Shutdown cancels every active scan and waits for them all.
func (s *Scanner) Shutdown() {
	s.mu.Lock()
	runs := make([]*scanRun, 0, len(s.active))
	for _, run := range s.active {
		runs = append(runs, run)
	}
	s.mu.Unlock()

	for _, run := range runs {
		run.cancel()
		<-run.finished
	}
}

// run executes one scan to completion. The scan slot in the database
// is already reserved; this always releases it, via FinishScan or
// FailScan.
func (s *Scanner) run(ctx context.Context, lib *database.Library, run *scanRun) {
	start := time.Now()
	metrics.ScanRunsTotal.Inc()
	metrics.ScansActive.Inc()
	metrics.ScanWorkers.Set(float64(s.workers))
	defer metrics.ScansActive.Dec()

	logging.Info("Scan started: library %s (%s) with %d workers", lib.ID, lib.RootPath, s.workers)

	jobs := make(chan fileJob, 256)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() == nil {
					s.processFile(ctx, lib, run, job)
				}
				run.done.Add(1)
			}
		}()
	}

	stopFlush := make(chan struct{})
	var flushWg sync.WaitGroup
	flushWg.Add(1)
	go func() {
		defer flushWg.Done()
		s.flushProgress(lib.ID, run, stopFlush)
	}()

	walkErr := s.walk(ctx, lib, run, jobs)
	close(jobs)
	wg.Wait()
	close(stopFlush)
	flushWg.Wait()

	// The run context may be cancelled; finalization uses its own.
	finCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if ctx.Err() != nil {
		logging.Info("Scan cancelled: library %s after %d/%d files", lib.ID, run.done.Load(), run.total.Load())
		if err := s.db.FailScan(finCtx, lib.ID, "scan cancelled"); err != nil {
			logging.Error("failed to record cancelled scan for %s: %v", lib.ID, err)
		}
		return
	}

	if walkErr != nil {
		metrics.ScanErrors.Inc()
		logging.Error("Scan failed: library %s: %v", lib.ID, walkErr)
		if err := s.db.FailScan(finCtx, lib.ID, walkErr.Error()); err != nil {
			logging.Error("failed to record failed scan for %s: %v", lib.ID, err)
		}
		return
	}

	// Only a completed walk may reap: an aborted one has not seen
	// every file that still exists.
	reaped, err := s.reap(finCtx, lib.ID, start)
	if err != nil {
		logging.Warn("Failed to reap missing files for library %s: %v", lib.ID, err)
	}

	count, err := s.db.CountImages(finCtx, lib.ID)
	if err != nil {
		logging.Error("failed to count images for %s: %v", lib.ID, err)
	}
	if err := s.db.FinishScan(finCtx, lib.ID, run.total.Load(), run.done.Load(), count); err != nil {
		logging.Error("failed to finish scan for %s: %v", lib.ID, err)
	}

	duration := time.Since(start)
	metrics.ScanDuration.Observe(duration.Seconds())
	logging.Info("Scan complete: library %s in %v (indexed: %d, skipped: %d, errors: %d, reaped: %d)",
		lib.ID, duration.Round(time.Millisecond),
		run.indexed.Load(), run.skipped.Load(), run.failed.Load(), reaped)
}

// flushProgress periodically persists live counters so progress
// survives in the database view while the scan runs.
func (s *Scanner) flushProgress(libraryID string, run *scanRun, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.db.UpdateScanProgress(ctx, libraryID, run.total.Load(), run.done.Load()); err != nil {
				logging.Warn("failed to persist scan progress for %s: %v", libraryID, err)
			}
			cancel()
		case <-stop:
			return
		}
	}
}

// reap removes documents whose files were not seen by the scan that
// started at cutoff, along with their stored objects. Object deletion
// is best effort; the metadata delete is what makes the image gone.
func (s *Scanner) reap(ctx context.Context, libraryID string, cutoff time.Time) (int64, error) {
	stale, err := s.db.StaleImages(ctx, libraryID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale images: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(stale))
	for _, img := range stale {
		if img.OriginalKey != "" {
			if err := s.store.Delete(ctx, store.Originals, img.OriginalKey); err != nil {
				logging.Warn("failed to delete original %s: %v", img.OriginalKey, err)
			}
		}
		if img.ThumbKey != "" {
			if err := s.store.Delete(ctx, store.Thumbs, img.ThumbKey); err != nil {
				logging.Warn("failed to delete thumbnail %s: %v", img.ThumbKey, err)
			}
		}
		ids = append(ids, img.ID)
	}

	return s.db.DeleteImages(ctx, ids)
}
