package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tagify/internal/database"
	"tagify/internal/filesystem"
	"tagify/internal/logging"
	"tagify/internal/mediatypes"
	"tagify/internal/metrics"
	"tagify/internal/store"
	"tagify/internal/thumbs"
)

// maxDepth bounds directory recursion. Symlinked directories are
// never followed, so cycles cannot occur; the depth cap guards
// against pathological trees.
const maxDepth = 32

type fileJob struct {
	path    string
	relPath string
	info    os.FileInfo
}

// walk enumerates the library root and feeds discovered image files
// to the worker pool. scan_total grows as files are found, so the
// progress ratio is live even while discovery continues. Unreadable
// directories are logged and skipped; only an inaccessible root or
// cancellation aborts the walk.
func (s *Scanner) walk(ctx context.Context, lib *database.Library, run *scanRun, jobs chan<- fileJob) error {
	info, err := filesystem.Stat(lib.RootPath, s.retry)
	if err != nil {
		return fmt.Errorf("library root inaccessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("library root is not a directory: %s", lib.RootPath)
	}

	return s.walkDir(ctx, lib.RootPath, lib.RootPath, 0, run, jobs)
}

func (s *Scanner) walkDir(ctx context.Context, root, dir string, depth int, run *scanRun, jobs chan<- fileJob) error {
	if depth > maxDepth {
		logging.Warn("Skipping %s: exceeds max directory depth %d", dir, maxDepth)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Warn("Skipping unreadable directory %s: %v", dir, err)
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(dir, name)

		// ReadDir reports symlinks as non-directories, so symlinked
		// trees (and any cycles through them) are never entered.
		if entry.IsDir() {
			if err := s.walkDir(ctx, root, path, depth+1, run, jobs); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if !mediatypes.IsImage(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			logging.Warn("Skipping %s: %v", path, err)
			continue
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			logging.Warn("Skipping %s: %v", path, err)
			continue
		}

		run.total.Add(1)
		select {
		case jobs <- fileJob{path: path, relPath: relPath, info: info}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// processFile runs the per-file pipeline: read, render, store both
// byte streams, upsert metadata. Failures are counted and logged but
// never abort the scan. A file that fails or is skipped still exists
// on disk, so any previously indexed document for it has its
// last_seen refreshed: the reaper deletes vanished files, not
// failed-this-pass ones.
func (s *Scanner) processFile(ctx context.Context, lib *database.Library, run *scanRun, job fileJob) {
	imageID := database.ImageID(lib.ID, job.relPath)

	data, err := filesystem.ReadFile(job.path, s.retry)
	if err != nil {
		run.failed.Add(1)
		metrics.ScanFileErrors.Inc()
		logging.Warn("Failed to read %s: %v", job.path, err)
		s.keepIndexed(ctx, imageID, job.path)
		return
	}

	res, err := s.thumbs.Render(data)
	if err != nil {
		if errors.Is(err, thumbs.ErrUnsupported) {
			run.skipped.Add(1)
			metrics.ScanFilesSkipped.Inc()
			logging.Debug("Skipping undecodable file %s: %v", job.path, err)
		} else {
			run.failed.Add(1)
			metrics.ScanFileErrors.Inc()
			logging.Warn("Failed to render thumbnail for %s: %v", job.path, err)
		}
		s.keepIndexed(ctx, imageID, job.path)
		return
	}

	origKey := store.ObjectKey(lib.ID, imageID, job.path)
	thumbKey := store.ThumbKey(lib.ID, imageID)

	if _, err := s.store.Put(ctx, store.Originals, origKey, data, mediatypes.MimeType(job.path)); err != nil {
		run.failed.Add(1)
		metrics.ScanFileErrors.Inc()
		logging.Warn("Failed to store original for %s: %v", job.path, err)
		s.keepIndexed(ctx, imageID, job.path)
		return
	}
	if _, err := s.store.Put(ctx, store.Thumbs, thumbKey, res.JPEG, "image/jpeg"); err != nil {
		run.failed.Add(1)
		metrics.ScanFileErrors.Inc()
		logging.Warn("Failed to store thumbnail for %s: %v", job.path, err)
		s.keepIndexed(ctx, imageID, job.path)
		return
	}

	img := &database.Image{
		ID:           imageID,
		LibraryID:    lib.ID,
		RelativePath: job.relPath,
		Size:         job.info.Size(),
		Width:        res.Width,
		Height:       res.Height,
		CreatedTime:  job.info.ModTime(),
		ModifiedTime: job.info.ModTime(),
		OriginalKey:  origKey,
		ThumbKey:     thumbKey,
	}
	if err := s.db.UpsertImage(ctx, img); err != nil {
		run.failed.Add(1)
		metrics.ScanFileErrors.Inc()
		logging.Warn("Failed to index %s: %v", job.path, err)
		s.keepIndexed(ctx, imageID, job.path)
		return
	}

	run.indexed.Add(1)
	metrics.ScanFilesProcessed.Inc()
}

// keepIndexed marks a file that exists on disk as seen by this scan
// even though processing it failed, shielding its existing document
// from the missing-file reaper.
func (s *Scanner) keepIndexed(ctx context.Context, imageID, path string) {
	if err := s.db.TouchImage(ctx, imageID); err != nil {
		logging.Warn("Failed to refresh last_seen for %s: %v", path, err)
	}
}
