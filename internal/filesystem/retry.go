// Package filesystem provides filesystem helpers with retry logic for
// transient errors seen on network mounts (NFS stale file handles).
package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"tagify/internal/logging"
	"tagify/internal/metrics"
)

// RetryConfig configures retry behavior for filesystem operations.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isTransient reports whether err is worth retrying. Only NFS stale
// file handles (ESTALE) qualify; permission and not-exist errors are
// permanent for a given scan pass.
func isTransient(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}
	return false
}

// Stat performs os.Stat, retrying transient errors with exponential
// backoff.
func Stat(path string, cfg RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, cfg, func() error {
		var statErr error
		info, statErr = os.Stat(path)
		return statErr
	})
	return info, err
}

// Open performs os.Open, retrying transient errors with exponential
// backoff.
func Open(path string, cfg RetryConfig) (*os.File, error) {
	var f *os.File
	err := withRetry("open", path, cfg, func() error {
		var openErr error
		f, openErr = os.Open(path)
		return openErr
	})
	return f, err
}

// ReadFile performs os.ReadFile, retrying transient errors with
// exponential backoff.
func ReadFile(path string, cfg RetryConfig) ([]byte, error) {
	var data []byte
	err := withRetry("read", path, cfg, func() error {
		var readErr error
		data, readErr = os.ReadFile(path)
		return readErr
	})
	return data, err
}

func withRetry(op, path string, cfg RetryConfig, fn func() error) error {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("filesystem %s succeeded on retry %d for %s", op, attempt, path)
			}
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return err
		}

		if attempt < cfg.MaxRetries {
			metrics.FilesystemRetryAttempts.WithLabelValues(op).Inc()
			logging.Debug("filesystem %s transient error for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, cfg.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}

	metrics.FilesystemRetryFailures.WithLabelValues(op).Inc()
	logging.Warn("filesystem %s failed after %d retries for %s: %v", op, cfg.MaxRetries, path, lastErr)
	return lastErr
}
