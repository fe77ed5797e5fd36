package filesystem

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestStatExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := Stat(path, fastConfig())
	if err != nil {
		t.Fatalf("Stat returned error: %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Stat size = %d, want 5", info.Size())
	}
}

func TestStatMissingFileNoRetry(t *testing.T) {
	t.Parallel()

	start := time.Now()
	_, err := Stat(filepath.Join(t.TempDir(), "nope"), RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     time.Second,
	})
	if err == nil {
		t.Fatal("Stat of missing file succeeded")
	}
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	// Not-exist is permanent; no backoff sleeps should have happened.
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Stat appears to have retried a permanent error (took %v)", elapsed)
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "b.txt")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := ReadFile(path, fastConfig())
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("ReadFile = %q, want %q", data, "data")
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	if !isTransient(syscall.ESTALE) {
		t.Error("ESTALE should be transient")
	}
	if isTransient(syscall.EACCES) {
		t.Error("EACCES should not be transient")
	}
	if isTransient(os.ErrNotExist) {
		t.Error("ErrNotExist should not be transient")
	}
	if isTransient(nil) {
		t.Error("nil should not be transient")
	}
}

func TestWithRetryEventuallySucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	err := withRetry("stat", "fake", fastConfig(), func() error {
		calls++
		if calls < 3 {
			return syscall.ESTALE
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}
