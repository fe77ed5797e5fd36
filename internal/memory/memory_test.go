package memory

import (
	"math"
	"runtime/debug"
	"testing"
)

func resetLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnvUnset(t *testing.T) {
	resetLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	if got := ConfigureFromEnv(); got != 0 {
		t.Errorf("ConfigureFromEnv with no env = %d, want 0", got)
	}
	if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
		t.Errorf("heap limit = %d, want unlimited", limit)
	}
}

func TestConfigureFromEnvContainerLimit(t *testing.T) {
	resetLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824") // 1 GiB
	t.Setenv("MEMORY_RATIO", "0.5")

	if got := ConfigureFromEnv(); got != 536870912 {
		t.Errorf("ConfigureFromEnv = %d, want 536870912", got)
	}
	if limit := debug.SetMemoryLimit(-1); limit != 536870912 {
		t.Errorf("heap limit = %d, want 536870912", limit)
	}
}

func TestConfigureFromEnvInvalidValues(t *testing.T) {
	resetLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "not-a-number")
	t.Setenv("MEMORY_RATIO", "")

	if got := ConfigureFromEnv(); got != 0 {
		t.Errorf("ConfigureFromEnv with bad limit = %d, want 0", got)
	}

	t.Setenv("MEMORY_LIMIT", "1073741824")
	t.Setenv("MEMORY_RATIO", "5.0") // out of range, falls back to default

	limitBytes := float64(1073741824)
	want := int64(limitBytes * defaultHeapRatio)
	if got := ConfigureFromEnv(); got != want {
		t.Errorf("ConfigureFromEnv with bad ratio = %d, want %d", got, want)
	}
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.expected {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}
