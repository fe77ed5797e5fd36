// Package memory configures the Go heap limit from container memory
// limits. Image decoding and libvips both allocate heavily outside
// the normal request path, so part of the container's memory is
// reserved for them rather than handed to the Go heap.
package memory

import (
	"os"
	"runtime/debug"
	"strconv"

	"tagify/internal/logging"
)

// defaultHeapRatio is the share of container memory given to the Go
// heap; the rest is headroom for libvips buffers and decode scratch.
const defaultHeapRatio = 0.85

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit.
// Call early in main, before significant allocations.
//
// An explicit GOMEMLIMIT wins. Otherwise MEMORY_LIMIT (bytes, e.g.
// from the Kubernetes Downward API) scaled by MEMORY_RATIO is
// applied. With neither set, the heap stays unlimited.
func ConfigureFromEnv() int64 {
	if v := os.Getenv("GOMEMLIMIT"); v != "" {
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		return debug.SetMemoryLimit(-1)
	}

	limitStr := os.Getenv("MEMORY_LIMIT")
	if limitStr == "" {
		logging.Debug("MEMORY_LIMIT not set; heap limit not configured")
		return 0
	}

	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", limitStr)
		return 0
	}

	ratio := defaultHeapRatio
	if v := os.Getenv("MEMORY_RATIO"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			logging.Warn("Ignoring MEMORY_RATIO %q outside (0, 1]; using %.2f", v, defaultHeapRatio)
		} else {
			ratio = parsed
		}
	}

	heapLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(heapLimit)
	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		formatBytes(heapLimit), ratio*100, formatBytes(limit))
	return heapLimit
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
