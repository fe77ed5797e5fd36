package workers

import (
	"os"
	"runtime"
	"strconv"
)

// HardCap is the absolute ceiling on scan workers regardless of CPU
// count or overrides. Keeps a big host from overwhelming the object
// store and the metadata store.
const HardCap = 8

// ScanCount returns the number of workers a library scan should use.
//
// Scanning is I/O-heavy (file reads, store uploads) with a CPU-bound
// decode step per file, so the baseline is one worker per available
// CPU. GOMAXPROCS reflects container CPU limits on Go 1.19+.
//
// SCAN_WORKERS overrides the computed value; both paths are capped at
// HardCap.
func ScanCount() int {
	if override := os.Getenv("SCAN_WORKERS"); override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			return capped(n)
		}
	}
	return capped(runtime.GOMAXPROCS(0))
}

func capped(n int) int {
	if n < 1 {
		return 1
	}
	if n > HardCap {
		return HardCap
	}
	return n
}
