package thumbs

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"tagify/internal/logging"
)

var (
	vipsMu        sync.Mutex
	vipsRunning   bool
	vipsAvailable bool
)

// InitVips starts libvips with conservative memory settings. Call once
// at startup; rendering falls back to pure-Go decoding if this is
// never called or fails.
func InitVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsRunning {
		return
	}

	// Route vips messages through our logger, filtered by its level.
	vipsLogLevel := vips.LogLevelWarning
	if logging.IsDebugEnabled() {
		vipsLogLevel = vips.LogLevelInfo
	}
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch {
		case level <= vips.LogLevelError:
			logging.Error("[%s] %s", domain, msg)
		case level == vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsRunning = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsRunning {
		vips.Shutdown()
		vipsRunning = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

func isVipsAvailable() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsAvailable
}

// renderWithVips decodes and shrinks in one pass. libvips shrinks
// JPEGs at decode time, which keeps peak memory far below a full
// decode followed by a resize.
func renderWithVips(data []byte, maxEdge, quality int) (*Result, error) {
	ref, err := vips.LoadImageFromBuffer(data, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	origWidth := ref.Width()
	origHeight := ref.Height()

	if origWidth > maxEdge || origHeight > maxEdge {
		if err := ref.Thumbnail(maxEdge, maxEdge, vips.InterestingNone); err != nil {
			return nil, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	jpegBytes, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	return &Result{
		JPEG:   jpegBytes,
		Width:  origWidth,
		Height: origHeight,
	}, nil
}
