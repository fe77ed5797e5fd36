package thumbs

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/disintegration/imaging"

	"tagify/internal/logging"
	"tagify/internal/metrics"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/png"
)

// ErrUnsupported marks input that is not a decodable image. Scans
// treat it as a skip, not a failure.
var ErrUnsupported = errors.New("unsupported image format")

// Result carries the rendered thumbnail and the source image's pixel
// dimensions, which the scanner records on the image document.
type Result struct {
	JPEG   []byte
	Width  int
	Height int
}

// Generator renders JPEG thumbnails with a fixed long-edge cap.
type Generator struct {
	maxEdge int
	quality int
}

// NewGenerator returns a generator capping thumbnails at maxEdge
// pixels on their longer side.
func NewGenerator(maxEdge int) *Generator {
	return &Generator{maxEdge: maxEdge, quality: 85}
}

// Render decodes data and produces a thumbnail. Smaller-than-cap
// images keep their size; thumbnails never upscale.
func (g *Generator) Render(data []byte) (*Result, error) {
	start := time.Now()

	res, err := g.render(data)
	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrUnsupported) {
			status = "unsupported"
		}
	}
	metrics.ThumbnailsGenerated.WithLabelValues(status).Inc()
	metrics.ThumbnailDuration.Observe(time.Since(start).Seconds())

	return res, err
}

func (g *Generator) render(data []byte) (*Result, error) {
	if isVipsAvailable() {
		res, err := renderWithVips(data, g.maxEdge, g.quality)
		if err == nil {
			return res, nil
		}
		logging.Debug("vips render failed, falling back to pure-Go decode: %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	bounds := img.Bounds()
	thumb := imaging.Fit(img, g.maxEdge, g.maxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(g.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return &Result{
		JPEG:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
