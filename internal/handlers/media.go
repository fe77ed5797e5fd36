package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"tagify/internal/database"
	"tagify/internal/logging"
	"tagify/internal/startup"
	"tagify/internal/store"
)

var (
	errMalformedRange = errors.New("malformed range header")
	errUnsatisfiable  = errors.New("range not satisfiable")
)

// ServeOriginal delivers an image's original bytes.
func (h *Handlers) ServeOriginal(w http.ResponseWriter, r *http.Request) {
	h.serveMedia(w, r, store.Originals)
}

// ServeThumb delivers an image's thumbnail.
func (h *Handlers) ServeThumb(w http.ResponseWriter, r *http.Request) {
	h.serveMedia(w, r, store.Thumbs)
}

func (h *Handlers) serveMedia(w http.ResponseWriter, r *http.Request, c store.Class) {
	id := mux.Vars(r)["id"]

	img, err := h.db.GetImage(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		logging.Error("failed to look up image %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to look up image")
		return
	}

	key := img.OriginalKey
	if c == store.Thumbs {
		key = img.ThumbKey
	}
	if key == "" {
		writeError(w, http.StatusNotFound, "media not available for this image")
		return
	}

	// The delivery mode is validated once at startup; this switch is
	// exhaustive over the closed set.
	switch h.config.DeliveryMode {
	case startup.DeliveryRedirect:
		url, err := h.store.Presign(r.Context(), c, key, h.config.PresignExpiry)
		if err != nil {
			logging.Error("failed to presign %s: %v", key, err)
			writeError(w, http.StatusInternalServerError, "failed to presign media url")
			return
		}
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)

	case startup.DeliveryURL:
		url, err := h.store.Presign(r.Context(), c, key, h.config.PresignExpiry)
		if err != nil {
			logging.Error("failed to presign %s: %v", key, err)
			writeError(w, http.StatusInternalServerError, "failed to presign media url")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"url":        url,
			"expires_in": int64(h.config.PresignExpiry.Seconds()),
		})

	default: // startup.DeliveryProxy
		h.proxyMedia(w, r, c, key)
	}
}

// proxyMedia streams object bytes, honoring single-range requests.
// HEAD mirrors GET's headers without a body.
func (h *Handlers) proxyMedia(w http.ResponseWriter, r *http.Request, c store.Class, key string) {
	stat, err := h.store.Stat(r.Context(), c, key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "media object not found")
		return
	}
	if err != nil {
		logging.Error("failed to stat %s: %v", key, err)
		writeError(w, http.StatusInternalServerError, "failed to read media")
		return
	}

	setMediaHeaders(w, stat)

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(stat.Size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}

	start, end := int64(-1), int64(-1)
	status := http.StatusOK
	length := stat.Size

	if rangeHdr := r.Header.Get("Range"); rangeHdr != "" {
		start, end, err = parseRange(rangeHdr, stat.Size)
		if errors.Is(err, errMalformedRange) {
			writeError(w, http.StatusBadRequest, "malformed Range header")
			return
		}
		if errors.Is(err, errUnsatisfiable) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", stat.Size))
			writeError(w, http.StatusRequestedRangeNotSatisfiable, "requested range not satisfiable")
			return
		}
		status = http.StatusPartialContent
		length = end - start + 1
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, stat.Size))
	}

	obj, err := h.store.Get(r.Context(), c, key, start, end)
	if err != nil {
		logging.Error("failed to open %s: %v", key, err)
		writeError(w, http.StatusInternalServerError, "failed to read media")
		return
	}
	defer func() {
		if err := obj.Body.Close(); err != nil {
			logging.Debug("error closing object %s: %v", key, err)
		}
	}()

	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	// The object was opened with the request context, so a client
	// disconnect aborts the copy instead of draining the store.
	if _, err := io.Copy(w, obj.Body); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(r.Context().Err(), context.Canceled) {
			logging.Debug("client disconnected while streaming %s", key)
		} else {
			logging.Warn("error streaming %s: %v", key, err)
		}
	}
}

func setMediaHeaders(w http.ResponseWriter, stat *store.ObjectInfo) {
	if stat.ContentType != "" {
		w.Header().Set("Content-Type", stat.ContentType)
	}
	if stat.ETag != "" {
		w.Header().Set("ETag", `"`+stat.ETag+`"`)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if !stat.LastModified.IsZero() {
		w.Header().Set("Last-Modified", stat.LastModified.UTC().Format(http.TimeFormat))
	}
}

// parseRange parses a single-range Range header against an object of
// the given size. Multi-range requests are rejected as malformed.
func parseRange(spec string, size int64) (start, end int64, err error) {
	const prefix = "bytes="
	if !strings.HasPrefix(spec, prefix) {
		return 0, 0, errMalformedRange
	}
	spec = strings.TrimSpace(strings.TrimPrefix(spec, prefix))
	if spec == "" || strings.Contains(spec, ",") {
		return 0, 0, errMalformedRange
	}

	dash := strings.Index(spec, "-")
	if dash < 0 {
		return 0, 0, errMalformedRange
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	if startStr == "" {
		// Suffix range: last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, errMalformedRange
		}
		if n == 0 || size == 0 {
			return 0, 0, errUnsatisfiable
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}

	start, err = strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errMalformedRange
	}
	if start >= size {
		return 0, 0, errUnsatisfiable
	}

	if endStr == "" {
		return start, size - 1, nil
	}

	end, err = strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, 0, errMalformedRange
	}
	if end >= size {
		end = size - 1
	}
	return start, end, nil
}
