package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tagify/internal/database"
	"tagify/internal/logging"
)

type imagePage struct {
	Images     []database.ImageSummary `json:"images"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

// ListImages returns one page of image summaries. Filters: tags
// (repeatable) with logic=and|or, library_id, no_tags, plus cursor
// and limit for pagination.
func (h *Handlers) ListImages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := database.ListOptions{
		LibraryID: q.Get("library_id"),
		Tags:      q["tags"],
		Cursor:    q.Get("cursor"),
	}

	switch q.Get("logic") {
	case "", "and":
		opts.Logic = database.TagLogicAnd
	case "or":
		opts.Logic = database.TagLogicOr
	default:
		writeError(w, http.StatusBadRequest, "logic must be 'and' or 'or'")
		return
	}

	if v := q.Get("no_tags"); v != "" {
		noTags, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "no_tags must be a boolean")
			return
		}
		opts.NoTags = noTags
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = limit
	}

	images, nextCursor, err := h.db.ListImages(r.Context(), opts)
	if err != nil {
		logging.Error("failed to list images: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list images")
		return
	}

	writeJSON(w, http.StatusOK, imagePage{Images: images, NextCursor: nextCursor})
}

// GetImage returns the full metadata document for one image,
// including its tag list.
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	img, err := h.db.GetImage(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		logging.Error("failed to get image %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	writeJSON(w, http.StatusOK, img)
}
