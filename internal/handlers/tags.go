package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"tagify/internal/database"
	"tagify/internal/logging"
)

const (
	maxTagsPerRequest = 100
	maxTagLength      = 128
)

// validateTags normalizes a tag list and rejects oversized requests.
func validateTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, errors.New("at least one tag is required")
	}
	if len(tags) > maxTagsPerRequest {
		return nil, fmt.Errorf("too many tags: %d (max %d)", len(tags), maxTagsPerRequest)
	}

	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, errors.New("tags must be non-empty")
		}
		if len(tag) > maxTagLength {
			return nil, fmt.Errorf("tag too long: %d chars (max %d)", len(tag), maxTagLength)
		}
		cleaned = append(cleaned, tag)
	}
	return cleaned, nil
}

// ListTags returns aggregate tag counts, served from the TTL cache.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	counts, err := h.tagCache.Get(r.Context())
	if err != nil {
		logging.Error("failed to aggregate tags: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": counts})
}

type tagRequest struct {
	Tags []string `json:"tags"`
}

// ApplyTags adds tags to an image and returns its updated tag list.
func (h *Handlers) ApplyTags(w http.ResponseWriter, r *http.Request) {
	h.mutateTags(w, r, h.db.ApplyTags)
}

// RemoveTags removes tags from an image and returns its updated tag
// list.
func (h *Handlers) RemoveTags(w http.ResponseWriter, r *http.Request) {
	h.mutateTags(w, r, h.db.RemoveTags)
}

func (h *Handlers) mutateTags(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, imageID string, tags []string) error) {
	id := mux.Vars(r)["id"]

	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tags, err := validateTags(req.Tags)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := op(r.Context(), id, tags); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return
		}
		logging.Error("failed to update tags for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to update tags")
		return
	}

	// Writers must see fresh counts on their next read.
	h.tagCache.Invalidate()

	img, err := h.db.GetImage(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load updated image")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": img.ID, "tags": img.Tags})
}

type batchTagRequest struct {
	ImageIDs []string `json:"image_ids"`
	Add      []string `json:"add"`
	Remove   []string `json:"remove"`
}

type batchTagResponse struct {
	Updated int64    `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

// BatchTags applies and/or removes tags across many images in one
// request. Per-image failures are collected, not fatal.
func (h *Handlers) BatchTags(w http.ResponseWriter, r *http.Request) {
	var req batchTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.ImageIDs) == 0 {
		writeError(w, http.StatusBadRequest, "image_ids is required")
		return
	}
	if len(req.Add) == 0 && len(req.Remove) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to do: add and remove are both empty")
		return
	}

	var add, remove []string
	var err error
	if len(req.Add) > 0 {
		if add, err = validateTags(req.Add); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if len(req.Remove) > 0 {
		if remove, err = validateTags(req.Remove); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var resp batchTagResponse
	for _, id := range req.ImageIDs {
		failed := false
		if len(add) > 0 {
			if err := h.db.ApplyTags(r.Context(), id, add); err != nil {
				logging.Warn("batch tag apply failed for %s: %v", id, err)
				failed = true
			}
		}
		if !failed && len(remove) > 0 {
			if err := h.db.RemoveTags(r.Context(), id, remove); err != nil {
				logging.Warn("batch tag remove failed for %s: %v", id, err)
				failed = true
			}
		}
		if failed {
			resp.Failed = append(resp.Failed, id)
		} else {
			resp.Updated++
		}
	}

	h.tagCache.Invalidate()
	writeJSON(w, http.StatusOK, resp)
}
