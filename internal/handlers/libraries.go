package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"tagify/internal/database"
	"tagify/internal/logging"
)

const libraryIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

type createLibraryRequest struct {
	RootPath    string `json:"root_path"`
	DisplayName string `json:"display_name"`
}

// CreateLibrary registers a library root and kicks off its first scan
// in the background.
func (h *Handlers) CreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req createLibraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.RootPath = strings.TrimSpace(req.RootPath)
	if req.RootPath == "" {
		writeError(w, http.StatusBadRequest, "root_path is required")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.RootPath
	}

	id, err := gonanoid.Generate(libraryIDAlphabet, 12)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate library id")
		return
	}

	lib := &database.Library{
		ID:          id,
		RootPath:    req.RootPath,
		DisplayName: req.DisplayName,
	}
	if err := h.db.CreateLibrary(r.Context(), lib); err != nil {
		logging.Error("failed to create library: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create library")
		return
	}

	if err := h.scanner.Start(r.Context(), id); err != nil {
		// The library exists; the client can retry via rescan.
		logging.Error("failed to start initial scan for %s: %v", id, err)
	}

	created, err := h.db.GetLibrary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load created library")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListLibraries returns all registered libraries.
func (h *Handlers) ListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := h.db.ListLibraries(r.Context())
	if err != nil {
		logging.Error("failed to list libraries: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list libraries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"libraries": libs})
}

// GetLibrary returns one library.
func (h *Handlers) GetLibrary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	lib, err := h.db.GetLibrary(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "library not found")
		return
	}
	if err != nil {
		logging.Error("failed to get library %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get library")
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

// DeleteLibrary removes a library, its image documents, and every
// object under its store prefix. An active scan is cancelled first.
func (h *Handlers) DeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.scanner.Cancel(id)

	if err := h.db.DeleteLibrary(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "library not found")
			return
		}
		logging.Error("failed to delete library %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete library")
		return
	}

	deleted, err := h.store.DeleteByPrefix(r.Context(), id+"/")
	if err != nil {
		// Metadata is gone; orphaned objects are only a space leak.
		logging.Warn("failed to fully delete objects for library %s: %v", id, err)
	}

	h.tagCache.Invalidate()

	logging.Info("Deleted library %s (%d objects removed)", id, deleted)
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted_objects": deleted})
}

// RescanLibrary triggers a fresh scan of an existing library.
func (h *Handlers) RescanLibrary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.scanner.Start(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "library not found")
	case errors.Is(err, database.ErrScanInProgress):
		writeError(w, http.StatusConflict, "scan already in progress")
	case err != nil:
		logging.Error("failed to start scan for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to start scan")
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scanning"})
	}
}

type progressResponse struct {
	Scanning     bool   `json:"scanning"`
	ScanTotal    int64  `json:"scan_total"`
	ScanDone     int64  `json:"scan_done"`
	ScanError    string `json:"scan_error,omitempty"`
	IndexedCount int64  `json:"indexed_count"`
}

// ScanProgress reports scan progress for one library. A scan running
// in this process reports its live counters; otherwise the persisted
// state is returned.
func (h *Handlers) ScanProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	lib, err := h.db.GetLibrary(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "library not found")
		return
	}
	if err != nil {
		logging.Error("failed to get library %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get progress")
		return
	}

	resp := progressResponse{
		Scanning:     lib.Scanning,
		ScanTotal:    lib.ScanTotal,
		ScanDone:     lib.ScanDone,
		ScanError:    lib.ScanError,
		IndexedCount: lib.IndexedCount,
	}
	if live, ok := h.scanner.Progress(id); ok {
		resp.Scanning = true
		resp.ScanTotal = live.Total
		resp.ScanDone = live.Done
	}
	writeJSON(w, http.StatusOK, resp)
}
