package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tagify/internal/database"
	"tagify/internal/logging"
	"tagify/internal/scanner"
	"tagify/internal/startup"
	"tagify/internal/store"
	"tagify/internal/tagcache"
)

// MediaStore is the slice of the object store the handlers read and
// clean up through. *store.Store satisfies it; tests substitute an
// in-memory implementation.
type MediaStore interface {
	Get(ctx context.Context, c store.Class, key string, start, end int64) (*store.Object, error)
	Stat(ctx context.Context, c store.Class, key string) (*store.ObjectInfo, error)
	Presign(ctx context.Context, c store.Class, key string, expiry time.Duration) (string, error)
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

type Handlers struct {
	db       *database.Database
	store    MediaStore
	scanner  *scanner.Scanner
	tagCache *tagcache.Cache
	config   *startup.Config
}

func New(db *database.Database, st MediaStore, sc *scanner.Scanner, tc *tagcache.Cache, config *startup.Config) *Handlers {
	return &Handlers{
		db:       db,
		store:    st,
		scanner:  sc,
		tagCache: tc,
		config:   config,
	}
}

// Router builds the API route table.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.HandleFunc("/livez", h.Livez).Methods("GET")
	r.HandleFunc("/readyz", h.Readyz).Methods("GET")
	r.HandleFunc("/api/version", h.Version).Methods("GET")

	r.HandleFunc("/api/libraries", h.CreateLibrary).Methods("POST")
	r.HandleFunc("/api/libraries", h.ListLibraries).Methods("GET")
	r.HandleFunc("/api/libraries/{id}", h.GetLibrary).Methods("GET")
	r.HandleFunc("/api/libraries/{id}", h.DeleteLibrary).Methods("DELETE")
	r.HandleFunc("/api/libraries/{id}/rescan", h.RescanLibrary).Methods("POST")
	r.HandleFunc("/api/libraries/{id}/progress", h.ScanProgress).Methods("GET")

	r.HandleFunc("/api/images", h.ListImages).Methods("GET")
	// Image ids embed relative paths, so the id segment spans slashes.
	r.HandleFunc("/api/images/{id:.+}/tags", h.ApplyTags).Methods("POST")
	r.HandleFunc("/api/images/{id:.+}/tags", h.RemoveTags).Methods("DELETE")
	r.HandleFunc("/api/images/{id:.+}", h.GetImage).Methods("GET")

	r.HandleFunc("/api/tags", h.ListTags).Methods("GET")
	r.HandleFunc("/api/tags/batch", h.BatchTags).Methods("POST")

	r.HandleFunc("/api/media/original/{id:.+}", h.ServeOriginal).Methods("GET", "HEAD")
	r.HandleFunc("/api/media/thumb/{id:.+}", h.ServeThumb).Methods("GET", "HEAD")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
