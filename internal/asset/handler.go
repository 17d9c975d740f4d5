package asset

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/inamate/genscene/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Handler serves font upload and retrieval endpoints.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Upload handles POST /assets/upload (multipart form with "file" and an
// optional "id" field). Without an id a new asset id is generated.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 10MB)", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	assetID := strings.TrimSpace(r.FormValue("id"))
	if assetID == "" {
		assetID = typeid.NewAssetID()
	}

	filename, err := h.store.Put(assetID, file)
	switch {
	case errors.Is(err, ErrInvalidID):
		http.Error(w, "invalid asset id", http.StatusBadRequest)
		return
	case errors.Is(err, ErrUnsupported):
		http.Error(w, "only TTF, OTF, WOFF and WOFF2 fonts are supported", http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("store asset", "error", err, "asset", assetID)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	resp := UploadResponse{
		ID:   assetID,
		URL:  "/assets/" + filename,
		Type: "font",
		Name: header.Filename,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Status handles GET /assets/{assetId}/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["assetId"]
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"id": assetID, "ready": h.store.Ready(assetID)})
}

// Remove handles DELETE /assets/{assetId}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["assetId"]
	if err := h.store.Delete(assetID); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "asset not found", http.StatusNotFound)
			return
		}
		slog.Error("delete asset", "error", err, "asset", assetID)
		http.Error(w, "failed to delete asset", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.store.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Uploads may replace a font under the same id
		w.Header().Set("Cache-Control", "public, max-age=300")
		fs.ServeHTTP(w, r)
	}))
}
