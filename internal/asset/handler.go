package asset

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/retouch/retouch/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

var allowedTypes = []string{"image/png", "image/jpeg", "image/webp"}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Upload handles POST /api/assets (multipart form with "file" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large (max 10MB)")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedType(contentType) {
		writeError(w, http.StatusBadRequest, "only PNG, JPEG and WebP images are supported")
		return
	}

	img, err := h.store.Decode(file)
	if errors.Is(err, ErrTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}

	info, err := h.store.Save(typeid.PrefixImage, img, header.Filename)
	if err != nil {
		slog.Error("save upload", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	slog.Info("image uploaded", "id", info.ID, "width", info.Width, "height", info.Height, "type", contentType)
	writeJSON(w, http.StatusCreated, info)
}

// Get handles GET /api/assets/{assetId} and returns the stored image's metadata.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["assetId"]
	info, err := h.store.Stat(id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err != nil {
		slog.Error("stat asset", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Delete handles DELETE /api/assets/{assetId}, letting a user drop an upload
// or a result they no longer want.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["assetId"]
	err := h.store.Delete(id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err != nil {
		slog.Error("delete asset", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("asset deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.store.Dir()))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

func allowedType(contentType string) bool {
	for _, t := range allowedTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
