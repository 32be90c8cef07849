package repair

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"github.com/retouch/retouch/internal/auth"
	"github.com/retouch/retouch/internal/document"
	"github.com/retouch/retouch/internal/editor"
)

const maxBodySize = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type previewRequest struct {
	ImageID string          `json:"imageId"`
	Regions []editor.Region `json:"regions"`
}

// Create handles POST /api/repairs.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionIDFromContext(r.Context())

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ImageID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "imageId is required"})
		return
	}

	job, err := h.service.Submit(r.Context(), sessionID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/repairs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

// Get handles GET /api/repairs/{jobId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionIDFromContext(r.Context())
	jobID := mux.Vars(r)["jobId"]

	job, err := h.service.Get(r.Context(), sessionID, jobID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// List handles GET /api/repairs?limit=N.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	jobs, err := h.service.List(r.Context(), sessionID, limit)
	if err != nil {
		slog.Error("list repairs failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, jobs)
}

// Preview handles POST /api/preview and returns the image with the region
// overlay burned in as PNG.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	img, err := h.service.Preview(req.ImageID, req.Regions)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		slog.Error("encode preview", "error", err)
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrImageNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "image not found"})
	case errors.Is(err, ErrNoRegions):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, document.ErrInvalidRegion):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
