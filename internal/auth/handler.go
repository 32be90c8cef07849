package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sessionRequest struct {
	AccessCode string `json:"accessCode"`
}

// StartSession handles POST /auth/session.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	result, err := h.service.StartSession(req.AccessCode)
	if err != nil {
		if errors.Is(err, ErrInvalidAccessCode) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid access code"})
			return
		}
		slog.Error("start session failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	slog.Info("session started", "session", result.SessionID)
	writeJSON(w, http.StatusCreated, result)
}

// Refresh handles POST /auth/refresh with the current token as bearer.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	result, err := h.service.Refresh(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Config handles GET /auth/config so the client knows whether to ask for a code.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"accessCodeRequired": h.service.RequiresAccessCode()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
